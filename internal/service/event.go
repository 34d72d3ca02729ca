package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eventhub/eventhub/internal/model"
	"github.com/eventhub/eventhub/internal/permission"
	"github.com/google/uuid"
)

// EventService orchestrates event-related business operations.
type EventService struct {
	events        EventStore
	registrations RegistrationStore
	now           func() time.Time
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(events EventStore, registrations RegistrationStore, opts ...Option) *EventService {
	o := buildOptions(opts)
	return &EventService{events: events, registrations: registrations, now: o.now}
}

// CreateEvent validates the request and stores a new event owned by actor.
func (s *EventService) CreateEvent(ctx context.Context, actor *model.Actor, req model.CreateEventRequest) (*model.EventDetails, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if !permission.CanCreateEvent(actor) {
		return nil, ErrCreateForbidden
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Location = strings.TrimSpace(req.Location)
	req.CategoryID = strings.TrimSpace(req.CategoryID)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	event := &model.Event{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date.UTC(),
		Capacity:    req.Capacity,
		Location:    req.Location,
		CreatorID:   actor.ID,
		CategoryID:  req.CategoryID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	details := model.NewEventDetails(*event, 0)
	return &details, nil
}

// GetEvent returns a single event with its visitor count.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.EventDetails, error) {
	event, err := s.events.GetDetails(ctx, id)
	if err != nil {
		return nil, translateEventErr("get event", err)
	}
	return event, nil
}

// ListEvents returns all events, soonest first.
func (s *EventService) ListEvents(ctx context.Context) ([]model.EventDetails, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// MyEvents returns the events actor created.
func (s *EventService) MyEvents(ctx context.Context, actor *model.Actor) ([]model.EventDetails, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	events, err := s.events.ListByCreator(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list my events: %w", err)
	}
	return events, nil
}

// UpdateEvent applies a partial update. A capacity change is checked
// against the registration count inside the event's critical section, so a
// concurrent registration cannot slip in between the check and the write.
func (s *EventService) UpdateEvent(ctx context.Context, actor *model.Actor, id string, req model.UpdateEventRequest) (*model.EventDetails, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	existing, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, translateEventErr("get event", err)
	}
	if !permission.CanManageEvent(actor, existing) {
		return nil, ErrManageEventForbidden
	}

	trimPtr(req.Title)
	trimPtr(req.Description)
	trimPtr(req.Location)
	trimPtr(req.CategoryID)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	var registered int
	updated, err := s.events.Update(ctx, id, func(ev *model.Event, count int) error {
		registered = count
		if req.Capacity != nil && *req.Capacity != ev.Capacity && *req.Capacity < count {
			return fmt.Errorf("%w (%d registered)", ErrCapacityTooLow, count)
		}
		applyUpdate(ev, req)
		ev.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		if isServiceError(err) {
			return nil, err
		}
		return nil, translateEventErr("update event", err)
	}
	details := model.NewEventDetails(*updated, registered)
	return &details, nil
}

// DeleteEvent removes an event and, with it, all of its registrations.
func (s *EventService) DeleteEvent(ctx context.Context, actor *model.Actor, id string) error {
	if actor == nil {
		return ErrUnauthenticated
	}
	existing, err := s.events.GetByID(ctx, id)
	if err != nil {
		return translateEventErr("get event", err)
	}
	if !permission.CanManageEvent(actor, existing) {
		return ErrManageEventForbidden
	}
	if err := s.events.Delete(ctx, id); err != nil {
		return translateEventErr("delete event", err)
	}
	return nil
}

func applyUpdate(ev *model.Event, req model.UpdateEventRequest) {
	if req.Title != nil {
		ev.Title = *req.Title
	}
	if req.Description != nil {
		ev.Description = *req.Description
	}
	if req.Date != nil {
		ev.Date = req.Date.UTC()
	}
	if req.Capacity != nil {
		ev.Capacity = *req.Capacity
	}
	if req.Location != nil {
		ev.Location = *req.Location
	}
	if req.CategoryID != nil {
		ev.CategoryID = *req.CategoryID
	}
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
