package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eventhub/eventhub/internal/model"
	"github.com/eventhub/eventhub/internal/permission"
	"github.com/eventhub/eventhub/internal/repository"
)

// RegistrationService runs the registration state machine of every
// (event, user) pair: Unregistered -> Registered through Register or
// AddParticipant, and back through Unregister or RemoveParticipant.
//
// Cheap checks (permission, existence, duplicate) run first so the per-event
// critical section inside RegistrationStore.Reserve is only entered when a
// registration can actually succeed.
type RegistrationService struct {
	events        EventStore
	registrations RegistrationStore
	users         UserStore
	now           func() time.Time
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(events EventStore, registrations RegistrationStore, users UserStore, opts ...Option) *RegistrationService {
	o := buildOptions(opts)
	return &RegistrationService{
		events:        events,
		registrations: registrations,
		users:         users,
		now:           o.now,
	}
}

// Register reserves a slot at eventID for actor itself. Actors without a
// registering role are refused before the event is even looked up.
func (s *RegistrationService) Register(ctx context.Context, actor *model.Actor, eventID string) (*model.Registration, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if !permission.CanRegisterForEvents(actor) {
		return nil, ErrRegisterForbidden
	}

	event, err := s.openEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return s.reserve(ctx, event.ID, actor.ID)
}

// Unregister releases actor's slot at eventID. Unregistering when not
// registered is ErrNotRegistered, never a silent success.
func (s *RegistrationService) Unregister(ctx context.Context, actor *model.Actor, eventID string) error {
	if actor == nil {
		return ErrUnauthenticated
	}
	return s.release(ctx, eventID, actor.ID)
}

// AddParticipant registers userID for eventID on behalf of an organizer or
// admin allowed to manage the event's participants.
func (s *RegistrationService) AddParticipant(ctx context.Context, actor *model.Actor, eventID, userID string) (*model.Registration, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, validationError("user_id is required")
	}

	event, err := s.manageableEvent(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}
	if event.IsPast(s.now()) {
		return nil, ErrAddPastEvent
	}

	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	return s.reserve(ctx, event.ID, userID)
}

// RemoveParticipant unregisters userID from eventID on behalf of an
// organizer or admin allowed to manage the event's participants.
func (s *RegistrationService) RemoveParticipant(ctx context.Context, actor *model.Actor, eventID, userID string) error {
	if actor == nil {
		return ErrUnauthenticated
	}
	if _, err := s.manageableEvent(ctx, actor, eventID); err != nil {
		return err
	}
	return s.release(ctx, eventID, userID)
}

// ListParticipants returns who is registered for eventID.
func (s *RegistrationService) ListParticipants(ctx context.Context, actor *model.Actor, eventID string) ([]model.Participant, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if _, err := s.manageableEvent(ctx, actor, eventID); err != nil {
		return nil, err
	}
	participants, err := s.registrations.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return participants, nil
}

// Bounds for AvailableUsers.
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

// AvailableUsers searches the users a manager of eventID could still add.
// A limit outside 1..MaxSearchLimit falls back to DefaultSearchLimit or is
// capped.
func (s *RegistrationService) AvailableUsers(ctx context.Context, actor *model.Actor, eventID, query string, limit int) ([]model.User, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if _, err := s.manageableEvent(ctx, actor, eventID); err != nil {
		return nil, err
	}

	switch {
	case limit <= 0:
		limit = DefaultSearchLimit
	case limit > MaxSearchLimit:
		limit = MaxSearchLimit
	}
	users, err := s.users.SearchUnregistered(ctx, eventID, strings.TrimSpace(query), limit)
	if err != nil {
		return nil, fmt.Errorf("search available users: %w", err)
	}
	return users, nil
}

// MyRegistrations returns the events actor is registered for.
func (s *RegistrationService) MyRegistrations(ctx context.Context, actor *model.Actor) ([]model.EventDetails, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	events, err := s.registrations.ListByUser(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list my registrations: %w", err)
	}
	return events, nil
}

// openEvent loads an event that still accepts registrations.
func (s *RegistrationService) openEvent(ctx context.Context, eventID string) (*model.Event, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, translateEventErr("get event", err)
	}
	if event.IsPast(s.now()) {
		return nil, ErrPastEvent
	}
	return event, nil
}

func (s *RegistrationService) manageableEvent(ctx context.Context, actor *model.Actor, eventID string) (*model.Event, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, translateEventErr("get event", err)
	}
	if !permission.CanManageParticipants(actor, event) {
		return nil, ErrParticipantsForbidden
	}
	return event, nil
}

func (s *RegistrationService) reserve(ctx context.Context, eventID, userID string) (*model.Registration, error) {
	registered, err := s.registrations.Exists(ctx, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("check registration: %w", err)
	}
	if registered {
		return nil, ErrAlreadyRegistered
	}

	reg, err := s.registrations.Reserve(ctx, eventID, userID)
	if err != nil {
		return nil, translateLedgerErr("reserve slot", err)
	}
	return reg, nil
}

func (s *RegistrationService) release(ctx context.Context, eventID, userID string) error {
	err := s.registrations.Delete(ctx, eventID, userID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotRegistered
	default:
		return fmt.Errorf("delete registration: %w", err)
	}
}
