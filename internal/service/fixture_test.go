package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/eventhub/eventhub/internal/model"
	"github.com/eventhub/eventhub/internal/repository"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fixture struct {
	store         *repository.MemoryStore
	events        *EventService
	registrations *RegistrationService

	admin, organizer, otherOrganizer, guest *model.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore(time.Second)
	f := &fixture{
		store:         store,
		events:        NewEventService(store.Events(), store.Registrations(), WithClock(clock)),
		registrations: NewRegistrationService(store.Events(), store.Registrations(), store.Users(), WithClock(clock)),
	}
	f.admin = f.addUser(t, "admin", model.RoleAdmin)
	f.organizer = f.addUser(t, "organizer", model.RoleOrganizer)
	f.otherOrganizer = f.addUser(t, "other-organizer", model.RoleOrganizer)
	f.guest = f.addUser(t, "guest", model.RoleGuest)
	return f
}

func (f *fixture) addUser(t *testing.T, id string, roles ...model.Role) *model.Actor {
	t.Helper()
	u := &model.User{
		ID:        id,
		Name:      "User " + id,
		Email:     id + "@example.com",
		Roles:     roles,
		CreatedAt: fixedNow,
	}
	if err := f.store.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
	return u.Actor()
}

func (f *fixture) addUsers(t *testing.T, n int) []*model.Actor {
	t.Helper()
	actors := make([]*model.Actor, n)
	for i := range actors {
		actors[i] = f.addUser(t, fmt.Sprintf("user-%03d", i), model.RoleUser)
	}
	return actors
}

// addEvent creates an event owned by f.organizer, a week after fixedNow.
func (f *fixture) addEvent(t *testing.T, capacity int) string {
	t.Helper()
	ev, err := f.events.CreateEvent(context.Background(), f.organizer, model.CreateEventRequest{
		Title:       "Go meetup",
		Description: "Monthly gathering of gophers",
		Date:        fixedNow.Add(7 * 24 * time.Hour),
		Capacity:    capacity,
		Location:    "Main hall",
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return ev.ID
}

func (f *fixture) count(t *testing.T, eventID string) int {
	t.Helper()
	n, err := f.store.Registrations().Count(context.Background(), eventID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
