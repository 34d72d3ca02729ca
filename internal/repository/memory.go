package repository

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/eventhub/eventhub/internal/model"
)

// MemoryStore keeps events, users and registrations in process memory.
// Per-event critical sections (Reserve, event Update and Delete) go through
// a KeyedLock, which is only sound while every registration for an event is
// funnelled through this one process.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string]model.Event
	users  map[string]model.User
	emails map[string]string               // email -> user id
	regs   map[string]map[string]time.Time // event id -> user id -> registered at

	locks       *KeyedLock
	lockTimeout time.Duration
}

// NewMemoryStore returns an empty store. lockTimeout bounds the wait for a
// per-event critical section.
func NewMemoryStore(lockTimeout time.Duration) *MemoryStore {
	return &MemoryStore{
		events:      make(map[string]model.Event),
		users:       make(map[string]model.User),
		emails:      make(map[string]string),
		regs:        make(map[string]map[string]time.Time),
		locks:       NewKeyedLock(),
		lockTimeout: lockTimeout,
	}
}

// Events returns the event repository view of s.
func (s *MemoryStore) Events() *MemoryEventRepository { return &MemoryEventRepository{s: s} }

// Registrations returns the ledger view of s.
func (s *MemoryStore) Registrations() *MemoryRegistrationRepository {
	return &MemoryRegistrationRepository{s: s}
}

// Users returns the user repository view of s.
func (s *MemoryStore) Users() *MemoryUserRepository { return &MemoryUserRepository{s: s} }

func (s *MemoryStore) details(e model.Event) model.EventDetails {
	return model.NewEventDetails(e, len(s.regs[e.ID]))
}

func sortByDate(events []model.EventDetails) {
	slices.SortFunc(events, func(a, b model.EventDetails) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// MemoryEventRepository is the in-memory counterpart of EventRepository.
type MemoryEventRepository struct{ s *MemoryStore }

func (r *MemoryEventRepository) Create(_ context.Context, event *model.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[event.CreatorID]; !ok {
		return ErrNotFound
	}
	r.s.events[event.ID] = *event
	return nil
}

func (r *MemoryEventRepository) GetByID(_ context.Context, id string) (*model.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (r *MemoryEventRepository) GetDetails(_ context.Context, id string) (*model.EventDetails, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	d := r.s.details(e)
	return &d, nil
}

func (r *MemoryEventRepository) List(_ context.Context) ([]model.EventDetails, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []model.EventDetails
	for _, e := range r.s.events {
		out = append(out, r.s.details(e))
	}
	sortByDate(out)
	return out, nil
}

func (r *MemoryEventRepository) ListByCreator(_ context.Context, creatorID string) ([]model.EventDetails, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []model.EventDetails
	for _, e := range r.s.events {
		if e.CreatorID == creatorID {
			out = append(out, r.s.details(e))
		}
	}
	sortByDate(out)
	return out, nil
}

// Update runs fn inside the event's critical section, mirroring the row
// lock EventRepository.Update takes.
func (r *MemoryEventRepository) Update(ctx context.Context, id string, fn func(ev *model.Event, registered int) error) (*model.Event, error) {
	unlock, err := r.s.locks.Lock(ctx, id, r.s.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer unlock()

	r.s.mu.RLock()
	e, ok := r.s.events[id]
	registered := len(r.s.regs[id])
	r.s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	if err := fn(&e, registered); err != nil {
		return nil, err
	}
	e.ID = id

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.events[id]; !ok {
		return nil, ErrNotFound
	}
	r.s.events[id] = e
	return &e, nil
}

func (r *MemoryEventRepository) Delete(ctx context.Context, id string) error {
	unlock, err := r.s.locks.Lock(ctx, id, r.s.lockTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.events[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.events, id)
	delete(r.s.regs, id)
	return nil
}

// MemoryRegistrationRepository is the in-memory registration ledger.
type MemoryRegistrationRepository struct{ s *MemoryStore }

func (r *MemoryRegistrationRepository) Exists(_ context.Context, eventID, userID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.regs[eventID][userID]
	return ok, nil
}

func (r *MemoryRegistrationRepository) Count(_ context.Context, eventID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return len(r.s.regs[eventID]), nil
}

// Reserve counts and inserts while holding the event's keyed lock, so
// concurrent reservations for one event are serialised and can never push
// the count past capacity.
func (r *MemoryRegistrationRepository) Reserve(ctx context.Context, eventID, userID string) (*model.Registration, error) {
	unlock, err := r.s.locks.Lock(ctx, eventID, r.s.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer unlock()

	r.s.mu.RLock()
	event, eventOK := r.s.events[eventID]
	_, userOK := r.s.users[userID]
	_, dup := r.s.regs[eventID][userID]
	details := r.s.details(event)
	r.s.mu.RUnlock()

	switch {
	case !eventOK || !userOK:
		return nil, ErrNotFound
	case details.IsFull():
		return nil, ErrEventFull
	case dup:
		return nil, ErrAlreadyRegistered
	}

	// A caller that gave up while we were counting must not end up
	// registered.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reg := &model.Registration{
		EventID:      eventID,
		UserID:       userID,
		RegisteredAt: time.Now().UTC(),
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.regs[eventID] == nil {
		r.s.regs[eventID] = make(map[string]time.Time)
	}
	r.s.regs[eventID][userID] = reg.RegisteredAt
	return reg, nil
}

func (r *MemoryRegistrationRepository) Delete(_ context.Context, eventID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.regs[eventID][userID]; !ok {
		return ErrNotFound
	}
	delete(r.s.regs[eventID], userID)
	if len(r.s.regs[eventID]) == 0 {
		delete(r.s.regs, eventID)
	}
	return nil
}

func (r *MemoryRegistrationRepository) ListByEvent(_ context.Context, eventID string) ([]model.Participant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []model.Participant
	for userID, at := range r.s.regs[eventID] {
		u := r.s.users[userID]
		out = append(out, model.Participant{UserID: userID, Name: u.Name, Email: u.Email, RegisteredAt: at})
	}
	slices.SortFunc(out, func(a, b model.Participant) int {
		if c := a.RegisteredAt.Compare(b.RegisteredAt); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	return out, nil
}

func (r *MemoryRegistrationRepository) ListByUser(_ context.Context, userID string) ([]model.EventDetails, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []model.EventDetails
	for eventID, users := range r.s.regs {
		if _, ok := users[userID]; !ok {
			continue
		}
		if e, ok := r.s.events[eventID]; ok {
			out = append(out, r.s.details(e))
		}
	}
	sortByDate(out)
	return out, nil
}

// MemoryUserRepository is the in-memory counterpart of UserRepository.
type MemoryUserRepository struct{ s *MemoryStore }

func (r *MemoryUserRepository) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.emails[user.Email]; ok {
		return ErrDuplicateEmail
	}
	u := *user
	u.Roles = slices.Clone(user.Roles)
	r.s.users[u.ID] = u
	r.s.emails[u.Email] = u.ID
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.Roles = slices.Clone(u.Roles)
	return &u, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.s.mu.RLock()
	id, ok := r.s.emails[email]
	r.s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryUserRepository) Exists(_ context.Context, id string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.users[id]
	return ok, nil
}

func (r *MemoryUserRepository) SetRoles(_ context.Context, id string, roles []model.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Roles = slices.Clone(roles)
	r.s.users[id] = u
	return nil
}

func (r *MemoryUserRepository) SearchUnregistered(_ context.Context, eventID, query string, limit int) ([]model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	query = strings.ToLower(query)
	var out []model.User
	for id, u := range r.s.users {
		if _, registered := r.s.regs[eventID][id]; registered {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(u.Name), query) &&
			!strings.Contains(strings.ToLower(u.Email), query) {
			continue
		}
		u.Roles = slices.Clone(u.Roles)
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b model.User) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
