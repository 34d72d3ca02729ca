// Package model defines the core domain types for the event registration system.
package model

import (
	"slices"
	"time"
)

// Role is a permission tag attached to a user.
type Role string

const (
	RoleGuest     Role = "guest"
	RoleUser      Role = "user"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleUser, RoleOrganizer, RoleAdmin:
		return true
	}
	return false
}

// Actor is the authenticated party behind a request.
type Actor struct {
	ID    string `json:"id"`
	Roles []Role `json:"roles"`
}

// HasRole reports whether the actor carries role.
func (a *Actor) HasRole(role Role) bool {
	return a != nil && slices.Contains(a.Roles, role)
}

// HasAnyRole reports whether the actor carries at least one of roles.
func (a *Actor) HasAnyRole(roles ...Role) bool {
	for _, r := range roles {
		if a.HasRole(r) {
			return true
		}
	}
	return false
}

// Event represents a registrable event created by an organizer.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Capacity    int       `json:"capacity"`
	Location    string    `json:"location"`
	CreatorID   string    `json:"creator_id"`
	CategoryID  string    `json:"category_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsPast reports whether the event date lies before now.
func (e *Event) IsPast(now time.Time) bool {
	return e.Date.Before(now)
}

// EventDetails is an event together with its current visitor count and the
// slots still free.
type EventDetails struct {
	Event
	VisitorCount int `json:"visitor_count"`
	Remaining    int `json:"remaining"`
}

// NewEventDetails pairs ev with its visitor count.
func NewEventDetails(ev Event, visitors int) EventDetails {
	return EventDetails{Event: ev, VisitorCount: visitors, Remaining: max(ev.Capacity-visitors, 0)}
}

// IsFull returns true when no slots remain.
func (e *EventDetails) IsFull() bool {
	return e.VisitorCount >= e.Capacity
}

// Registration records that a user holds a slot at an event.
type Registration struct {
	EventID      string    `json:"event_id"`
	UserID       string    `json:"user_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Participant is a registration joined with the registrant's public profile.
type Participant struct {
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
}

// User is an account. PasswordHash never leaves the service layer.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Roles        []Role    `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor returns the identity view of u.
func (u *User) Actor() *Actor {
	return &Actor{ID: u.ID, Roles: slices.Clone(u.Roles)}
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title       string    `json:"title" validate:"required,min=3,max=200"`
	Description string    `json:"description" validate:"required,min=10,max=5000"`
	Date        time.Time `json:"date" validate:"required"`
	Capacity    int       `json:"capacity" validate:"gt=0,lte=100000"`
	Location    string    `json:"location" validate:"required,min=3,max=200"`
	CategoryID  string    `json:"category_id" validate:"max=64"`
}

// UpdateEventRequest is a partial update; nil fields are left unchanged.
type UpdateEventRequest struct {
	Title       *string    `json:"title" validate:"omitnil,min=3,max=200"`
	Description *string    `json:"description" validate:"omitnil,min=10,max=5000"`
	Date        *time.Time `json:"date"`
	Capacity    *int       `json:"capacity" validate:"omitnil,gt=0,lte=100000"`
	Location    *string    `json:"location" validate:"omitnil,min=3,max=200"`
	CategoryID  *string    `json:"category_id" validate:"omitnil,max=64"`
}

// AddParticipantRequest is the payload an organizer sends to add a user.
type AddParticipantRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// SignUpRequest is the payload for creating an account.
type SignUpRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,bcryptmax"`
}

// LoginRequest is the payload for exchanging credentials for a token.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SetRolesRequest replaces a user's role set.
type SetRolesRequest struct {
	Roles []Role `json:"roles"`
}

// AuthResponse is returned by sign-up and login.
type AuthResponse struct {
	Token string `json:"token,omitempty"`
	User  *User  `json:"user"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
