package service

import (
	"errors"
	"fmt"

	"github.com/eventhub/eventhub/internal/repository"
)

// Error kinds. Every error the services return on purpose wraps exactly one
// of these, so the transport layer can map it with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	// ErrBusy means a per-event critical section could not be entered in
	// time. The request may be retried.
	ErrBusy = errors.New("busy")
)

// Error is a caller-facing failure: Error() is safe to show to clients and
// Unwrap yields its kind.
type Error struct {
	kind error
	msg  string
}

func newError(kind error, msg string) *Error { return &Error{kind: kind, msg: msg} }

func (e *Error) Error() string { return e.msg }
func (e *Error) Unwrap() error { return e.kind }

var (
	ErrEventNotFound = newError(ErrNotFound, "event not found")
	ErrUserNotFound  = newError(ErrNotFound, "user not found")
	ErrNotRegistered = newError(ErrNotFound, "not registered for this event")

	ErrRegisterForbidden     = newError(ErrForbidden, "you do not have permission to register for events")
	ErrCreateForbidden       = newError(ErrForbidden, "you do not have permission to create events")
	ErrManageEventForbidden  = newError(ErrForbidden, "you do not have permission to manage this event")
	ErrParticipantsForbidden = newError(ErrForbidden, "you do not have permission to manage participants for this event")
	ErrAdminOnly             = newError(ErrForbidden, "admin role required")
	ErrPastEvent             = newError(ErrForbidden, "cannot register for past events")
	ErrAddPastEvent          = newError(ErrForbidden, "cannot add participants to past events")

	ErrAlreadyRegistered = newError(ErrConflict, "already registered for this event")
	// ErrEventFull is retryable: a slot may free up later.
	ErrEventFull      = newError(ErrConflict, "event is full")
	ErrCapacityTooLow = newError(ErrConflict, "cannot reduce capacity below current registrations")
	ErrEmailTaken     = newError(ErrConflict, "email already in use")

	ErrUnauthenticated    = newError(ErrUnauthorized, "authentication required")
	ErrInvalidCredentials = newError(ErrUnauthorized, "invalid email or password")

	ErrEventBusy = newError(ErrBusy, "event is busy, please retry")
)

// IsRetryable reports whether the caller may legitimately retry the
// operation later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrEventFull) || errors.Is(err, ErrBusy)
}

func isServiceError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

func validationError(msg string) error {
	return newError(ErrValidation, msg)
}

// translateLedgerErr maps capacity guard and ledger failures to service
// errors. Unknown failures are wrapped with op and stay internal.
func translateLedgerErr(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrEventFull):
		return ErrEventFull
	case errors.Is(err, repository.ErrAlreadyRegistered):
		return ErrAlreadyRegistered
	case errors.Is(err, repository.ErrLockTimeout):
		return ErrEventBusy
	case errors.Is(err, repository.ErrNotFound):
		return ErrEventNotFound
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func translateEventErr(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrEventNotFound
	case errors.Is(err, repository.ErrLockTimeout):
		return ErrEventBusy
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
