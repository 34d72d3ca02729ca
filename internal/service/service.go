// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/eventhub/eventhub/internal/auth"
	"github.com/eventhub/eventhub/internal/model"
	"github.com/go-playground/validator/v10"
)

// EventStore persists events.
type EventStore interface {
	Create(ctx context.Context, event *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	GetDetails(ctx context.Context, id string) (*model.EventDetails, error)
	List(ctx context.Context) ([]model.EventDetails, error)
	ListByCreator(ctx context.Context, creatorID string) ([]model.EventDetails, error)
	// Update runs fn inside the same per-event critical section Reserve
	// uses and persists the mutated event when fn returns nil.
	Update(ctx context.Context, id string, fn func(ev *model.Event, registered int) error) (*model.Event, error)
	Delete(ctx context.Context, id string) error
}

// RegistrationStore is the registration ledger. Reserve is the capacity
// guard: it must count and insert as one atomic step per event.
type RegistrationStore interface {
	Exists(ctx context.Context, eventID, userID string) (bool, error)
	Count(ctx context.Context, eventID string) (int, error)
	Reserve(ctx context.Context, eventID, userID string) (*model.Registration, error)
	Delete(ctx context.Context, eventID, userID string) error
	ListByEvent(ctx context.Context, eventID string) ([]model.Participant, error)
	ListByUser(ctx context.Context, userID string) ([]model.EventDetails, error)
}

// UserStore persists accounts.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Exists(ctx context.Context, id string) (bool, error)
	SetRoles(ctx context.Context, id string, roles []model.Role) error
	// SearchUnregistered returns up to limit users not registered for
	// eventID whose name or email contains query (case-insensitive; empty
	// matches all), ordered by name.
	SearchUnregistered(ctx context.Context, eventID, query string, limit int) ([]model.User, error)
}

// Option configures a service.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// bcrypt limits by bytes, not characters.
	_ = v.RegisterValidation("bcryptmax", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= auth.MaxPasswordBytes
	})
	return v
}

// validateStruct runs the struct's validate tags and folds the failures into
// a single ErrValidation.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return validationError(strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "bcryptmax":
		return fmt.Sprintf("%s must be at most %d bytes", fe.Field(), auth.MaxPasswordBytes)
	case "lte":
		return fmt.Sprintf("%s cannot exceed %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
