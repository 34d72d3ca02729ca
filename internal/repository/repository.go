// Package repository implements persistence for events, users and the
// registration ledger. PostgreSQL access uses pgx directly (no ORM); an
// in-memory store with the same behaviour serves single-process deployments
// and tests.
package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrEventFull is returned when an event has no remaining capacity.
var ErrEventFull = errors.New("event is fully booked")

// ErrAlreadyRegistered is returned when the same user registers twice.
var ErrAlreadyRegistered = errors.New("user already registered for this event")

// ErrDuplicateEmail is returned when an account with the email exists.
var ErrDuplicateEmail = errors.New("email already in use")

// ErrLockTimeout is returned when the per-event critical section could not
// be entered within the configured lock timeout. Callers may retry.
var ErrLockTimeout = errors.New("timed out waiting for event lock")

// SQLSTATE codes the repositories translate into sentinels.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgLockNotAvailable    = "55P03"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// lockTimeoutSetting renders d for set_config('lock_timeout', ...).
func lockTimeoutSetting(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprintf("%dms", ms)
}

// wrapLockErr maps a lock wait failure to ErrLockTimeout and wraps anything
// else with op.
func wrapLockErr(op string, err error) error {
	if pgCode(err) == pgLockNotAvailable {
		return ErrLockTimeout
	}
	return fmt.Errorf("%s: %w", op, err)
}
