package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventhub/eventhub/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegistrationRepository is the PostgreSQL registration ledger.
type RegistrationRepository struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewRegistrationRepository constructs a RegistrationRepository. lockTimeout
// bounds the wait for the event row lock inside Reserve.
func NewRegistrationRepository(db *pgxpool.Pool, lockTimeout time.Duration) *RegistrationRepository {
	return &RegistrationRepository{db: db, lockTimeout: lockTimeout}
}

// Exists reports whether userID is registered for eventID.
func (r *RegistrationRepository) Exists(ctx context.Context, eventID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM registrations WHERE event_id = $1 AND user_id = $2)`,
		eventID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return exists, nil
}

// Count returns the visitor count of eventID.
func (r *RegistrationRepository) Count(ctx context.Context, eventID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_id = $1`, eventID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}

// Reserve takes a slot at eventID for userID without ever exceeding the
// event's capacity.
//
// Counting registrations and inserting a new one as two independent
// statements lets two requests both observe count < capacity before either
// inserts, overbooking the event:
//
//	A: SELECT COUNT(*) -> 9   (capacity 10)
//	B: SELECT COUNT(*) -> 9
//	A: INSERT              -> 10 rows
//	B: INSERT              -> 11 rows
//
// Reserve therefore takes SELECT ... FOR UPDATE on the event row first.
// Every other Reserve (and EventRepository.Update) for the same event blocks
// on that lock until this transaction commits or rolls back, so count and
// insert behave as one step per event. Different events never contend.
//
// The wait is bounded by lock_timeout; exceeding it yields ErrLockTimeout.
// Cancelling ctx before commit rolls the transaction back.
func (r *RegistrationRepository) Reserve(ctx context.Context, eventID, userID string) (*model.Registration, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	// No-op after a successful commit.
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, lockTimeoutSetting(r.lockTimeout)); err != nil {
		return nil, fmt.Errorf("set lock timeout: %w", err)
	}

	var capacity int
	err = tx.QueryRow(ctx,
		`SELECT capacity FROM events WHERE id = $1 FOR UPDATE`, eventID,
	).Scan(&capacity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, wrapLockErr("lock event row", err)
	}

	var registered int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_id = $1`, eventID,
	).Scan(&registered); err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	if registered >= capacity {
		return nil, ErrEventFull
	}

	reg := &model.Registration{
		EventID:      eventID,
		UserID:       userID,
		RegisteredAt: time.Now().UTC(),
	}
	tag, err := tx.Exec(ctx,
		`INSERT INTO registrations (event_id, user_id, registered_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (event_id, user_id) DO NOTHING`,
		reg.EventID, reg.UserID, reg.RegisteredAt,
	)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("insert registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrAlreadyRegistered
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return reg, nil
}

// Delete removes the registration of userID at eventID, or returns
// ErrNotFound when there is none.
func (r *RegistrationRepository) Delete(ctx context.Context, eventID, userID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM registrations WHERE event_id = $1 AND user_id = $2`,
		eventID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByEvent returns the participants of eventID in registration order.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Participant, error) {
	rows, err := r.db.Query(ctx,
		`SELECT u.id, u.name, u.email, r.registered_at
		 FROM registrations r
		 JOIN users u ON u.id = r.user_id
		 WHERE r.event_id = $1
		 ORDER BY r.registered_at ASC, u.id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var participants []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.UserID, &p.Name, &p.Email, &p.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// ListByUser returns the events userID is registered for, soonest first.
func (r *RegistrationRepository) ListByUser(ctx context.Context, userID string) ([]model.EventDetails, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventDetailsColumns+`
		 FROM events e
		 JOIN registrations reg ON reg.event_id = e.id
		 WHERE reg.user_id = $1
		 ORDER BY e.date ASC, e.id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations by user: %w", err)
	}
	return collectEventDetails(rows)
}
