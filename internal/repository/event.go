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

const eventDetailsColumns = `e.id, e.title, e.description, e.date, e.capacity, e.location,
	e.creator_id, e.category_id, e.created_at, e.updated_at,
	(SELECT COUNT(*) FROM registrations r WHERE r.event_id = e.id) AS visitor_count`

// EventRepository handles persistence for events.
type EventRepository struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewEventRepository constructs an EventRepository. lockTimeout bounds the
// wait for an event row lock during updates.
func NewEventRepository(db *pgxpool.Pool, lockTimeout time.Duration) *EventRepository {
	return &EventRepository{db: db, lockTimeout: lockTimeout}
}

// Create inserts a new event. The caller assigns the ID and timestamps.
func (r *EventRepository) Create(ctx context.Context, event *model.Event) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO events (id, title, description, date, capacity, location, creator_id, category_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		event.ID, event.Title, event.Description, event.Date, event.Capacity, event.Location,
		event.CreatorID, event.CategoryID, event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return ErrNotFound
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetByID returns a single event or ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	err := r.db.QueryRow(ctx,
		`SELECT id, title, description, date, capacity, location, creator_id, category_id, created_at, updated_at
		 FROM events WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Capacity, &e.Location,
		&e.CreatorID, &e.CategoryID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &e, nil
}

// GetDetails returns an event with its visitor count or ErrNotFound.
func (r *EventRepository) GetDetails(ctx context.Context, id string) (*model.EventDetails, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventDetailsColumns+` FROM events e WHERE e.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get event details: %w", err)
	}
	events, err := collectEventDetails(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}
	return &events[0], nil
}

// List returns all events ordered by date ascending.
func (r *EventRepository) List(ctx context.Context) ([]model.EventDetails, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventDetailsColumns+` FROM events e ORDER BY e.date ASC, e.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return collectEventDetails(rows)
}

// ListByCreator returns the events created by creatorID.
func (r *EventRepository) ListByCreator(ctx context.Context, creatorID string) ([]model.EventDetails, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventDetailsColumns+` FROM events e WHERE e.creator_id = $1 ORDER BY e.date ASC, e.id ASC`,
		creatorID)
	if err != nil {
		return nil, fmt.Errorf("list events by creator: %w", err)
	}
	return collectEventDetails(rows)
}

// Update loads the event under the same row lock Reserve takes, hands it and
// the current registration count to fn, and persists the result if fn
// returns nil. An error from fn aborts the update and is returned unchanged.
func (r *EventRepository) Update(ctx context.Context, id string, fn func(ev *model.Event, registered int) error) (*model.Event, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, lockTimeoutSetting(r.lockTimeout)); err != nil {
		return nil, fmt.Errorf("set lock timeout: %w", err)
	}

	var e model.Event
	err = tx.QueryRow(ctx,
		`SELECT id, title, description, date, capacity, location, creator_id, category_id, created_at, updated_at
		 FROM events WHERE id = $1
		 FOR UPDATE`,
		id,
	).Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Capacity, &e.Location,
		&e.CreatorID, &e.CategoryID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, wrapLockErr("lock event row", err)
	}

	var registered int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_id = $1`, id,
	).Scan(&registered); err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}

	if err := fn(&e, registered); err != nil {
		return nil, err
	}
	e.ID = id

	_, err = tx.Exec(ctx,
		`UPDATE events
		 SET title = $2, description = $3, date = $4, capacity = $5, location = $6, category_id = $7, updated_at = $8
		 WHERE id = $1`,
		e.ID, e.Title, e.Description, e.Date, e.Capacity, e.Location, e.CategoryID, e.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &e, nil
}

// Delete removes an event; its registrations go with it (ON DELETE CASCADE).
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectEventDetails(rows pgx.Rows) ([]model.EventDetails, error) {
	defer rows.Close()

	var events []model.EventDetails
	for rows.Next() {
		var (
			e        model.Event
			visitors int
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Capacity, &e.Location,
			&e.CreatorID, &e.CategoryID, &e.CreatedAt, &e.UpdatedAt, &visitors); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, model.NewEventDetails(e, visitors))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
