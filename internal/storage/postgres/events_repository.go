package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/campus-events/internal/domain/events"
	"github.com/Togather-Foundation/campus-events/internal/domain/ids"
	"github.com/Togather-Foundation/campus-events/internal/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ events.Repository = (*EventRepository)(nil)

type EventRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

const eventColumns = `id, title, description, location, date_time, capacity, status, created_at, updated_at`

func scanEvent(row pgx.Row) (*events.Event, error) {
	var (
		e      events.Event
		status string
	)
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.DateTime, &e.Capacity, &status, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Status = events.Status(status)
	e.DateTime = e.DateTime.UTC()
	return &e, nil
}

func (r *EventRepository) List(ctx context.Context, filters events.Filters) ([]events.Event, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = events.DefaultListLimit
	}

	rows, err := pick(r.pool, r.tx).Query(ctx, `
SELECT `+eventColumns+`
  FROM events
 WHERE ($1 = '' OR status = $1)
 ORDER BY date_time ASC, id ASC
 LIMIT $2 OFFSET $3`,
		string(filters.Status), limit, filters.Skip,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := make([]events.Event, 0, limit)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*events.Event, error) {
	eventID, err := ids.ParseUUID(id)
	if err != nil {
		return nil, events.ErrNotFound
	}

	e, err := scanEvent(pick(r.pool, r.tx).QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, eventID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, events.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

func (r *EventRepository) Create(ctx context.Context, params events.CreateParams) (*events.Event, error) {
	capacity := events.DefaultCapacity
	if params.Capacity != nil {
		capacity = *params.Capacity
	}
	status := params.Status
	if status == "" {
		status = events.StatusUpcoming
	}

	e, err := scanEvent(pick(r.pool, r.tx).QueryRow(ctx, `
INSERT INTO events (title, description, location, date_time, capacity, status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+eventColumns,
		params.Title, params.Description, params.Location, params.DateTime, capacity, string(status),
	))
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return e, nil
}

func (r *EventRepository) Update(ctx context.Context, id string, from events.Status, params events.UpdateParams) (*events.Event, error) {
	eventID, err := ids.ParseUUID(id)
	if err != nil {
		return nil, events.ErrNotFound
	}

	var status, expected *string
	if params.Status != nil {
		value := string(*params.Status)
		status = &value
	}
	if from != "" {
		value := string(from)
		expected = &value
	}

	q := pick(r.pool, r.tx)
	e, err := scanEvent(q.QueryRow(ctx, `
UPDATE events
   SET title       = COALESCE($2, title),
       description = COALESCE($3, description),
       location    = COALESCE($4, location),
       date_time   = COALESCE($5, date_time),
       capacity    = COALESCE($6, capacity),
       status      = COALESCE($7, status),
       updated_at  = now()
 WHERE id = $1
   AND ($8::text IS NULL OR status = $8::text)
RETURNING `+eventColumns,
		eventID, params.Title, params.Description, params.Location, params.DateTime, params.Capacity, status, expected,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		if expected == nil {
			return nil, events.ErrNotFound
		}
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, eventID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("update event: %w", err)
		}
		if exists {
			return nil, events.ErrInvalidTransition
		}
		return nil, events.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return e, nil
}

func (r *EventRepository) Delete(ctx context.Context, id string) error {
	eventID, err := ids.ParseUUID(id)
	if err != nil {
		return events.ErrNotFound
	}
	tag, err := pick(r.pool, r.tx).Exec(ctx, `DELETE FROM events WHERE id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (r *EventRepository) CompleteExpired(ctx context.Context, now time.Time) (n int64, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("complete_expired", start, err) }()

	tag, err := pick(r.pool, r.tx).Exec(ctx, `
UPDATE events
   SET status = 'completed', updated_at = now()
 WHERE date_time < $1
   AND status NOT IN ('completed', 'cancelled')`, now)
	if err != nil {
		return 0, fmt.Errorf("complete expired events: %w", err)
	}
	return tag.RowsAffected(), nil
}
