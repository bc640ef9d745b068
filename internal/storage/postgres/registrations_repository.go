package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/campus-events/internal/domain/events"
	"github.com/Togather-Foundation/campus-events/internal/domain/ids"
	"github.com/Togather-Foundation/campus-events/internal/domain/registrations"
	"github.com/Togather-Foundation/campus-events/internal/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ registrations.Store = (*RegistrationRepository)(nil)

// RegistrationRepository backs the registration policy. It reads events too,
// so one transaction covers every read and the insert of an attempt.
type RegistrationRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *RegistrationRepository) WithTx(ctx context.Context, fn func(context.Context, registrations.Tx) error) error {
	return withTx(ctx, r.pool, r.tx, func(tx pgx.Tx) error {
		return fn(ctx, &RegistrationRepository{pool: r.pool, tx: tx})
	})
}

func (r *RegistrationRepository) GetEvent(ctx context.Context, id string) (*events.Event, error) {
	return (&EventRepository{pool: r.pool, tx: r.tx}).GetByID(ctx, id)
}

func (r *RegistrationRepository) Get(ctx context.Context, userID, eventID string) (reg *registrations.Registration, err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, registrations.ErrNotFound) {
			metrics.RecordQuery("get_registration", start, nil)
			return
		}
		metrics.RecordQuery("get_registration", start, err)
	}()

	var out registrations.Registration
	err = pick(r.pool, r.tx).QueryRow(ctx, `
SELECT id, user_id, event_id, registration_date
  FROM registrations
 WHERE user_id = $1 AND event_id = $2`, userID, eventID,
	).Scan(&out.ID, &out.UserID, &out.EventID, &out.RegistrationDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, registrations.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return &out, nil
}

func (r *RegistrationRepository) Count(ctx context.Context, eventID string) (n int, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("count_registrations", start, err) }()

	err = pick(r.pool, r.tx).QueryRow(ctx,
		`SELECT count(*) FROM registrations WHERE event_id = $1`, eventID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}

func (r *RegistrationRepository) Create(ctx context.Context, reg registrations.Registration) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("insert_registration", start, err) }()

	_, err = pick(r.pool, r.tx).Exec(ctx, `
INSERT INTO registrations (id, user_id, event_id, registration_date)
VALUES ($1, $2, $3, $4)`,
		reg.ID, reg.UserID, reg.EventID, reg.RegistrationDate,
	)
	if isUniqueViolation(err, "uq_user_event") {
		return registrations.ErrDuplicate
	}
	if isForeignKeyViolation(err, "registrations_user_id_fkey") {
		return registrations.ErrUnknownUser
	}
	if isForeignKeyViolation(err, "registrations_event_id_fkey") {
		return events.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (r *RegistrationRepository) ListForUser(ctx context.Context, userID string) ([]registrations.UserRegistration, error) {
	if _, err := ids.ParseUUID(userID); err != nil {
		return []registrations.UserRegistration{}, nil
	}

	rows, err := pick(r.pool, r.tx).Query(ctx, `
SELECT r.id, r.user_id, r.event_id, r.registration_date, e.title, e.date_time, e.status
  FROM registrations r
  JOIN events e ON e.id = r.event_id
 WHERE r.user_id = $1
 ORDER BY e.date_time ASC, r.id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list registrations for user: %w", err)
	}
	defer rows.Close()

	out := []registrations.UserRegistration{}
	for rows.Next() {
		var (
			ur     registrations.UserRegistration
			status string
		)
		if err := rows.Scan(&ur.ID, &ur.UserID, &ur.EventID, &ur.RegistrationDate, &ur.EventTitle, &ur.EventDateTime, &status); err != nil {
			return nil, fmt.Errorf("scan user registration: %w", err)
		}
		ur.EventStatus = events.Status(status)
		ur.EventDateTime = ur.EventDateTime.UTC()
		out = append(out, ur)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user registrations: %w", err)
	}
	return out, nil
}

func (r *RegistrationRepository) ListForEvent(ctx context.Context, eventID string) ([]registrations.Attendee, error) {
	if _, err := ids.ParseUUID(eventID); err != nil {
		return []registrations.Attendee{}, nil
	}

	rows, err := pick(r.pool, r.tx).Query(ctx, `
SELECT r.id, r.user_id, r.event_id, r.registration_date, u.full_name, u.email
  FROM registrations r
  JOIN users u ON u.id = r.user_id
 WHERE r.event_id = $1
 ORDER BY r.registration_date ASC, r.id ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	defer rows.Close()

	out := []registrations.Attendee{}
	for rows.Next() {
		var a registrations.Attendee
		if err := rows.Scan(&a.ID, &a.UserID, &a.EventID, &a.RegistrationDate, &a.FullName, &a.Email); err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendees: %w", err)
	}
	return out, nil
}
