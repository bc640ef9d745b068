package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Togather-Foundation/campus-events/internal/domain/ids"
	"github.com/Togather-Foundation/campus-events/internal/domain/users"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ users.Repository = (*UserRepository)(nil)

type UserRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

const userColumns = `id, full_name, email, password_hash, is_admin, created_at`

func scanUser(row pgx.Row) (*users.User, error) {
	var u users.User
	if err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, params users.CreateParams) (*users.User, error) {
	u, err := scanUser(pick(r.pool, r.tx).QueryRow(ctx, `
INSERT INTO users (full_name, email, password_hash, is_admin)
VALUES ($1, $2, $3, $4)
RETURNING `+userColumns,
		params.FullName, params.Email, params.PasswordHash, params.IsAdmin,
	))
	if isUniqueViolation(err, "uq_users_email_lower") {
		return nil, users.ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*users.User, error) {
	userID, err := ids.ParseUUID(id)
	if err != nil {
		return nil, users.ErrNotFound
	}
	u, err := scanUser(pick(r.pool, r.tx).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	u, err := scanUser(pick(r.pool, r.tx).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (r *UserRepository) SetAdmin(ctx context.Context, id string, isAdmin bool) error {
	userID, err := ids.ParseUUID(id)
	if err != nil {
		return users.ErrNotFound
	}
	tag, err := pick(r.pool, r.tx).Exec(ctx, `UPDATE users SET is_admin = $2 WHERE id = $1`, userID, isAdmin)
	if err != nil {
		return fmt.Errorf("set admin: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}
