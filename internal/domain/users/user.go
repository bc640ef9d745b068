package users

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("incorrect email or password")
)

type User struct {
	ID           string
	FullName     string
	Email        string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// RegisterParams is the self-service sign-up payload.
type RegisterParams struct {
	FullName string `json:"full_name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type CreateParams struct {
	FullName     string
	Email        string
	PasswordHash string
	IsAdmin      bool
}

type Repository interface {
	// Create returns ErrEmailTaken when the email is already in use.
	Create(ctx context.Context, params CreateParams) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*User, error)
	SetAdmin(ctx context.Context, id string, isAdmin bool) error
}
