package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Togather-Foundation/campus-events/internal/audit"
	"github.com/Togather-Foundation/campus-events/internal/auth"
	"github.com/Togather-Foundation/campus-events/internal/sanitize"
	"github.com/Togather-Foundation/campus-events/internal/validation"
	"github.com/rs/zerolog"
)

// Service handles account sign-up, login and lookup.
type Service struct {
	repo        Repository
	auditLogger *audit.Logger
	logger      zerolog.Logger
}

func NewService(repo Repository, auditLogger *audit.Logger, logger zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		auditLogger: auditLogger,
		logger:      logger.With().Str("component", "users").Logger(),
	}
}

// Register creates a student account.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*User, error) {
	params.FullName = sanitize.Text(params.FullName)
	params.Email = normalizeEmail(params.Email)
	if err := validation.Struct(params); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.Create(ctx, CreateParams{
		FullName:     params.FullName,
		Email:        params.Email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user registered")
	return user, nil
}

// Authenticate returns the user owning email when password matches. Unknown
// emails and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn().Str("user_id", user.ID).Msg("login failed: password mismatch")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// BootstrapAdminParams names the administrator created on first start.
type BootstrapAdminParams struct {
	FullName string
	Email    string
	Password string
}

// EnsureAdmin creates the bootstrap administrator, or promotes the existing
// account with that email. It returns true when anything changed.
func (s *Service) EnsureAdmin(ctx context.Context, params BootstrapAdminParams) (bool, error) {
	email := normalizeEmail(params.Email)
	if email == "" || params.Password == "" {
		return false, nil
	}

	existing, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.IsAdmin {
			return false, nil
		}
		if err := s.repo.SetAdmin(ctx, existing.ID, true); err != nil {
			return false, fmt.Errorf("promote admin: %w", err)
		}
		s.auditLogger.LogSuccess("admin.bootstrap.promote", "system", "user", existing.ID, "", map[string]string{"email": email})
		return true, nil
	case !errors.Is(err, ErrNotFound):
		return false, fmt.Errorf("look up admin: %w", err)
	}

	fullName := sanitize.Text(params.FullName)
	if fullName == "" {
		fullName = "Administrator"
	}
	hash, err := auth.HashPassword(params.Password)
	if err != nil {
		return false, err
	}
	created, err := s.repo.Create(ctx, CreateParams{
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      true,
	})
	if err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	s.auditLogger.LogSuccess("admin.bootstrap.create", "system", "user", created.ID, "", map[string]string{"email": email})
	s.logger.Info().Str("user_id", created.ID).Msg("bootstrap administrator created")
	return true, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
