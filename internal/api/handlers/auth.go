package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Togather-Foundation/campus-events/internal/api/middleware"
	"github.com/Togather-Foundation/campus-events/internal/audit"
	"github.com/Togather-Foundation/campus-events/internal/auth"
	"github.com/Togather-Foundation/campus-events/internal/domain/users"
)

var errMissingClaims = errors.New("request reached an authenticated handler without claims")

type UserService interface {
	Register(ctx context.Context, params users.RegisterParams) (*users.User, error)
	Authenticate(ctx context.Context, email, password string) (*users.User, error)
	Get(ctx context.Context, id string) (*users.User, error)
}

type TokenIssuer interface {
	Generate(subject, email string, role auth.Role) (string, time.Time, error)
}

type AuthHandler struct {
	Users  UserService
	Tokens TokenIssuer
	Audit  *audit.Logger
	Env    string
}

func NewAuthHandler(usersService UserService, tokens TokenIssuer, auditLogger *audit.Logger, env string) *AuthHandler {
	return &AuthHandler{Users: usersService, Tokens: tokens, Audit: auditLogger, Env: env}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type userResponse struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u users.User) userResponse {
	return userResponse{
		ID:        u.ID,
		FullName:  u.FullName,
		Email:     u.Email,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt.UTC(),
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var params users.RegisterParams
	if err := decodeJSON(r, &params); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	user, err := h.Users.Register(r.Context(), params)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	w.Header().Set("Location", "/api/v1/users/me")
	writeJSON(w, http.StatusCreated, toUserResponse(*user))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, users.ErrInvalidCredentials, h.Env)
		return
	}

	user, err := h.Users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			h.Audit.LogFromRequest(r, "", "auth.login", "user", "", "failure", nil)
		}
		writeError(w, r, err, h.Env)
		return
	}

	token, expiresAt, err := h.Tokens.Generate(user.ID, user.Email, auth.RoleFor(user.IsAdmin))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	if user.IsAdmin {
		h.Audit.LogFromRequest(r, user.ID, "auth.login", "user", user.ID, "success", nil)
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt.UTC(),
	})
}

// Me returns the caller's profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.Claims(r)
	if claims == nil {
		writeError(w, r, errMissingClaims, h.Env)
		return
	}

	user, err := h.Users.Get(r.Context(), claims.UserID())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(*user))
}
