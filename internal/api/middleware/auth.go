package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/Togather-Foundation/campus-events/internal/api/problem"
	"github.com/Togather-Foundation/campus-events/internal/auth"
)

type contextKey string

const claimsKey contextKey = "claims"

var errAdminRequired = errors.New("administrator role required")

// TokenValidator is satisfied by *auth.JWTManager.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// WithClaims stores verified claims on the context.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// Claims returns the claims RequireAuth attached, or nil.
func Claims(r *http.Request) *auth.Claims {
	if r == nil {
		return nil
	}
	return ClaimsFromContext(r.Context())
}

func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(validator TokenValidator, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				writeUnauthorized(w, r, err, env)
				return
			}

			claims, err := validator.Validate(token)
			if err != nil {
				writeUnauthorized(w, r, err, env)
				return
			}

			logger := LoggerFromContext(r.Context()).With().Str("user_id", claims.UserID()).Logger()
			ctx := logger.WithContext(WithClaims(r.Context(), claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must run after RequireAuth. Non-admins receive 403.
func RequireAdmin(env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := Claims(r)
			if claims == nil {
				writeUnauthorized(w, r, auth.ErrMissingToken, env)
				return
			}
			if !auth.IsAdmin(claims.Role) {
				problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Forbidden", errAdminRequired, env,
					problem.WithDetail("Administrator access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, err error, env string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="campus-events"`)
	problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", err, env,
		problem.WithDetail("Missing or invalid bearer token"))
}
