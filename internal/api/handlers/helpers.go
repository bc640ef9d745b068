package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Togather-Foundation/campus-events/internal/api/problem"
	"github.com/Togather-Foundation/campus-events/internal/domain/events"
	"github.com/Togather-Foundation/campus-events/internal/domain/registrations"
	"github.com/Togather-Foundation/campus-events/internal/domain/users"
	"github.com/Togather-Foundation/campus-events/internal/validation"
)

var errEmptyBody = errors.New("request body is empty")

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads a single JSON object into dst. Unknown fields are rejected.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}

func pathParam(r *http.Request, key string) string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.PathValue(key))
}

// writeDecodeError answers a body that could not be decoded.
func writeDecodeError(w http.ResponseWriter, r *http.Request, err error, env string) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypePayloadTooLarge, "Payload too large", err, env,
			problem.WithDetail(fmt.Sprintf("Request body exceeds %d bytes", maxErr.Limit)))
		return
	}
	problem.Write(w, r, http.StatusBadRequest, problem.TypeBadRequest, "Invalid request", err, env,
		problem.WithDetail("Request body is not valid JSON: "+err.Error()))
}

// writeError maps domain errors to problem responses. Anything unrecognised
// is a 500 whose detail is hidden outside development.
func writeError(w http.ResponseWriter, r *http.Request, err error, env string) {
	var (
		rejection *registrations.RejectionError
		invalid   validation.Error
	)

	switch {
	case errors.As(err, &rejection):
		writeRejection(w, r, rejection, env)
	case errors.As(err, &invalid):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Validation failed", err, env,
			problem.WithDetail(invalid.Error()),
			problem.WithErrors(map[string]interface{}{invalid.Field: invalid.Message}))
	case errors.Is(err, events.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", err, env,
			problem.WithDetail("Event not found"))
	case errors.Is(err, users.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", err, env,
			problem.WithDetail("User not found"))
	case errors.Is(err, events.ErrInvalidTransition):
		problem.Write(w, r, http.StatusConflict, problem.TypeInvalidState, "Invalid status transition", err, env,
			problem.WithDetail(err.Error()))
	case errors.Is(err, users.ErrEmailTaken):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Conflict", err, env,
			problem.WithDetail("Email is already registered"))
	case errors.Is(err, registrations.ErrUnknownUser):
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", err, env,
			problem.WithDetail("Token subject no longer exists"))
	case errors.Is(err, users.ErrInvalidCredentials):
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", err, env,
			problem.WithDetail("Incorrect email or password"))
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal, "Server error", err, env)
	}
}

func writeRejection(w http.ResponseWriter, r *http.Request, rejection *registrations.RejectionError, env string) {
	status, typ := rejectionStatus(rejection.Kind)
	problem.Write(w, r, status, typ, http.StatusText(status), rejection, env,
		problem.WithDetail(rejection.Message))
}

func rejectionStatus(kind registrations.Kind) (int, string) {
	switch kind {
	case registrations.KindNotFound:
		return http.StatusNotFound, problem.TypeNotFound
	case registrations.KindInvalidState:
		return http.StatusConflict, problem.TypeInvalidState
	case registrations.KindExpired:
		return http.StatusConflict, problem.TypeExpired
	case registrations.KindCapacityReached:
		return http.StatusConflict, problem.TypeCapacityReached
	case registrations.KindAlreadyRegistered:
		return http.StatusBadRequest, problem.TypeAlreadyRegistered
	default:
		return http.StatusInternalServerError, problem.TypeInternal
	}
}
