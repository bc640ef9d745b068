package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Togather-Foundation/campus-events/internal/api/middleware"
	"github.com/Togather-Foundation/campus-events/internal/domain/registrations"
)

type RegistrationService interface {
	Register(ctx context.Context, eventID, userID string) (*registrations.Admission, error)
	ForUser(ctx context.Context, userID string) ([]registrations.UserRegistration, error)
	Attendees(ctx context.Context, eventID string) ([]registrations.Attendee, error)
}

type RegistrationsHandler struct {
	Service RegistrationService
	Env     string
}

func NewRegistrationsHandler(service RegistrationService, env string) *RegistrationsHandler {
	return &RegistrationsHandler{Service: service, Env: env}
}

type registrationResponse struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	EventID          string    `json:"event_id"`
	RegistrationDate time.Time `json:"registration_date"`
	ConflictWarning  string    `json:"conflict_warning,omitempty"`
}

type userRegistrationResponse struct {
	ID               string    `json:"id"`
	EventID          string    `json:"event_id"`
	EventTitle       string    `json:"event_title"`
	EventDateTime    time.Time `json:"event_date_time"`
	EventStatus      string    `json:"event_status"`
	RegistrationDate time.Time `json:"registration_date"`
}

type attendeeResponse struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	FullName         string    `json:"full_name"`
	Email            string    `json:"email"`
	RegistrationDate time.Time `json:"registration_date"`
}

// Register runs the registration policy for the caller against {id}.
func (h *RegistrationsHandler) Register(w http.ResponseWriter, r *http.Request) {
	claims := middleware.Claims(r)
	if claims == nil {
		writeError(w, r, errMissingClaims, h.Env)
		return
	}

	admission, err := h.Service.Register(r.Context(), pathParam(r, "id"), claims.UserID())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	writeJSON(w, http.StatusCreated, registrationResponse{
		ID:               admission.ID,
		UserID:           admission.UserID,
		EventID:          admission.EventID,
		RegistrationDate: admission.RegistrationDate.UTC(),
		ConflictWarning:  admission.ConflictWarning,
	})
}

func (h *RegistrationsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	claims := middleware.Claims(r)
	if claims == nil {
		writeError(w, r, errMissingClaims, h.Env)
		return
	}

	list, err := h.Service.ForUser(r.Context(), claims.UserID())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	items := make([]userRegistrationResponse, 0, len(list))
	for _, reg := range list {
		items = append(items, userRegistrationResponse{
			ID:               reg.ID,
			EventID:          reg.EventID,
			EventTitle:       reg.EventTitle,
			EventDateTime:    reg.EventDateTime.UTC(),
			EventStatus:      string(reg.EventStatus),
			RegistrationDate: reg.RegistrationDate.UTC(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Attendees lists everyone registered for {id}. Admin only.
func (h *RegistrationsHandler) Attendees(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.Attendees(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	items := make([]attendeeResponse, 0, len(list))
	for _, a := range list {
		items = append(items, attendeeResponse{
			ID:               a.ID,
			UserID:           a.UserID,
			FullName:         a.FullName,
			Email:            a.Email,
			RegistrationDate: a.RegistrationDate.UTC(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}
