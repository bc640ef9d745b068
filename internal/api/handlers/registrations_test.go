package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Togather-Foundation/campus-events/internal/api/problem"
	"github.com/Togather-Foundation/campus-events/internal/auth"
	"github.com/Togather-Foundation/campus-events/internal/domain/events"
	"github.com/Togather-Foundation/campus-events/internal/domain/registrations"
	"github.com/stretchr/testify/require"
)

type stubRegistrationService struct {
	registerFn  func(eventID, userID string) (*registrations.Admission, error)
	forUserFn   func(userID string) ([]registrations.UserRegistration, error)
	attendeesFn func(eventID string) ([]registrations.Attendee, error)
}

func (s stubRegistrationService) Register(_ context.Context, eventID, userID string) (*registrations.Admission, error) {
	return s.registerFn(eventID, userID)
}

func (s stubRegistrationService) ForUser(_ context.Context, userID string) ([]registrations.UserRegistration, error) {
	return s.forUserFn(userID)
}

func (s stubRegistrationService) Attendees(_ context.Context, eventID string) ([]registrations.Attendee, error) {
	return s.attendeesFn(eventID)
}

func TestRegistrationsHandler_RegisterCreated(t *testing.T) {
	var gotEvent, gotUser string
	h := NewRegistrationsHandler(stubRegistrationService{registerFn: func(eventID, userID string) (*registrations.Admission, error) {
		gotEvent, gotUser = eventID, userID
		return &registrations.Admission{
			Registration: registrations.Registration{
				ID:               "01JTESTREGISTRATION0000000",
				UserID:           userID,
				EventID:          eventID,
				RegistrationDate: fixedTime,
			},
			ConflictWarning: `Potential time conflict with "Chess Night" at 2026-03-14T19:00:00Z`,
		}, nil
	}}, "test")

	req := withClaims(httptest.NewRequest(http.MethodPost, "/api/v1/events/e1/register", nil), "u1", auth.RoleStudent)
	rec := serve("POST /api/v1/events/{id}/register", h.Register, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "e1", gotEvent)
	require.Equal(t, "u1", gotUser)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "01JTESTREGISTRATION0000000", body["id"])
	require.Equal(t, "u1", body["user_id"])
	require.Equal(t, "e1", body["event_id"])
	require.Equal(t, "2026-03-14T18:00:00Z", body["registration_date"])
	require.Contains(t, body["conflict_warning"], "Chess Night")
}

func TestRegistrationsHandler_RegisterOmitsEmptyWarning(t *testing.T) {
	h := NewRegistrationsHandler(stubRegistrationService{registerFn: func(eventID, userID string) (*registrations.Admission, error) {
		return &registrations.Admission{Registration: registrations.Registration{ID: "r1", UserID: userID, EventID: eventID}}, nil
	}}, "test")

	req := withClaims(httptest.NewRequest(http.MethodPost, "/api/v1/events/e1/register", nil), "u1", auth.RoleStudent)
	rec := serve("POST /api/v1/events/{id}/register", h.Register, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotContains(t, rec.Body.String(), "conflict_warning")
}

func TestRegistrationsHandler_RejectionMapping(t *testing.T) {
	tests := []struct {
		kind    registrations.Kind
		message string
		status  int
		typ     string
	}{
		{registrations.KindNotFound, "Event not found", http.StatusNotFound, problem.TypeNotFound},
		{registrations.KindInvalidState, "Event has been cancelled", http.StatusConflict, problem.TypeInvalidState},
		{registrations.KindExpired, "Expired: event has already ended", http.StatusConflict, problem.TypeExpired},
		{registrations.KindAlreadyRegistered, "Already registered for this event", http.StatusBadRequest, problem.TypeAlreadyRegistered},
		{registrations.KindCapacityReached, "Capacity Reached: event is full", http.StatusConflict, problem.TypeCapacityReached},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			h := NewRegistrationsHandler(stubRegistrationService{registerFn: func(string, string) (*registrations.Admission, error) {
				return nil, &registrations.RejectionError{Kind: tt.kind, Message: tt.message}
			}}, "production")

			req := withClaims(httptest.NewRequest(http.MethodPost, "/api/v1/events/e1/register", nil), "u1", auth.RoleStudent)
			rec := serve("POST /api/v1/events/{id}/register", h.Register, req)

			require.Equal(t, tt.status, rec.Code)
			body := decodeProblem(t, rec)
			require.Equal(t, tt.message, body["detail"])
			require.Equal(t, tt.typ, body["type"])
		})
	}
}

func TestRegistrationsHandler_RegisterUnknownUser(t *testing.T) {
	h := NewRegistrationsHandler(stubRegistrationService{registerFn: func(string, string) (*registrations.Admission, error) {
		return nil, fmt.Errorf("register for event: create registration: %w", registrations.ErrUnknownUser)
	}}, "production")

	req := withClaims(httptest.NewRequest(http.MethodPost, "/api/v1/events/e1/register", nil), "gone", auth.RoleStudent)
	rec := serve("POST /api/v1/events/{id}/register", h.Register, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeProblem(t, rec)
	require.Equal(t, problem.TypeUnauthorized, body["type"])
	require.Equal(t, "Token subject no longer exists", body["detail"])
}

func TestRegistrationsHandler_RegisterWithoutClaims(t *testing.T) {
	h := NewRegistrationsHandler(stubRegistrationService{}, "test")

	rec := serve("POST /api/v1/events/{id}/register", h.Register, httptest.NewRequest(http.MethodPost, "/api/v1/events/e1/register", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRegistrationsHandler_Mine(t *testing.T) {
	h := NewRegistrationsHandler(stubRegistrationService{forUserFn: func(userID string) ([]registrations.UserRegistration, error) {
		require.Equal(t, "u1", userID)
		return []registrations.UserRegistration{{
			Registration:  registrations.Registration{ID: "r1", UserID: "u1", EventID: "e1", RegistrationDate: fixedTime},
			EventTitle:    "Robotics Club Kickoff",
			EventDateTime: fixedTime,
			EventStatus:   events.StatusUpcoming,
		}}, nil
	}}, "test")

	req := withClaims(httptest.NewRequest(http.MethodGet, "/api/v1/users/me/registrations", nil), "u1", auth.RoleStudent)
	rec := serve("GET /api/v1/users/me/registrations", h.Mine, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Items []userRegistrationResponse `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	require.Equal(t, "Robotics Club Kickoff", body.Items[0].EventTitle)
	require.Equal(t, "upcoming", body.Items[0].EventStatus)
}

func TestRegistrationsHandler_Attendees(t *testing.T) {
	h := NewRegistrationsHandler(stubRegistrationService{attendeesFn: func(eventID string) ([]registrations.Attendee, error) {
		if eventID == "missing" {
			return nil, events.ErrNotFound
		}
		return []registrations.Attendee{
			{Registration: registrations.Registration{ID: "r1", UserID: "u1"}, FullName: "Ada Lovelace", Email: "ada@example.edu"},
			{Registration: registrations.Registration{ID: "r2", UserID: "u2"}, FullName: "Alan Turing", Email: "alan@example.edu"},
		}, nil
	}}, "test")

	rec := serve("GET /api/v1/events/{id}/registrations", h.Attendees, httptest.NewRequest(http.MethodGet, "/api/v1/events/e1/registrations", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items []attendeeResponse `json:"items"`
		Count int                `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body.Count)
	require.Equal(t, "ada@example.edu", body.Items[0].Email)

	rec = serve("GET /api/v1/events/{id}/registrations", h.Attendees, httptest.NewRequest(http.MethodGet, "/api/v1/events/missing/registrations", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
