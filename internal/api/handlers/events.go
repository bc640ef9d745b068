package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Togather-Foundation/campus-events/internal/api/middleware"
	"github.com/Togather-Foundation/campus-events/internal/audit"
	"github.com/Togather-Foundation/campus-events/internal/domain/events"
)

type EventService interface {
	List(ctx context.Context, filters events.Filters) ([]events.Event, error)
	Get(ctx context.Context, id string) (*events.Event, error)
	Create(ctx context.Context, params events.CreateParams) (*events.Event, error)
	Update(ctx context.Context, id string, params events.UpdateParams) (*events.Event, error)
	Delete(ctx context.Context, id string) error
}

type EventsHandler struct {
	Service EventService
	Audit   *audit.Logger
	Env     string
}

func NewEventsHandler(service EventService, auditLogger *audit.Logger, env string) *EventsHandler {
	return &EventsHandler{Service: service, Audit: auditLogger, Env: env}
}

type eventResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	DateTime    time.Time `json:"date_time"`
	Capacity    int       `json:"capacity"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type eventListResponse struct {
	Items []eventResponse `json:"items"`
	Skip  int             `json:"skip"`
	Limit int             `json:"limit"`
}

func toEventResponse(e events.Event) eventResponse {
	return eventResponse{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		DateTime:    e.DateTime.UTC(),
		Capacity:    e.Capacity,
		Status:      string(e.Status),
		CreatedAt:   e.CreatedAt.UTC(),
		UpdatedAt:   e.UpdatedAt.UTC(),
	}
}

func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters, err := events.ParseFilters(r.URL.Query())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	list, err := h.Service.List(r.Context(), filters)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	items := make([]eventResponse, 0, len(list))
	for _, event := range list {
		items = append(items, toEventResponse(event))
	}
	writeJSON(w, http.StatusOK, eventListResponse{Items: items, Skip: filters.Skip, Limit: filters.Limit})
}

func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, err := h.Service.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(*event))
}

func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var params events.CreateParams
	if err := decodeJSON(r, &params); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	event, err := h.Service.Create(r.Context(), params)
	if err != nil {
		h.auditFailure(r, "event.create", "", err)
		writeError(w, r, err, h.Env)
		return
	}

	h.Audit.LogFromRequest(r, actorOf(r), "event.create", "event", event.ID, "success", map[string]string{
		"title":    event.Title,
		"capacity": strconv.Itoa(event.Capacity),
	})
	w.Header().Set("Location", "/api/v1/events/"+event.ID)
	writeJSON(w, http.StatusCreated, toEventResponse(*event))
}

// Update applies a partial update; omitted fields keep their values.
func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var params events.UpdateParams
	if err := decodeJSON(r, &params); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	event, err := h.Service.Update(r.Context(), id, params)
	if err != nil {
		h.auditFailure(r, "event.update", id, err)
		writeError(w, r, err, h.Env)
		return
	}

	details := map[string]string{}
	if params.Status != nil {
		details["status"] = string(event.Status)
	}
	if params.Capacity != nil {
		details["capacity"] = strconv.Itoa(event.Capacity)
	}
	h.Audit.LogFromRequest(r, actorOf(r), "event.update", "event", event.ID, "success", details)
	writeJSON(w, http.StatusOK, toEventResponse(*event))
}

func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if err := h.Service.Delete(r.Context(), id); err != nil {
		h.auditFailure(r, "event.delete", id, err)
		writeError(w, r, err, h.Env)
		return
	}

	h.Audit.LogFromRequest(r, actorOf(r), "event.delete", "event", id, "success", nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *EventsHandler) auditFailure(r *http.Request, action, id string, err error) {
	h.Audit.LogFromRequest(r, actorOf(r), action, "event", id, "failure", map[string]string{"error": err.Error()})
}

func actorOf(r *http.Request) string {
	if claims := middleware.Claims(r); claims != nil {
		return claims.UserID()
	}
	return ""
}
