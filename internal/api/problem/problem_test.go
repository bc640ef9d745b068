package problem

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, res *httptest.ResponseRecorder) ProblemDetails {
	t.Helper()
	require.Equal(t, "application/problem+json", res.Header().Get("Content-Type"))
	var body ProblemDetails
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	return body
}

func TestWrite_DevIncludesDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/events", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusBadRequest, TypeBadRequest, "Bad request", errors.New("boom"), "development")

	body := decode(t, res)
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Equal(t, "boom", body.Detail)
	require.Equal(t, "/api/v1/events", body.Instance)
	require.Equal(t, TypeBadRequest, body.Type)
}

func TestWrite_ProdSanitizesDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/events", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusInternalServerError, TypeInternal, "Internal error", errors.New("pq: connection refused"), "production")

	body := decode(t, res)
	require.Equal(t, http.StatusText(http.StatusInternalServerError), body.Detail)
}

func TestWrite_ExplicitDetailSurvivesProduction(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://example.com/api/v1/events/x/register", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusConflict, TypeCapacityReached, "Capacity reached", errors.New("rejected"), "production",
		WithDetail("Capacity Reached: event is full"))

	body := decode(t, res)
	require.Equal(t, http.StatusConflict, body.Status)
	require.Equal(t, "Capacity Reached: event is full", body.Detail)
}

func TestWrite_LogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req = req.WithContext(logger.WithContext(req.Context()))

	Write(httptest.NewRecorder(), req, http.StatusNotFound, TypeNotFound, "Not found", errors.New("missing"), "test")
	require.Contains(t, buf.String(), `"level":"warn"`)

	buf.Reset()
	Write(httptest.NewRecorder(), req, http.StatusServiceUnavailable, TypeInternal, "Unavailable", errors.New("down"), "test")
	require.Contains(t, buf.String(), `"level":"error"`)
}

func TestWrite_WithErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusUnprocessableEntity, TypeValidation, "Validation failed", nil, "test",
		WithErrors(map[string]interface{}{"title": "is required"}))

	body := decode(t, res)
	require.Equal(t, "is required", body.Errors["title"])
}
