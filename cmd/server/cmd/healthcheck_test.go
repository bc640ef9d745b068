package cmd

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func healthServer(t *testing.T, status int, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/health"
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exit *exitError
	require.True(t, errors.As(err, &exit), "expected exitError, got %v", err)
	return exit.code
}

func TestCheckHealth(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode int
	}{
		{"healthy", http.StatusOK, `{"status":"healthy"}`, 0},
		{"degraded still passes", http.StatusOK, `{"status":"degraded"}`, 0},
		{"unhealthy body", http.StatusOK, `{"status":"unhealthy"}`, 1},
		{"service unavailable", http.StatusServiceUnavailable, `{"status":"unhealthy"}`, 1},
		{"invalid json", http.StatusOK, `not json`, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkHealth(context.Background(), healthServer(t, tt.status, tt.body))
			if tt.wantCode == 0 {
				require.NoError(t, err)
				return
			}
			require.Equal(t, tt.wantCode, exitCode(t, err))
		})
	}
}

func TestCheckHealth_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/health"
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.Equal(t, 1, exitCode(t, checkHealth(ctx, url)))
}

func TestDefaultHealthURL(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	require.Equal(t, "http://localhost:8080/health", defaultHealthURL())

	t.Setenv("SERVER_PORT", "9999")
	require.Equal(t, "http://localhost:9999/health", defaultHealthURL())
}

func TestHealthcheckCommand_UsesURLFlag(t *testing.T) {
	url := healthServer(t, http.StatusOK, `{"status":"healthy"}`)

	_, err := execute(t, "healthcheck", "--url", url, "--timeout", "2s")
	require.NoError(t, err)
}
