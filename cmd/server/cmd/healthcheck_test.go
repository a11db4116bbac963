package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthServer(status int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestCheckHealth(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus string
		wantErr    bool
	}{
		{
			name:       "healthy",
			status:     http.StatusOK,
			body:       `{"status":"healthy","checks":{"search":{"status":"pass"}}}`,
			wantStatus: "healthy",
		},
		{
			name:       "degraded",
			status:     http.StatusOK,
			body:       `{"status":"degraded","checks":{"behavior":{"status":"warn","message":"Source not connected"}}}`,
			wantStatus: "degraded",
		},
		{
			name:       "unhealthy still decoded",
			status:     http.StatusServiceUnavailable,
			body:       `{"status":"unhealthy","checks":{"search":{"status":"fail"}}}`,
			wantStatus: "unhealthy",
		},
		{
			name:    "unexpected status",
			status:  http.StatusInternalServerError,
			body:    `{}`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			status:  http.StatusOK,
			body:    `not json`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := healthServer(tt.status, tt.body)
			defer srv.Close()

			got, err := checkHealth(context.Background(), srv.Client(), srv.URL)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
		})
	}
}

func TestCheckHealthConnectionRefused(t *testing.T) {
	srv := healthServer(http.StatusOK, `{"status":"healthy"}`)
	url := srv.URL
	srv.Close()

	_, err := checkHealth(context.Background(), http.DefaultClient, url)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health check failed")
}

func TestAcceptable(t *testing.T) {
	assert.True(t, acceptable("healthy", false))
	assert.True(t, acceptable("healthy", true))
	assert.True(t, acceptable("degraded", false))
	assert.False(t, acceptable("degraded", true))
	assert.False(t, acceptable("unhealthy", false))
	assert.False(t, acceptable("shutting_down", false))
}

func TestHealthcheckCommand(t *testing.T) {
	srv := healthServer(http.StatusOK, `{"status":"degraded","checks":{"behavior":{"status":"warn","message":"Source not connected"}}}`)
	defer srv.Close()

	out, err := executeRoot(t, "healthcheck", "--url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "degraded")

	out, err = executeRoot(t, "healthcheck", "--url", srv.URL, "--strict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server status: degraded")
	assert.Contains(t, out, "behavior: warn Source not connected")
}
