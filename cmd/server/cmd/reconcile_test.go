package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/Togather-Foundation/sitelens/internal/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// searchBackend answers every search analytics query with one row, so the
// first variation probed is a match.
func searchBackend(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer search-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"rows":[{"keys":["x"],"clicks":10,"impressions":200,"ctr":0.05,"position":3}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func setBackendEnv(t *testing.T, endpoint string) {
	t.Helper()
	t.Setenv("SEARCH_SITE_URL", "https://example.org/")
	t.Setenv("SEARCH_TOKEN", "search-token")
	t.Setenv("SEARCH_ENDPOINT", endpoint)
	t.Setenv("SEARCH_RATE_LIMIT", "1000")
	t.Setenv("BEHAVIOR_PROPERTY_ID", "")
	t.Setenv("BEHAVIOR_TOKEN", "")
	t.Setenv("PROBE_ATTEMPT_DELAY", "0s")
	t.Setenv("TRACING_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("ENVIRONMENT", "test")
}

func TestReconcileCommand(t *testing.T) {
	srv, calls := searchBackend(t)
	setBackendEnv(t, srv.URL)

	out, err := executeRoot(t, "reconcile", "/en/housing/", "--compact")
	require.NoError(t, err)

	var report reconcile.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	assert.Equal(t, "/en/housing/", report.URL)
	assert.NotEmpty(t, report.ID)

	assert.True(t, report.Search.Found)
	assert.Equal(t, "/en/housing/", report.Search.MatchedURL)
	require.NotNil(t, report.Search.Search)
	assert.InDelta(t, 10, report.Search.Search.Clicks, 0.001)

	assert.False(t, report.Behavior.Found)
	assert.Contains(t, report.Behavior.Reason, "source not connected")

	assert.Positive(t, calls.Load())
}

func TestReconcileCommandInvalidConfig(t *testing.T) {
	srv, calls := searchBackend(t)
	setBackendEnv(t, srv.URL)
	t.Setenv("PROBE_MAX_ATTEMPTS", "0")

	_, err := executeRoot(t, "reconcile", "/en/housing/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config error")
	assert.Zero(t, calls.Load())
}
