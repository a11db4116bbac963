package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/Togather-Foundation/sitelens/internal/probe"
	"github.com/Togather-Foundation/sitelens/internal/sources"
)

// HealthCheck represents the health status of the server
type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// CheckResult represents the result of a single health check
type CheckResult struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// HealthChecker reports whether each analytics backend is reachable.
type HealthChecker struct {
	sources   map[string]probe.StatusReporter
	version   string
	gitCommit string
	timeout   time.Duration
}

// NewHealthChecker creates a health checker over the given backends, keyed by
// source ID. A nil reporter is reported as not connected.
func NewHealthChecker(sources map[string]probe.StatusReporter, version, gitCommit string) *HealthChecker {
	return &HealthChecker{
		sources:   sources,
		version:   version,
		gitCommit: gitCommit,
		timeout:   5 * time.Second,
	}
}

// Health returns the detailed health handler. A backend that is not connected
// only degrades the status: reports still render with neutral defaults.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
			return
		default:
		}

		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		ids := make([]string, 0, len(h.sources))
		for id := range h.sources {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		checks := make(map[string]CheckResult, len(ids))
		for _, id := range ids {
			checks[id] = h.checkSource(ctx, h.sources[id])
		}

		overallStatus := "healthy"
		statusCode := http.StatusOK
		for _, check := range checks {
			if check.Status == "fail" {
				overallStatus = "unhealthy"
				statusCode = http.StatusServiceUnavailable
				break
			} else if check.Status == "warn" && overallStatus == "healthy" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, statusCode, HealthCheck{
			Status:    overallStatus,
			Version:   h.version,
			GitCommit: h.gitCommit,
			Checks:    checks,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func (h *HealthChecker) checkSource(ctx context.Context, reporter probe.StatusReporter) CheckResult {
	if reporter == nil {
		return CheckResult{
			Status:  "warn",
			Message: "Source not configured",
		}
	}

	start := time.Now()
	err := reporter.Status(ctx)
	latency := time.Since(start).Milliseconds()

	switch {
	case err == nil:
		return CheckResult{Status: "pass", Message: "Source connected", LatencyMs: latency}
	case errors.Is(err, sources.ErrNotConnected):
		return CheckResult{
			Status:    "warn",
			Message:   "Source not connected",
			LatencyMs: latency,
			Details: map[string]any{
				"error":       err.Error(),
				"remediation": "Set the site or property identifier and an access token for this source",
			},
		}
	default:
		return CheckResult{
			Status:    "fail",
			Message:   "Source status check failed",
			LatencyMs: latency,
			Details:   map[string]any{"error": err.Error()},
		}
	}
}

// Healthz returns a liveness response.
func Healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	})
}

type healthResponse struct {
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
