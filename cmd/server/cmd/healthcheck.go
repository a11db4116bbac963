package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// healthcheckCmd represents the healthcheck command
	healthcheckCmd = &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is healthy",
		Long: `Performs a health check by calling the /health endpoint.

Used as a container HEALTHCHECK. A degraded server (a backend without
credentials) still passes unless --strict is set, because reports keep
rendering with neutral defaults.`,
		RunE: runHealthcheck,
	}

	healthcheckTimeout time.Duration
	healthcheckURL     string
	healthcheckStrict  bool
)

func init() {
	healthcheckCmd.Flags().DurationVar(&healthcheckTimeout, "timeout", 5*time.Second, "request timeout")
	healthcheckCmd.Flags().StringVar(&healthcheckURL, "url", "", "health check URL (default: http://localhost:{SERVER_PORT}/health)")
	healthcheckCmd.Flags().BoolVar(&healthcheckStrict, "strict", false, "fail when the server is degraded")
}

// HealthResponse is the subset of the /health body the check reads.
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is one backend's entry in HealthResponse.
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	url := healthcheckURL
	if url == "" {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		url = fmt.Sprintf("http://localhost:%s/health", port)
	}

	ctx, cancel := context.WithTimeout(context.Background(), healthcheckTimeout)
	defer cancel()

	resp, err := checkHealth(ctx, http.DefaultClient, url)
	if err != nil {
		return err
	}
	if !acceptable(resp.Status, healthcheckStrict) {
		for name, check := range resp.Checks {
			if check.Status != "pass" {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s %s\n", name, check.Status, check.Message)
			}
		}
		return fmt.Errorf("server status: %s", resp.Status)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", resp.Status)
	return nil
}

// checkHealth fetches and decodes the health endpoint. A 503 still carries a
// body worth decoding; any other non-200 status is an error.
func checkHealth(ctx context.Context, client *http.Client, url string) (HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return HealthResponse{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return HealthResponse{}, fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return HealthResponse{}, fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return HealthResponse{}, fmt.Errorf("parse health response: %w", err)
	}
	return health, nil
}

func acceptable(status string, strict bool) bool {
	switch status {
	case "healthy":
		return true
	case "degraded":
		return !strict
	default:
		return false
	}
}
