// Package mcp exposes the reconciliation engine as a Model Context Protocol
// server over stdio, SSE, or streamable HTTP.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/Togather-Foundation/sitelens/internal/api/middleware"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"
)

// TransportType names an MCP wire transport.
type TransportType string

const (
	// TransportStdio speaks JSON-RPC over stdin/stdout. Used by desktop assistants.
	TransportStdio TransportType = "stdio"
	// TransportSSE serves the legacy Server-Sent Events transport.
	TransportSSE TransportType = "sse"
	// TransportHTTP serves the streamable HTTP transport.
	TransportHTTP TransportType = "http"
)

const (
	DefaultTransport = TransportStdio
	DefaultPort      = 8081

	// GracefulShutdownTimeout bounds how long in-flight MCP sessions get to drain.
	GracefulShutdownTimeout = 30 * time.Second
)

// ParseTransport validates a transport name.
func ParseTransport(s string) (TransportType, bool) {
	switch t := TransportType(s); t {
	case TransportStdio, TransportSSE, TransportHTTP:
		return t, true
	default:
		return "", false
	}
}

// TransportConfig selects and binds a transport. Port, Host and the rate
// limit are ignored for stdio.
type TransportConfig struct {
	Type TransportType
	Port int
	Host string

	// RateLimitPerMinute caps requests per client IP; 0 disables it.
	RateLimitPerMinute int
	// TrustedProxyCIDRs lists proxies whose X-Forwarded-For is honoured.
	TrustedProxyCIDRs []string
}

func (c *TransportConfig) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadTransportConfig reads MCP_TRANSPORT, MCP_PORT and MCP_HOST.
func LoadTransportConfig() (*TransportConfig, error) {
	cfg := &TransportConfig{
		Type: DefaultTransport,
		Port: DefaultPort,
		Host: "0.0.0.0",
	}

	if v := os.Getenv("MCP_TRANSPORT"); v != "" {
		t, ok := ParseTransport(v)
		if !ok {
			return nil, fmt.Errorf("invalid MCP_TRANSPORT value: %s (must be stdio, sse, or http)", v)
		}
		cfg.Type = t
	}

	if v := os.Getenv("MCP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MCP_PORT value: %s (must be a number)", v)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid MCP_PORT value: %d (must be between 1 and 65535)", port)
		}
		cfg.Port = port
	}

	if v := os.Getenv("MCP_HOST"); v != "" {
		cfg.Host = v
	}

	return cfg, nil
}

// Serve runs srv on the configured transport until ctx is cancelled.
func Serve(ctx context.Context, srv *server.MCPServer, cfg *TransportConfig) error {
	switch cfg.Type {
	case TransportStdio:
		return serveStdio(ctx, srv)
	case TransportSSE:
		return listen(ctx, "sse", server.NewSSEServer(srv), cfg)
	case TransportHTTP:
		return listen(ctx, "http", server.NewStreamableHTTPServer(srv), cfg)
	default:
		return fmt.Errorf("unsupported transport type: %s", cfg.Type)
	}
}

func serveStdio(ctx context.Context, srv *server.MCPServer) error {
	log.Info().Str("transport", "stdio").Msg("mcp server starting")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ServeStdio(srv); err != nil {
			errCh <- fmt.Errorf("stdio server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("mcp stdio server stopping")
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func listen(ctx context.Context, name string, handler http.Handler, cfg *TransportConfig) error {
	wrapped, err := wrapMCPHandler(handler, cfg)
	if err != nil {
		return fmt.Errorf("wrap %s handler: %w", name, err)
	}

	httpServer := &http.Server{
		Addr:              cfg.addr(),
		Handler:           wrapped,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s server: %w", name, err)
		}
		close(errCh)
	}()

	log.Info().Str("transport", name).Str("addr", httpServer.Addr).Msg("mcp server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), GracefulShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Str("transport", name).Msg("mcp shutdown failed")
			return fmt.Errorf("%s server shutdown: %w", name, err)
		}
		log.Info().Str("transport", name).Msg("mcp server stopped")
		return nil
	case err := <-errCh:
		return err
	}
}

// wrapMCPHandler applies the same per-IP limit and request IDs the REST
// reconcile routes use.
func wrapMCPHandler(handler http.Handler, cfg *TransportConfig) (http.Handler, error) {
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}
	wrapped := middleware.RateLimit(cfg.RateLimitPerMinute, cfg.TrustedProxyCIDRs)(handler)
	return middleware.CorrelationID(log.Logger)(wrapped), nil
}
