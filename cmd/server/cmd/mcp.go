package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/Togather-Foundation/sitelens/internal/api"
	"github.com/Togather-Foundation/sitelens/internal/audit"
	"github.com/Togather-Foundation/sitelens/internal/mcp"
	"github.com/spf13/cobra"
)

var (
	mcpTransport string
	mcpHost      string
	mcpPort      int
)

// mcpCmd serves reconciliation tools over the Model Context Protocol
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve reconciliation tools over MCP",
	Long: `Start a Model Context Protocol server exposing page reports and the match
cache as tools, the HTTP API description as a resource, and review prompts.

Transport defaults to stdio; all logs go to stderr so stdout stays a clean
protocol stream. SSE and streamable HTTP transports apply the same per-IP
rate limit as the reconcile API.

Environment:
  MCP_TRANSPORT  stdio, sse or http (default: stdio)
  MCP_HOST       bind address for sse/http (default: 0.0.0.0)
  MCP_PORT       port for sse/http (default: 8081)`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpTransport, "transport", "", "transport: stdio, sse or http (default: MCP_TRANSPORT)")
	mcpCmd.Flags().StringVar(&mcpHost, "host", "", "bind address for sse/http (default: MCP_HOST)")
	mcpCmd.Flags().IntVar(&mcpPort, "port", 0, "port for sse/http (default: MCP_PORT)")
}

func runMCP(cmd *cobra.Command, args []string) error {
	transport, err := mcp.LoadTransportConfig()
	if err != nil {
		return fmt.Errorf("mcp transport: %w", err)
	}
	if mcpTransport != "" {
		t, ok := mcp.ParseTransport(mcpTransport)
		if !ok {
			return fmt.Errorf("invalid --transport %q (must be stdio, sse, or http)", mcpTransport)
		}
		transport.Type = t
	}
	if mcpHost != "" {
		transport.Host = mcpHost
	}
	if mcpPort != 0 {
		transport.Port = mcpPort
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	transport.RateLimitPerMinute = a.cfg.Server.RateLimitPerMinute
	transport.TrustedProxyCIDRs = a.cfg.Server.TrustedProxyCIDRs

	srv := mcp.NewServer(mcp.Config{
		Name:        "sitelens",
		Version:     Version,
		Transport:   string(transport.Type),
		Concurrency: a.cfg.Probe.Concurrency,
		OpenAPI:     api.OpenAPIJSON,
		Audit:       audit.NewLogger(a.logger),
	}, a.service, a.search, a.behavior)

	a.logger.Info().
		Str("transport", string(transport.Type)).
		Msg("starting MCP server")

	if err := mcp.Serve(ctx, srv.MCPServer(), transport); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	a.logger.Info().Msg("MCP server stopped")
	return nil
}
