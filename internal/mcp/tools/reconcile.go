package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/Togather-Foundation/sitelens/internal/probe"
	"github.com/Togather-Foundation/sitelens/internal/reconcile"
	"github.com/mark3labs/mcp-go/mcp"
)

// ReconcileTools exposes page reconciliation as MCP tools.
type ReconcileTools struct {
	service     *reconcile.Service
	search      probe.Adapter
	behavior    probe.Adapter
	concurrency int
}

// NewReconcileTools creates a new ReconcileTools instance. A nil adapter
// reports its source as not connected.
func NewReconcileTools(service *reconcile.Service, search, behavior probe.Adapter, concurrency int) *ReconcileTools {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ReconcileTools{
		service:     service,
		search:      search,
		behavior:    behavior,
		concurrency: concurrency,
	}
}

// ReconcilePageTool returns the MCP tool definition for one page.
func (t *ReconcileTools) ReconcilePageTool() mcp.Tool {
	return mcp.NewTool(
		"reconcile_page",
		mcp.WithDescription("Match a page URL against the search and behavior backends and return its joined report: metrics, trends, scores, benchmarks and anomaly flags."),
		mcp.WithString(
			"url",
			mcp.Required(),
			mcp.Description("Canonical page URL, absolute http(s) or a site-relative path such as /en/housing/"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}

// ReconcilePageHandler handles the reconcile_page tool call.
func (t *ReconcileTools) ReconcilePageHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t == nil || t.service == nil {
		return mcp.NewToolResultError("reconcile tools not configured"), nil
	}

	var args struct {
		URL string `json:"url"`
	}
	if err := decodeArgs(request, &args); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid arguments", err), nil
	}

	raw := strings.TrimSpace(args.URL)
	if err := reconcile.CheckURL(raw); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return toolResultJSON(t.service.Reconcile(ctx, raw, t.search, t.behavior))
}

// ReconcilePagesTool returns the MCP tool definition for a batch of pages.
func (t *ReconcileTools) ReconcilePagesTool() mcp.Tool {
	return mcp.NewTool(
		"reconcile_pages",
		mcp.WithDescription(fmt.Sprintf("Reconcile up to %d pages at once. Reports come back in input order.", reconcile.MaxBatchURLs)),
		mcp.WithArray(
			"urls",
			mcp.Required(),
			mcp.Description("Canonical page URLs, absolute http(s) or site-relative paths"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)
}

// ReconcilePagesHandler handles the reconcile_pages tool call.
func (t *ReconcileTools) ReconcilePagesHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t == nil || t.service == nil {
		return mcp.NewToolResultError("reconcile tools not configured"), nil
	}

	var args struct {
		URLs []string `json:"urls"`
	}
	if err := decodeArgs(request, &args); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid arguments", err), nil
	}
	if len(args.URLs) == 0 || len(args.URLs) > reconcile.MaxBatchURLs {
		return mcp.NewToolResultError(fmt.Sprintf("urls must hold between 1 and %d entries", reconcile.MaxBatchURLs)), nil
	}

	urls := make([]string, len(args.URLs))
	for i, raw := range args.URLs {
		urls[i] = strings.TrimSpace(raw)
		if err := reconcile.CheckURL(urls[i]); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("urls[%d]: %s", i, err.Message)), nil
		}
	}

	reports := t.service.ReconcileAll(ctx, urls, t.search, t.behavior, t.concurrency)
	return toolResultJSON(map[string]any{"reports": reports})
}
