package tools

import (
	"context"
	"strconv"

	"github.com/Togather-Foundation/sitelens/internal/audit"
	"github.com/Togather-Foundation/sitelens/internal/reconcile"
	"github.com/mark3labs/mcp-go/mcp"
)

// CacheTools exposes the match cache for inspection and reset.
type CacheTools struct {
	service *reconcile.Service
	audit   *audit.Logger
}

// NewCacheTools creates CacheTools. auditLogger may be nil.
func NewCacheTools(service *reconcile.Service, auditLogger *audit.Logger) *CacheTools {
	return &CacheTools{service: service, audit: auditLogger}
}

func (t *CacheTools) ListCacheTool() mcp.Tool {
	return mcp.NewTool(
		"list_cached_matches",
		mcp.WithDescription("List the cached match keys, one per source and canonical URL, formatted as source|url."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)
}

func (t *CacheTools) ListCacheHandler(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t == nil || t.service == nil {
		return mcp.NewToolResultError("cache tools not configured"), nil
	}
	keys := t.service.ListCacheKeys()
	return toolResultJSON(map[string]any{"keys": keys, "count": len(keys)})
}

func (t *CacheTools) ClearCacheTool() mcp.Tool {
	return mcp.NewTool(
		"clear_match_cache",
		mcp.WithDescription("Forget every cached match and miss so the next reconcile probes the backends again."),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)
}

func (t *CacheTools) ClearCacheHandler(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t == nil || t.service == nil {
		return mcp.NewToolResultError("cache tools not configured"), nil
	}
	cleared := len(t.service.ListCacheKeys())
	t.service.ClearCache()
	t.audit.LogSuccess("cache.clear", "mcp", "match_cache", map[string]string{"cleared": strconv.Itoa(cleared)})
	return toolResultJSON(map[string]any{"cleared": cleared})
}
