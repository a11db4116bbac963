package mcp

import (
	"context"

	"github.com/Togather-Foundation/sitelens/internal/audit"
	"github.com/Togather-Foundation/sitelens/internal/mcp/prompts"
	"github.com/Togather-Foundation/sitelens/internal/mcp/resources"
	"github.com/Togather-Foundation/sitelens/internal/mcp/tools"
	"github.com/Togather-Foundation/sitelens/internal/probe"
	"github.com/Togather-Foundation/sitelens/internal/reconcile"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server with the reconciliation service.
// It exposes page reports and the match cache as MCP tools, the HTTP API
// description as a resource, and review workflows as prompts.
type Server struct {
	mcp *mcpserver.MCPServer

	reconcileTools *tools.ReconcileTools
	cacheTools     *tools.CacheTools
	schema         *resources.SchemaResources
	prompts        *prompts.PromptTemplates
	info           resources.ServerInfo
}

// Config holds configuration for the MCP server.
type Config struct {
	Name        string
	Version     string
	Transport   string
	Concurrency int
	// OpenAPI returns the HTTP API description as JSON.
	OpenAPI func() ([]byte, error)
	// Audit records cache clears; nil disables auditing.
	Audit *audit.Logger
}

// NewServer creates a new MCP server over service. A nil adapter reports its
// source as not connected.
//
// Example usage:
//
//	srv := mcp.NewServer(mcp.Config{
//	    Name:    "sitelens",
//	    Version: "1.0.0",
//	}, service, searchAdapter, behaviorAdapter)
func NewServer(cfg Config, service *reconcile.Service, search, behavior probe.Adapter) *Server {
	mcpServer := mcpserver.NewMCPServer(
		cfg.Name,
		cfg.Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithPromptCapabilities(true),
		mcpserver.WithRecovery(),
		mcpserver.WithInstructions("MCP server for sitelens - per-page search performance and on-site behavior reports matched across URL forms"),
	)

	srv := &Server{
		mcp:            mcpServer,
		reconcileTools: tools.NewReconcileTools(service, search, behavior, cfg.Concurrency),
		cacheTools:     tools.NewCacheTools(service, cfg.Audit),
		schema:         resources.NewSchemaResources(cfg.OpenAPI),
		prompts:        prompts.NewPromptTemplates(),
		info: resources.ServerInfo{
			Name:    cfg.Name,
			Version: cfg.Version,
			Sources: map[string]bool{
				"search":   connected(search),
				"behavior": connected(behavior),
			},
			Capabilities: resources.ServerCapabilities{Tools: true, Resources: true, Prompts: true},
			Transport:    cfg.Transport,
		},
	}

	srv.registerTools()
	srv.registerResources()
	srv.registerPrompts()

	return srv
}

// MCPServer returns the underlying MCP server for use with transports.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

func (s *Server) registerTools() {
	s.mcp.AddTool(s.reconcileTools.ReconcilePageTool(), s.reconcileTools.ReconcilePageHandler)
	s.mcp.AddTool(s.reconcileTools.ReconcilePagesTool(), s.reconcileTools.ReconcilePagesHandler)
	s.mcp.AddTool(s.cacheTools.ListCacheTool(), s.cacheTools.ListCacheHandler)
	s.mcp.AddTool(s.cacheTools.ClearCacheTool(), s.cacheTools.ClearCacheHandler)
}

func (s *Server) registerResources() {
	s.mcp.AddResource(s.schema.OpenAPIResource(), s.schema.OpenAPIReadHandler())
	s.mcp.AddResource(s.schema.InfoResource(), s.schema.InfoReadHandler(s.info))
}

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(s.prompts.PageReviewPrompt(), s.prompts.PageReviewHandler)
	s.mcp.AddPrompt(s.prompts.SectionTriagePrompt(), s.prompts.SectionTriageHandler)
	s.mcp.AddPrompt(s.prompts.ExplainAnomaliesPrompt(), s.prompts.ExplainAnomaliesHandler)
}

// connected reports whether adapter is present and, when it can tell, has
// credentials.
func connected(adapter probe.Adapter) bool {
	if adapter == nil {
		return false
	}
	if reporter, ok := adapter.(probe.StatusReporter); ok {
		return reporter.Status(context.Background()) == nil
	}
	return true
}
