package resources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	schemaMIMEType     = "application/json"
	openAPIResource    = "schema://openapi"
	serverInfoResource = "info://server"
)

type ServerCapabilities struct {
	Tools     bool `json:"tools"`
	Resources bool `json:"resources"`
	Prompts   bool `json:"prompts"`
}

type ServerInfo struct {
	Name         string             `json:"name"`
	Version      string             `json:"version,omitempty"`
	Sources      map[string]bool    `json:"sources,omitempty"`
	Capabilities ServerCapabilities `json:"capabilities"`
	Transport    string             `json:"transport,omitempty"`
}

// SchemaResources serves the HTTP API description and server metadata.
type SchemaResources struct {
	loadDoc func() ([]byte, error)

	infoOnce sync.Once
	infoJSON string
	infoErr  error
}

// NewSchemaResources creates a schema resources handler. loadDoc returns the
// OpenAPI document as JSON.
func NewSchemaResources(loadDoc func() ([]byte, error)) *SchemaResources {
	return &SchemaResources{loadDoc: loadDoc}
}

func (r *SchemaResources) OpenAPIResource() mcp.Resource {
	return mcp.NewResource(
		openAPIResource,
		"OpenAPI Schema",
		mcp.WithResourceDescription("OpenAPI specification for the sitelens reconciliation API"),
		mcp.WithMIMEType(schemaMIMEType),
	)
}

func (r *SchemaResources) InfoResource() mcp.Resource {
	return mcp.NewResource(
		serverInfoResource,
		"Server Info",
		mcp.WithResourceDescription("MCP server metadata, capabilities and connected sources"),
		mcp.WithMIMEType(schemaMIMEType),
	)
}

func (r *SchemaResources) OpenAPIReadHandler() func(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return func(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		content, err := r.loadOpenAPI()
		if err != nil {
			return nil, err
		}
		return textContents(request, openAPIResource, content), nil
	}
}

func (r *SchemaResources) InfoReadHandler(info ServerInfo) func(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return func(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		content, err := r.loadInfo(info)
		if err != nil {
			return nil, err
		}
		return textContents(request, serverInfoResource, content), nil
	}
}

func textContents(request mcp.ReadResourceRequest, fallbackURI, text string) []mcp.ResourceContents {
	uri := fallbackURI
	if request.Params.URI != "" {
		uri = request.Params.URI
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: schemaMIMEType,
			Text:     text,
		},
	}
}

func (r *SchemaResources) loadOpenAPI() (string, error) {
	if r.loadDoc == nil {
		return "", errors.New("load openapi: no document configured")
	}
	data, err := r.loadDoc()
	if err != nil {
		return "", fmt.Errorf("load openapi: %w", err)
	}
	return string(data), nil
}

func (r *SchemaResources) loadInfo(info ServerInfo) (string, error) {
	r.infoOnce.Do(func() {
		data, err := json.Marshal(info)
		if err != nil {
			r.infoErr = err
			return
		}
		r.infoJSON = string(data)
	})

	if r.infoErr != nil {
		return "", fmt.Errorf("load server info: %w", r.infoErr)
	}

	return r.infoJSON, nil
}
