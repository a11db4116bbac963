package resources

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func staticDoc(doc string) func() ([]byte, error) {
	return func() ([]byte, error) { return []byte(doc), nil }
}

func TestSchemaResources_OpenAPIResource(t *testing.T) {
	r := NewSchemaResources(staticDoc(`{}`))

	resource := r.OpenAPIResource()

	if resource.URI != openAPIResource {
		t.Errorf("OpenAPIResource() URI = %v, want %v", resource.URI, openAPIResource)
	}
	if resource.Name != "OpenAPI Schema" {
		t.Errorf("OpenAPIResource() Name = %v, want %v", resource.Name, "OpenAPI Schema")
	}
	if resource.MIMEType != schemaMIMEType {
		t.Errorf("OpenAPIResource() MIMEType = %v, want %v", resource.MIMEType, schemaMIMEType)
	}
}

func TestSchemaResources_InfoResource(t *testing.T) {
	r := NewSchemaResources(nil)

	resource := r.InfoResource()

	if resource.URI != serverInfoResource {
		t.Errorf("InfoResource() URI = %v, want %v", resource.URI, serverInfoResource)
	}
	if resource.Name != "Server Info" {
		t.Errorf("InfoResource() Name = %v, want %v", resource.Name, "Server Info")
	}
}

func TestSchemaResources_OpenAPIReadHandler(t *testing.T) {
	r := NewSchemaResources(staticDoc(`{"openapi":"3.0.3"}`))

	contents, err := r.OpenAPIReadHandler()(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("OpenAPIReadHandler() error = %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("OpenAPIReadHandler() returned %d contents, want 1", len(contents))
	}

	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("OpenAPIReadHandler() content type = %T, want TextResourceContents", contents[0])
	}
	if text.URI != openAPIResource {
		t.Errorf("URI = %v, want %v", text.URI, openAPIResource)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(text.Text), &doc); err != nil {
		t.Fatalf("OpenAPIReadHandler() returned invalid JSON: %v", err)
	}
	if doc["openapi"] != "3.0.3" {
		t.Errorf("openapi = %v, want 3.0.3", doc["openapi"])
	}
}

func TestSchemaResources_OpenAPIReadHandler_Errors(t *testing.T) {
	failing := NewSchemaResources(func() ([]byte, error) { return nil, errors.New("boom") })
	if _, err := failing.OpenAPIReadHandler()(context.Background(), mcp.ReadResourceRequest{}); err == nil {
		t.Error("expected error from failing loader")
	}

	missing := NewSchemaResources(nil)
	if _, err := missing.OpenAPIReadHandler()(context.Background(), mcp.ReadResourceRequest{}); err == nil {
		t.Error("expected error without a loader")
	}
}

func TestSchemaResources_InfoReadHandler(t *testing.T) {
	r := NewSchemaResources(nil)
	info := ServerInfo{
		Name:         "sitelens",
		Version:      "1.0.0",
		Sources:      map[string]bool{"search": true, "behavior": false},
		Capabilities: ServerCapabilities{Tools: true, Resources: true, Prompts: true},
		Transport:    "stdio",
	}

	req := mcp.ReadResourceRequest{}
	req.Params.URI = "info://server"
	contents, err := r.InfoReadHandler(info)(context.Background(), req)
	if err != nil {
		t.Fatalf("InfoReadHandler() error = %v", err)
	}

	text := contents[0].(mcp.TextResourceContents)
	var got ServerInfo
	if err := json.Unmarshal([]byte(text.Text), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Name != "sitelens" || !got.Sources["search"] || got.Sources["behavior"] {
		t.Errorf("InfoReadHandler() = %+v", got)
	}
}
