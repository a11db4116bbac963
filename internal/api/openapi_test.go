package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAPIHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	OpenAPIHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/openapi.json", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var doc struct {
		OpenAPI string                    `json:"openapi"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&doc))
	assert.Equal(t, "3.0.3", doc.OpenAPI)

	for path, methods := range map[string][]string{
		"/healthz":                {"get"},
		"/health":                 {"get"},
		"/metrics":                {"get"},
		"/version":                {"get"},
		"/api/v1/reconcile":       {"get"},
		"/api/v1/reconcile/batch": {"post"},
		"/api/v1/cache":           {"get", "delete"},
		"/api/v1/openapi.json":    {"get"},
	} {
		require.Contains(t, doc.Paths, path)
		for _, m := range methods {
			assert.Contains(t, doc.Paths[path], m, path)
		}
	}
}

func TestOpenAPIHandlerCaching(t *testing.T) {
	handler := OpenAPIHandler()

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/v1/openapi.json", nil))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/v1/openapi.json", nil))

	assert.Equal(t, first.Body.String(), second.Body.String())
}
