package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installExporter(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := trace.NewTracerProvider(
		trace.WithSyncer(exporter),
		trace.WithSampler(trace.AlwaysSample()),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func attrs(kv []attribute.KeyValue) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value, len(kv))
	for _, a := range kv {
		out[a.Key] = a.Value
	}
	return out
}

func TestTracing(t *testing.T) {
	exporter := installExporter(t)

	handler := Tracing(CorrelationID(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cache", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "GET /api/v1/cache", span.Name)
	assert.Equal(t, codes.Ok, span.Status.Code)

	got := attrs(span.Attributes)
	assert.Equal(t, "GET", got["http.method"].AsString())
	assert.Equal(t, "/api/v1/cache", got["http.url"].AsString())
	assert.Equal(t, int64(200), got["http.status_code"].AsInt64())
	assert.Equal(t, "req-123", got["request_id"].AsString())
}

func TestTracing_StatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantCode codes.Code
	}{
		{name: "client error is not a span error", status: http.StatusBadRequest, wantCode: codes.Ok},
		{name: "server error marks span", status: http.StatusBadGateway, wantCode: codes.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter := installExporter(t)
			handler := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/reconcile", nil))

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.wantCode, spans[0].Status.Code)
			assert.Equal(t, int64(tt.status), attrs(spans[0].Attributes)["http.status_code"].AsInt64())
		})
	}
}

func TestSchemeFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "http", schemeFromRequest(req))

	req.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https", schemeFromRequest(req))
}

func TestTracing_PageURLAttribute(t *testing.T) {
	exporter := installExporter(t)
	handler := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/reconcile?url=/en/housing/", nil))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /api/v1/reconcile", spans[0].Name)
	assert.Equal(t, "/en/housing/", attrs(spans[0].Attributes)[PageURLAttr].AsString())
}
