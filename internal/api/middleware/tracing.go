package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Togather-Foundation/sitelens/internal/api"

// PageURLAttr carries the page a reconcile request asked about.
const PageURLAttr = attribute.Key("sitelens.page_url")

// Tracing starts a server span per request, continuing any W3C trace context
// the caller sent. Mount it outside CorrelationID so the request ID is
// visible when the span closes. Only 5xx responses mark the span as failed;
// a page a backend could not find is still a successful request.
func Tracing(next http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)
	propagator := otel.GetTextMapPropagator()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		attrs := []attribute.KeyValue{
			semconv.HTTPMethod(r.Method),
			semconv.HTTPURL(r.URL.String()),
			semconv.HTTPRoute(r.URL.Path),
			semconv.HTTPScheme(schemeFromRequest(r)),
			semconv.NetHostName(r.Host),
			attribute.String("http.user_agent", r.UserAgent()),
		}
		if page := r.URL.Query().Get("url"); page != "" {
			attrs = append(attrs, PageURLAttr.String(page))
		}

		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))

		span.SetAttributes(semconv.HTTPStatusCode(sw.status))
		if id := w.Header().Get(RequestIDHeader); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}
		if sw.status >= 500 {
			span.SetStatus(codes.Error, http.StatusText(sw.status))
			return
		}
		span.SetStatus(codes.Ok, "")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func schemeFromRequest(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
