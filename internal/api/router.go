package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/Togather-Foundation/sitelens/internal/analytics"
	"github.com/Togather-Foundation/sitelens/internal/api/handlers"
	"github.com/Togather-Foundation/sitelens/internal/api/middleware"
	"github.com/Togather-Foundation/sitelens/internal/api/problem"
	"github.com/Togather-Foundation/sitelens/internal/audit"
	"github.com/Togather-Foundation/sitelens/internal/config"
	"github.com/Togather-Foundation/sitelens/internal/metrics"
	"github.com/Togather-Foundation/sitelens/internal/probe"
	"github.com/Togather-Foundation/sitelens/internal/reconcile"
	"github.com/rs/zerolog"
)

// Dependencies is everything the router serves from.
type Dependencies struct {
	Config   config.Config
	Service  *reconcile.Service
	Search   probe.Adapter
	Behavior probe.Adapter
	Logger   zerolog.Logger

	Version   string
	GitCommit string
	BuildDate string
}

// NewRouter builds the HTTP handler with the full middleware chain.
func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config

	reconcileHandler := handlers.NewReconcileHandler(deps.Service, deps.Search, deps.Behavior, cfg.Environment, cfg.Probe.Concurrency)
	cacheHandler := handlers.NewCacheHandler(deps.Service, audit.NewLogger(deps.Logger))
	healthChecker := handlers.NewHealthChecker(map[string]probe.StatusReporter{
		analytics.SourceSearch:   statusReporter(deps.Search),
		analytics.SourceBehavior: statusReporter(deps.Behavior),
	}, deps.Version, deps.GitCommit)

	rateLimit := middleware.RateLimit(cfg.Server.RateLimitPerMinute, cfg.Server.TrustedProxyCIDRs)

	mux := http.NewServeMux()
	mux.Handle("/healthz", handlers.Healthz())
	mux.Handle("/health", healthChecker.Health())
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/version", methodMux(map[string]http.Handler{
		http.MethodGet: VersionHandler(deps.Version, deps.GitCommit, deps.BuildDate),
	}))
	mux.Handle("/api/v1/openapi.json", methodMux(map[string]http.Handler{
		http.MethodGet: OpenAPIHandler(),
	}))
	mux.Handle("/api/v1/reconcile", methodMux(map[string]http.Handler{
		http.MethodGet: rateLimit(http.HandlerFunc(reconcileHandler.Get)),
	}))
	mux.Handle("/api/v1/reconcile/batch", methodMux(map[string]http.Handler{
		http.MethodPost: rateLimit(middleware.RequestSize(middleware.BatchMaxBodySize)(http.HandlerFunc(reconcileHandler.Batch))),
	}))
	mux.Handle("/api/v1/cache", methodMux(map[string]http.Handler{
		http.MethodGet:    http.HandlerFunc(cacheHandler.List),
		http.MethodDelete: http.HandlerFunc(cacheHandler.Clear),
	}))
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		problem.NotFound(w, r, cfg.Environment)
	}))

	var handler http.Handler = metrics.HTTPMiddleware(mux)
	handler = middleware.SecurityHeaders(cfg.Environment == "production")(handler)
	handler = middleware.RequestLogging(deps.Logger)(handler)
	handler = middleware.CorrelationID(deps.Logger)(handler)
	handler = middleware.Tracing(handler)
	return handler
}

// statusReporter returns the adapter's StatusReporter, or nil when it has none.
func statusReporter(adapter probe.Adapter) probe.StatusReporter {
	if reporter, ok := adapter.(probe.StatusReporter); ok {
		return reporter
	}
	return nil
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
