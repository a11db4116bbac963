package cmd

import (
	"context"
	"fmt"

	"github.com/Togather-Foundation/sitelens/internal/config"
	"github.com/Togather-Foundation/sitelens/internal/matchcache"
	"github.com/Togather-Foundation/sitelens/internal/metrics"
	"github.com/Togather-Foundation/sitelens/internal/probe"
	"github.com/Togather-Foundation/sitelens/internal/reconcile"
	"github.com/Togather-Foundation/sitelens/internal/sources"
	"github.com/Togather-Foundation/sitelens/internal/sources/ga4"
	"github.com/Togather-Foundation/sitelens/internal/sources/searchconsole"
	"github.com/Togather-Foundation/sitelens/internal/telemetry"
	"github.com/Togather-Foundation/sitelens/internal/urlvariant"
	"github.com/rs/zerolog"
)

// app holds the wired reconciliation stack shared by every subcommand.
type app struct {
	cfg      config.Config
	logger   zerolog.Logger
	service  *reconcile.Service
	search   *searchconsole.Adapter
	behavior *ga4.Adapter
	shutdown func(context.Context) error
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newApp loads configuration and wires tracing, both backend adapters, the
// match cache and the reconciliation service.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	logger := config.NewLogger(cfg.Logging)
	metrics.Init(Version, GitCommit, BuildDate)

	shutdown, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	search := searchconsole.New(searchconsole.Config{
		SiteURL:      cfg.Search.SiteURL,
		Endpoint:     cfg.Search.Endpoint,
		LookbackDays: cfg.LookbackDays,
	}, sources.NewClient(
		sources.WithToken(cfg.Search.Token),
		sources.WithRateLimit(cfg.Search.RateLimit),
		sources.WithUserAgent(userAgent()),
	))

	behavior := ga4.New(ga4.Config{
		PropertyID:   cfg.Behavior.PropertyID,
		Endpoint:     cfg.Behavior.Endpoint,
		LookbackDays: cfg.LookbackDays,
	}, sources.NewClient(
		sources.WithToken(cfg.Behavior.Token),
		sources.WithRateLimit(cfg.Behavior.RateLimit),
		sources.WithUserAgent(userAgent()),
	))

	orchestrator := probe.NewOrchestrator(matchcache.New(), logger,
		probe.WithGenerator(urlvariant.NewGenerator(urlvariant.WithLocales(cfg.Probe.Locales...))),
		probe.WithDelays(cfg.Probe.AttemptDelay, cfg.Probe.RateLimitDelay),
		probe.WithCallTimeout(cfg.Probe.CallTimeout),
		probe.WithMaxAttempts(cfg.Probe.MaxAttempts),
	)

	logger.Info().
		Bool("search_configured", search.Status(ctx) == nil).
		Bool("behavior_configured", behavior.Status(ctx) == nil).
		Int("max_attempts", cfg.Probe.MaxAttempts).
		Strs("locales", cfg.Probe.Locales).
		Msg("reconciliation stack ready")

	return &app{
		cfg:      cfg,
		logger:   logger,
		service:  reconcile.NewService(orchestrator, logger, reconcile.WithMaxAttempts(cfg.Probe.MaxAttempts)),
		search:   search,
		behavior: behavior,
		shutdown: shutdown,
	}, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("tracing shutdown error")
	}
}

func userAgent() string {
	return "sitelens/" + Version
}
