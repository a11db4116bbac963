package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig   `yaml:"server"`
	Logging      LoggingConfig  `yaml:"logging"`
	Tracing      TracingConfig  `yaml:"tracing"`
	Probe        ProbeConfig    `yaml:"probe"`
	Search       SearchConfig   `yaml:"search"`
	Behavior     BehaviorConfig `yaml:"behavior"`
	LookbackDays int            `yaml:"lookback_days" validate:"min=1,max=480"`
	Environment  string         `yaml:"environment" validate:"oneof=development staging production test"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`
	// RateLimitPerMinute caps reconcile requests per client IP; 0 disables it.
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute" validate:"min=0"`
	TrustedProxyCIDRs  []string `yaml:"trusted_proxy_cidrs" validate:"dive,cidr"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter" validate:"oneof=stdout otlp none"`
	ServiceName  string  `yaml:"service_name" validate:"required"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" validate:"required_if=Exporter otlp"`
	SampleRate   float64 `yaml:"sample_rate" validate:"gte=0,lte=1"`
}

// ProbeConfig controls how canonical URLs are matched against backends.
type ProbeConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" validate:"min=1,max=15"`
	AttemptDelay   time.Duration `yaml:"attempt_delay" validate:"gte=0"`
	RateLimitDelay time.Duration `yaml:"rate_limit_delay" validate:"gte=0"`
	CallTimeout    time.Duration `yaml:"call_timeout" validate:"gt=0"`
	Locales        []string      `yaml:"locales" validate:"dive,min=2,max=8"`
	Concurrency    int           `yaml:"concurrency" validate:"min=1,max=64"`
}

// SearchConfig locates the search-performance backend. An empty SiteURL or
// Token leaves the source not connected.
type SearchConfig struct {
	SiteURL   string  `yaml:"site_url"`
	Token     string  `yaml:"token"`
	Endpoint  string  `yaml:"endpoint" validate:"required,url"`
	RateLimit float64 `yaml:"rate_limit" validate:"gt=0"`
}

// BehaviorConfig locates the user-behavior backend.
type BehaviorConfig struct {
	PropertyID string  `yaml:"property_id" validate:"omitempty,numeric"`
	Token      string  `yaml:"token"`
	Endpoint   string  `yaml:"endpoint" validate:"required,url"`
	RateLimit  float64 `yaml:"rate_limit" validate:"gt=0"`
}

var validate = validator.New()

// Load reads the configuration from the environment, overlays the YAML file
// at path when path is non-empty, and validates the result.
func Load(path string) (Config, error) {
	cfg := FromEnv()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables and defaults.
func FromEnv() Config {
	return Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvInt("SERVER_PORT", 8080),

			RateLimitPerMinute: getEnvInt("SERVER_RATE_LIMIT_PER_MINUTE", 30),
			TrustedProxyCIDRs:  getEnvList("SERVER_TRUSTED_PROXY_CIDRS", nil),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvBool("TRACING_ENABLED", false),
			Exporter:     getEnv("TRACING_EXPORTER", "stdout"),
			ServiceName:  getEnv("TRACING_SERVICE_NAME", "sitelens"),
			OTLPEndpoint: getEnv("TRACING_OTLP_ENDPOINT", ""),
			SampleRate:   getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
		},
		Probe: ProbeConfig{
			MaxAttempts:    getEnvInt("PROBE_MAX_ATTEMPTS", 10),
			AttemptDelay:   getEnvDuration("PROBE_ATTEMPT_DELAY", 150*time.Millisecond),
			RateLimitDelay: getEnvDuration("PROBE_RATE_LIMIT_DELAY", 2*time.Second),
			CallTimeout:    getEnvDuration("PROBE_CALL_TIMEOUT", 10*time.Second),
			Locales:        getEnvList("PROBE_LOCALES", []string{"en", "fr"}),
			Concurrency:    getEnvInt("PROBE_CONCURRENCY", 4),
		},
		Search: SearchConfig{
			SiteURL:   getEnv("SEARCH_SITE_URL", ""),
			Token:     getEnv("SEARCH_TOKEN", ""),
			Endpoint:  getEnv("SEARCH_ENDPOINT", "https://www.googleapis.com/webmasters/v3"),
			RateLimit: getEnvFloat("SEARCH_RATE_LIMIT", 5),
		},
		Behavior: BehaviorConfig{
			PropertyID: getEnv("BEHAVIOR_PROPERTY_ID", ""),
			Token:      getEnv("BEHAVIOR_TOKEN", ""),
			Endpoint:   getEnv("BEHAVIOR_ENDPOINT", "https://analyticsdata.googleapis.com/v1beta"),
			RateLimit:  getEnvFloat("BEHAVIOR_RATE_LIMIT", 5),
		},
		LookbackDays: getEnvInt("LOOKBACK_DAYS", 28),
		Environment:  getEnv("ENVIRONMENT", "development"),
	}
}

// Validate checks every field constraint and reports all failures at once.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvDuration accepts Go duration strings ("150ms") or whole milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

// getEnvList splits a comma-separated value, dropping empty items.
func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
