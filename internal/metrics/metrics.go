package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all sitelens metrics
const namespace = "sitelens"

// Registry is the global Prometheus registry for all metrics
var Registry = prometheus.NewRegistry()

// AppInfo is a gauge that exposes application version information as labels
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// Probe metrics

// ProbesTotal counts resolved probes by source and outcome
var ProbesTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "probes_total",
		Help:      "Total number of probes by outcome",
	},
	[]string{"source", "outcome"}, // outcome: cache|found|not_found|not_connected|canceled
)

// ProbeAttemptsTotal counts adapter calls made for individual variations
var ProbeAttemptsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "probe_attempts_total",
		Help:      "Total number of adapter calls made while probing variations",
	},
	[]string{"source", "result"}, // result: match|empty|error|rate_limited
)

// ProbeAttemptsPerMatch records how many variations were needed to find a match
var ProbeAttemptsPerMatch = promauto.With(Registry).NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "probe_attempts_per_match",
		Help:      "Number of variations tried before a meaningful result was found",
		Buckets:   []float64{1, 2, 3, 4, 5, 7, 10, 15},
	},
	[]string{"source"},
)

// AdapterLatency tracks backend adapter call latency
var AdapterLatency = promauto.With(Registry).NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "adapter_latency_seconds",
		Help:      "Backend adapter call latency in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
	[]string{"source"},
)

// ProbesInFlight tracks probes currently executing against a backend
var ProbesInFlight = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "probes_in_flight",
		Help:      "Probes currently executing against a backend",
	},
	[]string{"source"},
)

// Cache metrics

// CacheLookupsTotal counts match cache lookups
var CacheLookupsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "match_cache_lookups_total",
		Help:      "Total number of match cache lookups",
	},
	[]string{"source", "result"}, // result: hit|miss
)

// CacheEntries tracks the current number of match cache entries
var CacheEntries = promauto.With(Registry).NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "match_cache_entries",
		Help:      "Current number of entries in the match cache",
	},
)

// Report metrics

// ReportsTotal counts generated reports by grade
var ReportsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reports_total",
		Help:      "Total number of reconciliation reports generated",
	},
	[]string{"grade"},
)

// AnomaliesTotal counts anomaly flags raised
var AnomaliesTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "anomalies_total",
		Help:      "Total number of anomaly flags raised",
	},
	[]string{"kind", "severity"},
)

var registerRuntime sync.Once

// Init registers runtime collectors and sets version information. Collectors
// are registered once per process; later calls only update AppInfo.
func Init(version, commit, buildDate string) {
	registerRuntime.Do(func() {
		// Register default Go metrics (memory, goroutines, GC, etc.)
		Registry.MustRegister(collectors.NewGoCollector())

		// Register process metrics (CPU, memory, file descriptors)
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})

	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}
