package scoring

import (
	"sort"

	"github.com/Togather-Foundation/sitelens/internal/analytics"
)

// Benchmark classes, best first.
const (
	ClassExcellent = "excellent"
	ClassGood      = "good"
	ClassAverage   = "average"
	ClassPoor      = "poor"
)

// Band holds the thresholds for one metric. For higher-is-better metrics a
// value at or above Excellent is excellent; for lower-is-better metrics a
// value at or below it is.
type Band struct {
	Excellent     float64
	Good          float64
	Average       float64
	LowerIsBetter bool
}

func (b Band) classify(v float64) string {
	better := func(threshold float64) bool {
		if b.LowerIsBetter {
			return v <= threshold
		}
		return v >= threshold
	}
	switch {
	case better(b.Excellent):
		return ClassExcellent
	case better(b.Good):
		return ClassGood
	case better(b.Average):
		return ClassAverage
	default:
		return ClassPoor
	}
}

// Benchmark is the class of one metric value.
type Benchmark struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
	Class  string  `json:"class"`
}

// DefaultBands are typical content-site ranges.
var DefaultBands = map[string]Band{
	analytics.MetricCTR:                {Excellent: 0.05, Good: 0.03, Average: 0.02},
	analytics.MetricBounceRate:         {Excellent: 0.25, Good: 0.40, Average: 0.55, LowerIsBetter: true},
	analytics.MetricAvgSessionDuration: {Excellent: 180, Good: 120, Average: 60},
	analytics.MetricEngagementRate:     {Excellent: 0.70, Good: 0.55, Average: 0.40},
	analytics.MetricPosition:           {Excellent: 3, Good: 10, Average: 20, LowerIsBetter: true},
	analytics.MetricPagesPerSession:    {Excellent: 3, Good: 2, Average: 1.5},
}

// BenchmarkClassifier classifies metric values against fixed bands.
type BenchmarkClassifier struct {
	bands map[string]Band
}

// NewBenchmarkClassifier returns a classifier over bands, or DefaultBands
// when bands is nil.
func NewBenchmarkClassifier(bands map[string]Band) *BenchmarkClassifier {
	if bands == nil {
		bands = DefaultBands
	}
	return &BenchmarkClassifier{bands: bands}
}

// Classify returns the class of value. ok is false for metrics without a band.
func (c *BenchmarkClassifier) Classify(metric string, value float64) (Benchmark, bool) {
	band, ok := c.bands[metric]
	if !ok {
		return Benchmark{}, false
	}
	return Benchmark{Metric: metric, Value: value, Class: band.classify(value)}, true
}

// ClassifyAll classifies every banded metric in values, sorted by metric name.
func (c *BenchmarkClassifier) ClassifyAll(values map[string]float64) []Benchmark {
	out := make([]Benchmark, 0, len(values))
	for metric, v := range values {
		if b, ok := c.Classify(metric, v); ok {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Metric < out[j].Metric })
	return out
}
