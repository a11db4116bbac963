package trends

import (
	"github.com/Togather-Foundation/sitelens/internal/analytics"
)

// Direction is the normalised movement of a metric: up always means better.
type Direction string

const (
	Up      Direction = "up"
	Down    Direction = "down"
	Neutral Direction = "neutral"
)

// Delta is the period-over-period change of one metric.
type Delta struct {
	Current       float64   `json:"current"`
	Previous      float64   `json:"previous"`
	PercentChange float64   `json:"percent_change"`
	Direction     Direction `json:"direction"`
}

// lowerIsBetter lists metrics where a numeric decrease is an improvement.
var lowerIsBetter = map[string]bool{
	analytics.MetricBounceRate: true,
	analytics.MetricPosition:   true,
}

// LowerIsBetter reports whether a decrease of metric is an improvement.
func LowerIsBetter(metric string) bool {
	return lowerIsBetter[metric]
}

// Compute returns the deltas between two snapshots of the same source.
// See ComputeValues for which metrics are included.
func Compute(current, previous analytics.Snapshot) map[string]Delta {
	return ComputeValues(current.Values(), previous.Values())
}

// ComputeValues returns a delta for every metric present in both maps whose
// previous value is positive. A zero previous value would divide by zero, so
// that metric is left out entirely.
func ComputeValues(current, previous map[string]float64) map[string]Delta {
	out := make(map[string]Delta)
	for metric, cur := range current {
		prev, ok := previous[metric]
		if !ok || prev <= 0 {
			continue
		}
		out[metric] = Delta{
			Current:       cur,
			Previous:      prev,
			PercentChange: (cur - prev) / prev * 100,
			Direction:     direction(metric, cur, prev),
		}
	}
	return out
}

func direction(metric string, cur, prev float64) Direction {
	if cur == prev {
		return Neutral
	}
	improved := cur > prev
	if lowerIsBetter[metric] {
		improved = cur < prev
	}
	if improved {
		return Up
	}
	return Down
}

