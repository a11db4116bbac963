package scoring

import (
	"fmt"

	"github.com/Togather-Foundation/sitelens/internal/analytics"
	"github.com/Togather-Foundation/sitelens/internal/sanitize"
)

// Anomaly kinds.
const (
	KindRankingPattern = "ranking_pattern"
	KindLowCTR         = "low_ctr"
	KindVolumeSurge    = "volume_surge"
)

// Severities, least to most urgent.
const (
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// AnomalyFlag marks one query worth a closer look.
type AnomalyFlag struct {
	Subject  string             `json:"subject"`
	Kind     string             `json:"kind"`
	Severity string             `json:"severity"`
	Evidence string             `json:"evidence"`
	Details  map[string]float64 `json:"details,omitempty"`
}

// AnomalyDetector flags problem queries. The zero value is not useful; use
// NewAnomalyDetector for the standard thresholds.
type AnomalyDetector struct {
	// RankingPosition is the average position from which a query counts as
	// ranked too low for its clicks.
	RankingPosition float64
	// RankingClickShare is the share of the top query's clicks such a query
	// must exceed.
	RankingClickShare float64

	LowCTRImpressions  float64
	LowCTR             float64
	HighCTRImpressions float64

	SurgeMedium   float64
	SurgeHigh     float64
	SurgeCritical float64
}

// NewAnomalyDetector returns a detector with the standard thresholds.
func NewAnomalyDetector() *AnomalyDetector {
	return &AnomalyDetector{
		RankingPosition:    4,
		RankingClickShare:  0.5,
		LowCTRImpressions:  1000,
		LowCTR:             0.02,
		HighCTRImpressions: 10000,
		SurgeMedium:        0.5,
		SurgeHigh:          1.0,
		SurgeCritical:      2.0,
	}
}

// Detect flags queries in current, which is ranked by clicks with the top
// query first. previous holds the comparison period's rows and may be nil.
// Flags are returned in query order.
func (d *AnomalyDetector) Detect(current, previous []analytics.QueryRow) []AnomalyFlag {
	if len(current) == 0 {
		return nil
	}

	prevImpressions := make(map[string]float64, len(previous))
	for _, row := range previous {
		prevImpressions[row.Query] = row.Impressions
	}
	topClicks := current[0].Clicks

	var flags []AnomalyFlag
	for i, row := range current {
		subject := sanitize.Subject(row.Query)

		if i > 0 && topClicks > 0 && row.Position >= d.RankingPosition &&
			row.Clicks > topClicks*d.RankingClickShare {
			flags = append(flags, AnomalyFlag{
				Subject:  subject,
				Kind:     KindRankingPattern,
				Severity: SeverityMedium,
				Evidence: fmt.Sprintf("%.0f clicks at position %.1f is %.0f%% of the top query's clicks",
					row.Clicks, row.Position, row.Clicks/topClicks*100),
				Details: map[string]float64{
					"clicks":     row.Clicks,
					"position":   row.Position,
					"top_clicks": topClicks,
				},
			})
		}

		if row.Impressions > d.LowCTRImpressions && row.CTR < d.LowCTR {
			severity := SeverityMedium
			if row.Impressions > d.HighCTRImpressions {
				severity = SeverityHigh
			}
			flags = append(flags, AnomalyFlag{
				Subject:  subject,
				Kind:     KindLowCTR,
				Severity: severity,
				Evidence: fmt.Sprintf("%.0f impressions with %.2f%% CTR", row.Impressions, row.CTR*100),
				Details: map[string]float64{
					"impressions": row.Impressions,
					"ctr":         row.CTR,
				},
			})
		}

		if prev, ok := prevImpressions[row.Query]; ok && prev > 0 {
			increase := (row.Impressions - prev) / prev
			if severity := d.surgeSeverity(increase); severity != "" {
				flags = append(flags, AnomalyFlag{
					Subject:  subject,
					Kind:     KindVolumeSurge,
					Severity: severity,
					Evidence: fmt.Sprintf("impressions up %.0f%% (%.0f to %.0f)", increase*100, prev, row.Impressions),
					Details: map[string]float64{
						"impressions":          row.Impressions,
						"previous_impressions": prev,
						"percent_change":       increase * 100,
					},
				})
			}
		}
	}
	return flags
}

func (d *AnomalyDetector) surgeSeverity(increase float64) string {
	switch {
	case increase >= d.SurgeCritical:
		return SeverityCritical
	case increase >= d.SurgeHigh:
		return SeverityHigh
	case increase >= d.SurgeMedium:
		return SeverityMedium
	default:
		return ""
	}
}
