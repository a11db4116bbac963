package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBenchmarkClassifier_Classify(t *testing.T) {
	c := NewBenchmarkClassifier(nil)

	tests := []struct {
		metric string
		value  float64
		want   string
	}{
		{"ctr", 0.06, ClassExcellent},
		{"ctr", 0.03, ClassGood},
		{"ctr", 0.025, ClassAverage},
		{"ctr", 0.01, ClassPoor},
		{"bounce_rate", 0.2, ClassExcellent},
		{"bounce_rate", 0.4, ClassGood},
		{"bounce_rate", 0.5, ClassAverage},
		{"bounce_rate", 0.8, ClassPoor},
		{"position", 2.5, ClassExcellent},
		{"position", 12, ClassAverage},
		{"position", 45, ClassPoor},
		{"avg_session_duration", 125, ClassGood},
		{"engagement_rate", 0.72, ClassExcellent},
		{"pages_per_session", 1.2, ClassPoor},
	}

	for _, tt := range tests {
		t.Run(tt.metric, func(t *testing.T) {
			got, ok := c.Classify(tt.metric, tt.value)
			require.True(t, ok)
			assert.Equal(t, tt.want, got.Class, "%s=%v", tt.metric, tt.value)
			assert.Equal(t, tt.value, got.Value)
		})
	}
}

func TestBenchmarkClassifier_UnknownMetric(t *testing.T) {
	_, ok := NewBenchmarkClassifier(nil).Classify("users", 10)
	assert.False(t, ok)
}

func TestBenchmarkClassifier_ClassifyAll(t *testing.T) {
	c := NewBenchmarkClassifier(nil)

	got := c.ClassifyAll(map[string]float64{
		"position":    6,
		"clicks":      50,
		"ctr":         0.025,
		"impressions": 2000,
	})

	require.Len(t, got, 2)
	assert.Equal(t, "ctr", got[0].Metric)
	assert.Equal(t, ClassAverage, got[0].Class)
	assert.Equal(t, "position", got[1].Metric)
	assert.Equal(t, ClassGood, got[1].Class)
}

func TestBenchmarkClassifier_CustomBands(t *testing.T) {
	c := NewBenchmarkClassifier(map[string]Band{
		"users": {Excellent: 1000, Good: 100, Average: 10},
	})

	got, ok := c.Classify("users", 150)
	require.True(t, ok)
	assert.Equal(t, ClassGood, got.Class)

	_, ok = c.Classify("ctr", 0.1)
	assert.False(t, ok)
}
