package sources

import (
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"status 429", &StatusError{Code: 429}, true},
		{"wrapped status 429", fmt.Errorf("fetch: %w", &StatusError{Code: 429}), true},
		{"status 500", &StatusError{Code: 500, Body: "boom"}, false},
		{"message with 429", errors.New("upstream said 429"), true},
		{"message with rate", errors.New("Rate limit exceeded"), true},
		{"message with quota", errors.New("daily quota exhausted"), true},
		{"plain network error", errors.New("connection reset by peer"), false},
		{"too many requests", errors.New("429 Too Many Requests"), true},
		{"resource exhausted", errors.New("RESOURCE_EXHAUSTED: try later"), true},
		{"rate inside a word", errors.New(`fetch "/corporate/": connection reset by peer`), false},
		{"digits inside an id", errors.New("property 374291234: connection reset"), false},
		{
			"request URL is not read",
			&url.Error{Op: "Post", URL: "https://api.example/ratelimit/429", Err: errors.New("connection refused")},
			false,
		},
		{
			"transport cause is read",
			&url.Error{Op: "Post", URL: "https://api.example/", Err: errors.New("rate limit exceeded")},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRateLimited(tt.err))
		})
	}
}

func TestStatusError(t *testing.T) {
	err := &StatusError{Code: 403, Body: "forbidden"}
	assert.Equal(t, "unexpected status 403: forbidden", err.Error())
	assert.Equal(t, 403, err.StatusCode())
	assert.Equal(t, "unexpected status 404", (&StatusError{Code: 404}).Error())
}

func TestLookbackPeriods(t *testing.T) {
	now := time.Date(2026, 3, 15, 13, 45, 0, 0, time.UTC)

	current, previous := LookbackPeriods(now, 28)

	assert.Equal(t, "2026-02-15", current.StartDate())
	assert.Equal(t, "2026-03-14", current.EndDate())
	assert.Equal(t, 28, current.Days())
	assert.Equal(t, "2026-01-18", previous.StartDate())
	assert.Equal(t, "2026-02-14", previous.EndDate())
	assert.Equal(t, 28, previous.Days())
}

func TestLookbackPeriods_MinimumOneDay(t *testing.T) {
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	current, previous := LookbackPeriods(now, 0)

	assert.Equal(t, 1, current.Days())
	assert.Equal(t, "2026-03-14", current.StartDate())
	assert.Equal(t, "2026-03-13", previous.EndDate())
}
