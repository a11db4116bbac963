package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func send(handler http.Handler, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reconcile?url=/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_AllowsBurstThenBlocks(t *testing.T) {
	handler := RateLimit(3, nil)(okHandler())

	for i := range 3 {
		rec := send(handler, "192.168.1.100:12345", nil)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := send(handler, "192.168.1.100:12345", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "20", rec.Header().Get("Retry-After"))

	rec = send(handler, "192.168.1.200:12345", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "other clients keep their own budget")
}

func TestRateLimit_Disabled(t *testing.T) {
	handler := RateLimit(0, nil)(okHandler())

	for range 100 {
		assert.Equal(t, http.StatusOK, send(handler, "10.0.0.1:1", nil).Code)
	}
}

func TestRateLimit_IgnoresSpoofedForwardedFor(t *testing.T) {
	handler := RateLimit(1, nil)(okHandler())

	assert.Equal(t, http.StatusOK, send(handler, "203.0.113.9:1", map[string]string{"X-Forwarded-For": "1.1.1.1"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, send(handler, "203.0.113.9:1", map[string]string{"X-Forwarded-For": "2.2.2.2"}).Code)
}

func TestClientKey(t *testing.T) {
	trusted := []string{"10.0.0.0/8"}

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{name: "direct peer", remoteAddr: "198.51.100.7:4000", want: "198.51.100.7"},
		{name: "untrusted proxy header ignored", remoteAddr: "198.51.100.7:4000", headers: map[string]string{"X-Forwarded-For": "1.2.3.4"}, want: "198.51.100.7"},
		{name: "trusted proxy forwarded for", remoteAddr: "10.1.2.3:4000", headers: map[string]string{"X-Forwarded-For": "1.2.3.4, 10.1.2.3"}, want: "1.2.3.4"},
		{name: "trusted proxy real ip", remoteAddr: "10.1.2.3:4000", headers: map[string]string{"X-Real-IP": " 5.6.7.8 "}, want: "5.6.7.8"},
		{name: "address without port", remoteAddr: "198.51.100.7", want: "198.51.100.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientKey(req, trusted))
		})
	}
}

func TestLimiterStore_SweepsIdleEntries(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newLimiterStore(10)
	store.now = func() time.Time { return now }

	store.limiter("a")
	store.limiter("b")
	assert.Len(t, store.limiters, 2)

	now = now.Add(limiterTTL + time.Minute)
	store.limiter("c")

	assert.Len(t, store.limiters, 1)
	assert.Contains(t, store.limiters, "c")
}
