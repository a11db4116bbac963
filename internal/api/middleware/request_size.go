package middleware

import (
	"net/http"
)

// BatchMaxBodySize bounds batch reconcile bodies. Fifty URLs fit comfortably.
const BatchMaxBodySize int64 = 64 << 10

// RequestSize limits the size of incoming request bodies.
//
// Reads past maxBytes fail with *http.MaxBytesError, which handlers turn into
// 413 Payload Too Large.
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
