package audit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Togather-Foundation/sitelens/internal/api/middleware"
	"github.com/rs/zerolog"
)

// Entry represents a single audit log entry with structured fields
type Entry struct {
	Timestamp    time.Time
	Action       string
	Channel      string // "http" or "mcp"
	ResourceType string
	ResourceID   string
	IPAddress    string
	RequestID    string
	Status       string // "success" or "failure"
	Details      map[string]string
}

// Logger records operations that change shared state, such as clearing the
// match cache. Entries go to the application logger tagged component=audit.
type Logger struct {
	output zerolog.Logger
}

// NewLogger creates a new audit logger
func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{
		output: logger.With().Str("component", "audit").Logger(),
	}
}

// Log writes an audit entry. A nil Logger discards it.
func (l *Logger) Log(entry Entry) {
	if l == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	event := l.output.Info().
		Time("audit_time", entry.Timestamp).
		Str("action", entry.Action).
		Str("status", entry.Status)
	if entry.Channel != "" {
		event = event.Str("channel", entry.Channel)
	}
	if entry.ResourceType != "" {
		event = event.Str("resource_type", entry.ResourceType)
	}
	if entry.ResourceID != "" {
		event = event.Str("resource_id", entry.ResourceID)
	}
	if entry.IPAddress != "" {
		event = event.Str("ip_address", entry.IPAddress)
	}
	if entry.RequestID != "" {
		event = event.Str("request_id", entry.RequestID)
	}
	if len(entry.Details) > 0 {
		dict := zerolog.Dict()
		for k, v := range entry.Details {
			dict = dict.Str(k, v)
		}
		event = event.Dict("details", dict)
	}
	event.Msg("audit")
}

// LogSuccess logs a successful operation outside an HTTP request.
func (l *Logger) LogSuccess(action, channel, resourceType string, details map[string]string) {
	l.Log(Entry{
		Action:       action,
		Channel:      channel,
		ResourceType: resourceType,
		Status:       "success",
		Details:      details,
	})
}

// LogFromRequest logs an action taken through the HTTP API, with the client
// IP and correlation ID taken from r.
func (l *Logger) LogFromRequest(r *http.Request, action, resourceType, resourceID, status string, details map[string]string) {
	l.Log(Entry{
		Action:       action,
		Channel:      "http",
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    extractClientIP(r),
		RequestID:    middleware.GetRequestID(r.Context()),
		Status:       status,
		Details:      details,
	})
}

// extractClientIP gets the client IP from request headers or RemoteAddr
func extractClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
