package sources

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"
)

// ErrNotConnected is returned by an adapter that cannot reach its backend at
// all (no credentials, property not configured). Probes stop immediately on it.
var ErrNotConnected = errors.New("source not connected")

// StatusError is a non-2xx response from a backend API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// StatusCode returns the HTTP status code.
func (e *StatusError) StatusCode() int {
	return e.Code
}

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

var rateLimitPhrase = regexp.MustCompile(`(?i)\b(rate[ _-]?limit\w*|too many requests|quota\w*|resource[ _]exhausted|429)\b`)

// IsRateLimited reports whether err signals backend rate limiting, either
// through a 429 status code anywhere in the chain or through its message.
// For transport errors only the underlying cause is read, since the request
// URL may contain anything.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var sc StatusCoder
	if errors.As(err, &sc) && sc.StatusCode() == http.StatusTooManyRequests {
		return true
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		err = ue.Err
	}
	return rateLimitPhrase.MatchString(err.Error())
}

// Period is an inclusive date range in the backend's reporting calendar.
type Period struct {
	Start time.Time
	End   time.Time
}

const dateLayout = "2006-01-02"

// StartDate formats the start as YYYY-MM-DD.
func (p Period) StartDate() string { return p.Start.Format(dateLayout) }

// EndDate formats the end as YYYY-MM-DD.
func (p Period) EndDate() string { return p.End.Format(dateLayout) }

// Days returns the number of calendar days covered.
func (p Period) Days() int {
	return int(p.End.Sub(p.Start).Hours()/24) + 1
}

// LookbackPeriods returns the current window of `days` days ending the day
// before now, and the equally long window immediately preceding it. Both
// backends lag by at least a day, so today is excluded.
func LookbackPeriods(now time.Time, days int) (current, previous Period) {
	if days < 1 {
		days = 1
	}
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(days - 1))
	current = Period{Start: start, End: end}

	prevEnd := start.AddDate(0, 0, -1)
	previous = Period{Start: prevEnd.AddDate(0, 0, -(days - 1)), End: prevEnd}
	return current, previous
}
