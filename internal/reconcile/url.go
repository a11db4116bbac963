package reconcile

import (
	"fmt"
	"net/url"
	"strings"
)

// MaxBatchURLs caps the number of pages one batch may reconcile.
const MaxBatchURLs = 50

// URLError describes a rejected page URL.
type URLError struct {
	Value   string
	Message string
}

func (e *URLError) Error() string {
	return fmt.Sprintf("url %q: %s", e.Value, e.Message)
}

// CheckURL accepts absolute http(s) URLs and site-relative paths, with or
// without the leading slash. raw is expected to be trimmed already.
func CheckURL(raw string) *URLError {
	if raw == "" {
		return &URLError{Value: raw, Message: "missing"}
	}
	if strings.HasPrefix(raw, "/") {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return &URLError{Value: raw, Message: "malformed"}
	}
	if u.Scheme == "" {
		return nil
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &URLError{Value: raw, Message: "must be an absolute http(s) URL or a path"}
	}
	return nil
}
