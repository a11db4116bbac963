package ids

import (
	"crypto/rand"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	ulidRegex = regexp.MustCompile(`(?i)^[0-9A-HJKMNP-TV-Z]{26}$`)

	ErrInvalidULID = errors.New("invalid ULID")
)

// NewULID generates a new ULID string.
func NewULID() (string, error) {
	return NewULIDAt(time.Now())
}

// NewULIDAt generates a ULID whose timestamp component is t.
// Report ids use the report's generation time so they sort chronologically.
func NewULIDAt(t time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// IsULID returns true when value is a valid ULID (case-insensitive Crockford Base32).
func IsULID(value string) bool {
	return ulidRegex.MatchString(strings.TrimSpace(value))
}

// ValidateULID validates a ULID string.
func ValidateULID(value string) error {
	if !IsULID(value) {
		return ErrInvalidULID
	}
	return nil
}

// Time returns the timestamp encoded in a ULID.
func Time(value string) (time.Time, error) {
	id, err := ulid.ParseStrict(strings.ToUpper(strings.TrimSpace(value)))
	if err != nil {
		return time.Time{}, ErrInvalidULID
	}
	return ulid.Time(id.Time()), nil
}
