package ids

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var ErrInvalidUUID = errors.New("invalid UUID")

// NewULID mints a ULID whose timestamp part is at. IDs minted by the same
// process sort by time, and by generation order within one millisecond.
func NewULID(at time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(at), ulid.DefaultEntropy())
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ParseUUID validates a user or event id taken from a URL path and returns
// its canonical lower-case form.
func ParseUUID(value string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return "", ErrInvalidUUID
	}
	return parsed.String(), nil
}
