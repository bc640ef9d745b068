package events

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusUpcoming  Status = "upcoming"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// ParseStatus accepts any casing ("UPCOMING", "upcoming").
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case StatusPending, StatusApproved, StatusUpcoming, StatusCancelled, StatusCompleted:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, value)
	}
}

// IsTerminal reports whether no further registration or forward transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// IsOpen reports whether the status admits registrations.
func (s Status) IsOpen() bool {
	return s == StatusApproved || s == StatusUpcoming
}

// CanTransitionTo enforces one-directional movement toward terminal states.
// approved and upcoming are interchangeable open states.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	switch {
	case s.IsTerminal():
		return false
	case s == StatusPending:
		return true
	case s.IsOpen():
		return next.IsOpen() || next.IsTerminal()
	default:
		return false
	}
}
