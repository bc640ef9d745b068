package registrations

import (
	"fmt"
	"time"

	"github.com/Togather-Foundation/campus-events/internal/domain/events"
)

// findConflict returns the registration whose event starts closest to
// target, provided it lies strictly inside window. Cancelled events and the
// target itself are ignored. Ties go to the earlier event.
func findConflict(target events.Event, others []UserRegistration, window time.Duration) *UserRegistration {
	if window <= 0 {
		return nil
	}

	var (
		best     *UserRegistration
		bestDist time.Duration
	)
	for i := range others {
		other := &others[i]
		if other.EventID == target.ID || other.EventStatus == events.StatusCancelled {
			continue
		}
		dist := absDuration(other.EventDateTime.Sub(target.DateTime))
		if dist >= window {
			continue
		}
		if best == nil || dist < bestDist || (dist == bestDist && other.EventDateTime.Before(best.EventDateTime)) {
			best = other
			bestDist = dist
		}
	}
	return best
}

func conflictWarning(conflict *UserRegistration) string {
	return fmt.Sprintf("Potential time conflict with \"%s\" at %s",
		conflict.EventTitle, conflict.EventDateTime.UTC().Format(time.RFC3339))
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
