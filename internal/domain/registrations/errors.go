package registrations

import "fmt"

// Kind classifies why a registration attempt was rejected.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindInvalidState      Kind = "invalid_state"
	KindExpired           Kind = "expired"
	KindAlreadyRegistered Kind = "already_registered"
	KindCapacityReached   Kind = "capacity_reached"
)

const (
	msgNotFound          = "Event not found"
	msgCancelled         = "Event has been cancelled"
	msgCompleted         = "Event has already completed"
	msgNotApproved       = "Event is not approved for registration"
	msgExpired           = "Expired: event has already ended"
	msgAlreadyRegistered = "Already registered for this event"
	msgCapacityReached   = "Capacity Reached: event is full"
)

// RejectionError is returned when the registration policy refuses an
// attempt. Message is safe to show to the caller verbatim.
type RejectionError struct {
	Kind    Kind
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("registration rejected (%s): %s", e.Kind, e.Message)
}

func reject(kind Kind, message string) *RejectionError {
	return &RejectionError{Kind: kind, Message: message}
}
