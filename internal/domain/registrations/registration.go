package registrations

import (
	"context"
	"errors"
	"time"

	"github.com/Togather-Foundation/campus-events/internal/domain/events"
)

var (
	// ErrNotFound is returned by RegistrationStore.Get when the user holds no
	// registration for the event.
	ErrNotFound = errors.New("registration not found")

	// ErrDuplicate is returned by RegistrationStore.Create when the
	// (user_id, event_id) pair already exists.
	ErrDuplicate = errors.New("registration already exists")

	// ErrUnknownUser is returned by RegistrationStore.Create when the
	// registering user no longer exists.
	ErrUnknownUser = errors.New("registering user does not exist")
)

type Registration struct {
	ID               string
	UserID           string
	EventID          string
	RegistrationDate time.Time
}

// Admission is a successful registration, optionally annotated with a
// schedule conflict that did not block it.
type Admission struct {
	Registration
	ConflictWarning string
}

// UserRegistration is a registration joined with its event.
type UserRegistration struct {
	Registration
	EventTitle    string
	EventDateTime time.Time
	EventStatus   events.Status
}

// Attendee is a registration joined with its user.
type Attendee struct {
	Registration
	FullName string
	Email    string
}

type EventReader interface {
	// GetEvent returns events.ErrNotFound when the event does not exist.
	GetEvent(ctx context.Context, id string) (*events.Event, error)
}

type RegistrationStore interface {
	Get(ctx context.Context, userID, eventID string) (*Registration, error)
	Count(ctx context.Context, eventID string) (int, error)
	Create(ctx context.Context, reg Registration) error
	ListForUser(ctx context.Context, userID string) ([]UserRegistration, error)
	ListForEvent(ctx context.Context, eventID string) ([]Attendee, error)
}

// Tx is the set of capabilities available inside a store transaction.
type Tx interface {
	EventReader
	RegistrationStore
}

type Store interface {
	Tx
	// WithTx runs fn in a single transaction. A non-nil error from fn rolls
	// the transaction back.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
