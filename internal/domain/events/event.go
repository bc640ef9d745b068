package events

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("event not found")
	ErrInvalidStatus     = errors.New("invalid event status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// DefaultCapacity applies when an event is created without one.
const DefaultCapacity = 100

type Event struct {
	ID          string
	Title       string
	Description string
	Location    string
	DateTime    time.Time
	Capacity    int
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasStarted reports whether the scheduled start is strictly before now.
func (e Event) HasStarted(now time.Time) bool {
	return e.DateTime.Before(now)
}

type CreateParams struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=5000"`
	Location    string    `json:"location" validate:"required,max=255"`
	DateTime    time.Time `json:"date_time" validate:"required"`
	Capacity    *int      `json:"capacity,omitempty" validate:"omitempty,gte=0,max=100000"`
	Status      Status    `json:"status,omitempty"`
}

// UpdateParams carries a partial update. Nil fields are left unchanged.
type UpdateParams struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=5000"`
	Location    *string    `json:"location,omitempty" validate:"omitempty,min=1,max=255"`
	DateTime    *time.Time `json:"date_time,omitempty"`
	Capacity    *int       `json:"capacity,omitempty" validate:"omitempty,gte=0,max=100000"`
	Status      *Status    `json:"status,omitempty"`
}

type Filters struct {
	Status Status
	Skip   int
	Limit  int
}

type Repository interface {
	List(ctx context.Context, filters Filters) ([]Event, error)
	GetByID(ctx context.Context, id string) (*Event, error)
	Create(ctx context.Context, params CreateParams) (*Event, error)
	// Update applies params. A non-empty from guards the write: the row is
	// only changed while its status still equals from, otherwise Update
	// returns ErrInvalidTransition.
	Update(ctx context.Context, id string, from Status, params UpdateParams) (*Event, error)
	Delete(ctx context.Context, id string) error
	// CompleteExpired moves every event that started before now and is not
	// terminal to completed, returning the number of rows changed.
	CompleteExpired(ctx context.Context, now time.Time) (int64, error)
}
