package registrations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/campus-events/internal/domain/events"
	"github.com/Togather-Foundation/campus-events/internal/domain/ids"
	"github.com/Togather-Foundation/campus-events/internal/metrics"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Togather-Foundation/campus-events/internal/domain/registrations"

// DefaultConflictWindow is used when no window is configured.
const DefaultConflictWindow = 2 * time.Hour

// Clock returns the current time.
type Clock func() time.Time

type Service struct {
	store          Store
	logger         zerolog.Logger
	now            Clock
	conflictWindow time.Duration
	tracer         trace.Tracer
}

type Option func(*Service)

func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithConflictWindow sets how close two event start times must be for a
// registration to carry a conflict warning. Zero disables the check.
func WithConflictWindow(window time.Duration) Option {
	return func(s *Service) {
		if window >= 0 {
			s.conflictWindow = window
		}
	}
}

func NewService(store Store, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:          store,
		logger:         logger.With().Str("component", "registrations").Logger(),
		now:            time.Now,
		conflictWindow: DefaultConflictWindow,
		tracer:         otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register evaluates the registration policy for userID on eventID and, when
// every gate passes, records the registration. Rejections are returned as
// *RejectionError and leave the store untouched.
func (s *Service) Register(ctx context.Context, eventID, userID string) (*Admission, error) {
	ctx, span := s.tracer.Start(ctx, "registrations.Register",
		trace.WithAttributes(
			attribute.String("event.id", eventID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() { metrics.RegistrationDuration.Observe(time.Since(start).Seconds()) }()

	now := s.now().UTC()
	var (
		event *events.Event
		reg   Registration
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		event, reg, err = s.admit(ctx, tx, eventID, userID, now)
		return err
	})

	outcome := outcomeOf(err)
	metrics.RegistrationAttempts.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("registration.outcome", outcome))

	if err != nil {
		var rejection *RejectionError
		if errors.As(err, &rejection) {
			s.logger.Info().
				Str("event_id", eventID).
				Str("user_id", userID).
				Str("kind", string(rejection.Kind)).
				Msg("registration rejected")
			return nil, rejection
		}
		if errors.Is(err, ErrUnknownUser) {
			s.logger.Warn().
				Str("event_id", eventID).
				Str("user_id", userID).
				Msg("registration for unknown user")
			return nil, fmt.Errorf("register for event: %w", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("register for event: %w", err)
	}

	admission := &Admission{Registration: reg}
	admission.ConflictWarning = s.conflictFor(ctx, *event, userID)
	if admission.ConflictWarning != "" {
		metrics.RegistrationConflictWarnings.Inc()
		span.SetAttributes(attribute.Bool("registration.conflict", true))
	}
	s.logger.Info().
		Str("registration_id", admission.ID).
		Str("event_id", eventID).
		Str("user_id", userID).
		Bool("conflict", admission.ConflictWarning != "").
		Msg("registration admitted")
	return admission, nil
}

func (s *Service) admit(ctx context.Context, tx Tx, eventID, userID string, now time.Time) (*events.Event, Registration, error) {
	event, err := tx.GetEvent(ctx, eventID)
	if errors.Is(err, events.ErrNotFound) {
		return nil, Registration{}, reject(KindNotFound, msgNotFound)
	}
	if err != nil {
		return nil, Registration{}, fmt.Errorf("load event: %w", err)
	}

	if rejection := statusGate(event.Status); rejection != nil {
		return nil, Registration{}, rejection
	}

	if event.HasStarted(now) {
		return nil, Registration{}, reject(KindExpired, msgExpired)
	}

	_, err = tx.Get(ctx, userID, eventID)
	switch {
	case err == nil:
		return nil, Registration{}, reject(KindAlreadyRegistered, msgAlreadyRegistered)
	case !errors.Is(err, ErrNotFound):
		return nil, Registration{}, fmt.Errorf("check existing registration: %w", err)
	}

	count, err := tx.Count(ctx, eventID)
	if err != nil {
		return nil, Registration{}, fmt.Errorf("count registrations: %w", err)
	}
	if count >= event.Capacity {
		return nil, Registration{}, reject(KindCapacityReached, msgCapacityReached)
	}

	id, err := ids.NewULID(now)
	if err != nil {
		return nil, Registration{}, fmt.Errorf("mint registration id: %w", err)
	}
	reg := Registration{
		ID:               id,
		UserID:           userID,
		EventID:          eventID,
		RegistrationDate: now,
	}
	if err := tx.Create(ctx, reg); err != nil {
		// A concurrent attempt for the same pair won the unique constraint.
		if errors.Is(err, ErrDuplicate) {
			return nil, Registration{}, reject(KindAlreadyRegistered, msgAlreadyRegistered)
		}
		// The event was deleted after it was loaded.
		if errors.Is(err, events.ErrNotFound) {
			return nil, Registration{}, reject(KindNotFound, msgNotFound)
		}
		return nil, Registration{}, fmt.Errorf("create registration: %w", err)
	}
	return event, reg, nil
}

// conflictFor runs after commit so a failed lookup can only drop the
// warning, never the admission.
func (s *Service) conflictFor(ctx context.Context, target events.Event, userID string) string {
	if s.conflictWindow <= 0 {
		return ""
	}
	others, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("conflict check skipped")
		return ""
	}
	if conflict := findConflict(target, others, s.conflictWindow); conflict != nil {
		return conflictWarning(conflict)
	}
	return ""
}

func statusGate(status events.Status) *RejectionError {
	switch status {
	case events.StatusCancelled:
		return reject(KindInvalidState, msgCancelled)
	case events.StatusCompleted:
		return reject(KindInvalidState, msgCompleted)
	case events.StatusApproved, events.StatusUpcoming:
		return nil
	default:
		return reject(KindInvalidState, msgNotApproved)
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return "admitted"
	}
	var rejection *RejectionError
	if errors.As(err, &rejection) {
		return string(rejection.Kind)
	}
	if errors.Is(err, ErrUnknownUser) {
		return "unknown_user"
	}
	return "error"
}

// ForUser lists the caller's registrations with their event details.
func (s *Service) ForUser(ctx context.Context, userID string) ([]UserRegistration, error) {
	regs, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list registrations for user: %w", err)
	}
	return regs, nil
}

// Attendees lists who registered for an event.
func (s *Service) Attendees(ctx context.Context, eventID string) ([]Attendee, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	attendees, err := s.store.ListForEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	return attendees, nil
}
