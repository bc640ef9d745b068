package events

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Togather-Foundation/campus-events/internal/metrics"
	"github.com/Togather-Foundation/campus-events/internal/sanitize"
	"github.com/Togather-Foundation/campus-events/internal/validation"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 500

	reconcileTimeout = 30 * time.Second
)

// Reconcile triggers, used as metric labels.
const (
	TriggerInline = "inline"
	TriggerJob    = "job"
	TriggerCLI    = "cli"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
	group  singleflight.Group
}

type Option func(*Service)

// WithClock overrides the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(repo Repository, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: logger.With().Str("component", "events").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List reconciles expired events and then returns one page of events.
func (s *Service) List(ctx context.Context, filters Filters) ([]Event, error) {
	if _, err := s.reconcile(ctx, TriggerInline); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, filters)
}

// Get reconciles expired events and then reads one event.
func (s *Service) Get(ctx context.Context, id string) (*Event, error) {
	if _, err := s.reconcile(ctx, TriggerInline); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// ReconcileExpiredEvents marks every past, non-terminal event completed.
// It is idempotent: a second call with no clock movement changes nothing.
func (s *Service) ReconcileExpiredEvents(ctx context.Context) (int64, error) {
	return s.reconcile(ctx, TriggerCLI)
}

// ReconcileFromJob is ReconcileExpiredEvents labelled for the periodic job.
func (s *Service) ReconcileFromJob(ctx context.Context) (int64, error) {
	return s.reconcile(ctx, TriggerJob)
}

func (s *Service) reconcile(ctx context.Context, trigger string) (int64, error) {
	// Concurrent listings share one UPDATE. The shared call runs on a
	// detached context so a caller that gives up never fails the others.
	ch := s.group.DoChan(trigger, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), reconcileTimeout)
		defer cancel()
		return s.repo.CompleteExpired(shared, s.now())
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("reconcile expired events: %w", ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return 0, fmt.Errorf("reconcile expired events: %w", res.Err)
	}
	count := res.Val.(int64)
	if count > 0 {
		metrics.LifecycleTransitions.WithLabelValues(trigger).Add(float64(count))
		s.logger.Info().
			Int64("completed", count).
			Str("trigger", trigger).
			Msg("expired events marked completed")
	}
	return count, nil
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Event, error) {
	params.Title = sanitize.Text(params.Title)
	params.Location = sanitize.Text(params.Location)
	params.Description = sanitize.HTML(params.Description)

	if params.Status == "" {
		params.Status = StatusUpcoming
	}
	status, err := ParseStatus(string(params.Status))
	if err != nil {
		return nil, validation.Error{Field: "status", Message: "must be one of: pending, approved, upcoming"}
	}
	if status.IsTerminal() {
		return nil, validation.Error{Field: "status", Message: "new events cannot start in a terminal state"}
	}
	params.Status = status

	if params.Capacity == nil {
		capacity := DefaultCapacity
		params.Capacity = &capacity
	}
	if err := validation.Struct(params); err != nil {
		return nil, err
	}
	params.DateTime = params.DateTime.UTC()

	event, err := s.repo.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.logger.Info().
		Str("event_id", event.ID).
		Str("status", string(event.Status)).
		Int("capacity", event.Capacity).
		Msg("event created")
	return event, nil
}

// Update applies a partial update. Status changes must move toward a
// terminal state; lowering capacity never removes existing registrations.
func (s *Service) Update(ctx context.Context, id string, params UpdateParams) (*Event, error) {
	if params.Title != nil {
		title := sanitize.Text(*params.Title)
		params.Title = &title
	}
	if params.Location != nil {
		location := sanitize.Text(*params.Location)
		params.Location = &location
	}
	if params.Description != nil {
		description := sanitize.HTML(*params.Description)
		params.Description = &description
	}
	if params.DateTime != nil {
		utc := params.DateTime.UTC()
		params.DateTime = &utc
	}
	if err := validation.Struct(params); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var from Status
	if params.Status != nil {
		next, err := ParseStatus(string(*params.Status))
		if err != nil {
			return nil, validation.Error{Field: "status", Message: "must be one of: pending, approved, upcoming, cancelled, completed"}
		}
		if !existing.Status.CanTransitionTo(next) {
			return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, existing.Status, next)
		}
		params.Status = &next
		from = existing.Status
	}

	updated, err := s.repo.Update(ctx, id, from, params)
	if errors.Is(err, ErrInvalidTransition) {
		s.logger.Warn().
			Str("event_id", id).
			Str("from_status", string(from)).
			Msg("event status changed before update could apply")
		return nil, fmt.Errorf("%w: status is no longer %s", err, from)
	}
	if err != nil {
		return nil, err
	}

	logEvent := s.logger.Info().Str("event_id", id)
	if params.Status != nil && *params.Status != existing.Status {
		logEvent = logEvent.Str("from_status", string(existing.Status)).Str("to_status", string(*params.Status))
	}
	if params.Capacity != nil && *params.Capacity != existing.Capacity {
		logEvent = logEvent.Int("from_capacity", existing.Capacity).Int("to_capacity", *params.Capacity)
	}
	logEvent.Msg("event updated")
	return updated, nil
}

// Delete removes the event; registrations go with it.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("event_id", id).Msg("event deleted")
	return nil
}

// ParseFilters reads skip, limit and status from a query string.
func ParseFilters(values url.Values) (Filters, error) {
	filters := Filters{Limit: DefaultListLimit}

	if raw := strings.TrimSpace(values.Get("skip")); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil || skip < 0 {
			return filters, validation.Error{Field: "skip", Message: "must be a non-negative integer"}
		}
		filters.Skip = skip
	}

	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > MaxListLimit {
			return filters, validation.Error{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", MaxListLimit)}
		}
		filters.Limit = limit
	}

	if raw := strings.TrimSpace(values.Get("status")); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			return filters, validation.Error{Field: "status", Message: "unknown status"}
		}
		filters.Status = status
	}

	return filters, nil
}
