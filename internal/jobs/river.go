package jobs

import (
	"log/slog"
	"math"
	"time"

	"github.com/Togather-Foundation/campus-events/internal/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
)

const (
	JobKindReconcileEvents = "reconcile_events"
)

const (
	// DefaultMaxAttempts applies to kinds without an entry in RetryPolicy.ByKind.
	DefaultMaxAttempts = 5

	ReconcileEventsMaxAttempts = 3
)

// RetryConfig controls per-kind retry behavior.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryPolicy implements River's ClientRetryPolicy with per-kind exponential backoff.
type RetryPolicy struct {
	Default RetryConfig
	ByKind  map[string]RetryConfig
}

// NewRetryPolicy returns the retry policy. maxReconcileAttempts overrides
// the reconcile_events budget when positive.
func NewRetryPolicy(maxReconcileAttempts int) *RetryPolicy {
	if maxReconcileAttempts <= 0 {
		maxReconcileAttempts = ReconcileEventsMaxAttempts
	}
	return &RetryPolicy{
		Default: RetryConfig{
			MaxAttempts: DefaultMaxAttempts,
			BaseDelay:   30 * time.Second,
			MaxDelay:    30 * time.Minute,
		},
		ByKind: map[string]RetryConfig{
			JobKindReconcileEvents: {
				MaxAttempts: maxReconcileAttempts,
				BaseDelay:   10 * time.Second,
				MaxDelay:    2 * time.Minute,
			},
		},
	}
}

// NextRetry doubles BaseDelay per attempt, capped at MaxDelay.
func (p *RetryPolicy) NextRetry(job *rivertype.JobRow) time.Time {
	config := p.configFor(job.Kind)
	if config.BaseDelay == 0 {
		return time.Now()
	}

	attempt := job.Attempt
	if attempt < 1 {
		attempt = 1
	}

	delay := time.Duration(float64(config.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}

	if job.AttemptedAt != nil {
		return job.AttemptedAt.Add(delay)
	}
	return time.Now().Add(delay)
}

// InsertOpts returns the insert options for kind under this policy.
func (p *RetryPolicy) InsertOpts(kind string) river.InsertOpts {
	return river.InsertOpts{MaxAttempts: p.configFor(kind).MaxAttempts}
}

func (p *RetryPolicy) configFor(kind string) RetryConfig {
	if p == nil {
		return RetryConfig{MaxAttempts: DefaultMaxAttempts, BaseDelay: 30 * time.Second, MaxDelay: 30 * time.Minute}
	}
	if config, ok := p.ByKind[kind]; ok {
		return config
	}
	return p.Default
}

// ClientOptions wires a River client to the rest of the service.
type ClientOptions struct {
	Workers      *river.Workers
	Logger       *slog.Logger
	ErrorLogger  zerolog.Logger
	PeriodicJobs []*river.PeriodicJob
	Policy       *RetryPolicy
}

// NewClientConfig builds a River configuration with the retry policy, the
// metrics hook and the failure logger installed.
func NewClientConfig(opts ClientOptions) *river.Config {
	policy := opts.Policy
	if policy == nil {
		policy = NewRetryPolicy(0)
	}
	config := &river.Config{
		Workers:      opts.Workers,
		RetryPolicy:  policy,
		MaxAttempts:  policy.Default.MaxAttempts,
		PeriodicJobs: opts.PeriodicJobs,
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 4},
		},
		Hooks:        []rivertype.Hook{metrics.NewRiverMetricsHook()},
		ErrorHandler: NewErrorHandler(opts.ErrorLogger),
	}
	if opts.Logger != nil {
		config.Logger = opts.Logger
	}
	return config
}

// NewClient creates a River client using pgx v5.
func NewClient(pool *pgxpool.Pool, opts ClientOptions) (*river.Client[pgx.Tx], error) {
	return river.NewClient(riverpgxv5.New(pool), NewClientConfig(opts))
}

// NewPeriodicJobs schedules lifecycle reconciliation every interval, once
// immediately on start. A non-positive interval disables the schedule.
func NewPeriodicJobs(interval time.Duration, policy *RetryPolicy) []*river.PeriodicJob {
	if interval <= 0 {
		return nil
	}
	opts := policy.InsertOpts(JobKindReconcileEvents)
	return []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(interval),
			func() (river.JobArgs, *river.InsertOpts) {
				return ReconcileEventsArgs{}, &opts
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
	}
}
