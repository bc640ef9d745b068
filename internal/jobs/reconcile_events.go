package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// EventReconciler is satisfied by *events.Service.
type EventReconciler interface {
	ReconcileFromJob(ctx context.Context) (int64, error)
}

// ReconcileEventsArgs marks every past, non-terminal event completed.
type ReconcileEventsArgs struct{}

func (ReconcileEventsArgs) Kind() string { return JobKindReconcileEvents }

// InsertOpts keeps at most one pending reconcile job in the queue.
func (ReconcileEventsArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		MaxAttempts: ReconcileEventsMaxAttempts,
		UniqueOpts: river.UniqueOpts{
			ByState: []rivertype.JobState{
				rivertype.JobStateAvailable,
				rivertype.JobStatePending,
				rivertype.JobStateRunning,
				rivertype.JobStateScheduled,
			},
		},
	}
}

type ReconcileEventsWorker struct {
	river.WorkerDefaults[ReconcileEventsArgs]
	Reconciler EventReconciler
}

func (w *ReconcileEventsWorker) Timeout(*river.Job[ReconcileEventsArgs]) time.Duration {
	return 30 * time.Second
}

func (w *ReconcileEventsWorker) Work(ctx context.Context, job *river.Job[ReconcileEventsArgs]) error {
	if job == nil {
		return fmt.Errorf("reconcile events job missing")
	}
	if w.Reconciler == nil {
		return fmt.Errorf("reconcile events worker has no reconciler")
	}
	if _, err := w.Reconciler.ReconcileFromJob(ctx); err != nil {
		return fmt.Errorf("reconcile events: %w", err)
	}
	return nil
}

// NewWorkers registers every worker the service runs.
func NewWorkers(reconciler EventReconciler) *river.Workers {
	workers := river.NewWorkers()
	river.AddWorker(workers, &ReconcileEventsWorker{Reconciler: reconciler})
	return workers
}
