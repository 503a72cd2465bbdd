package scheduler

import (
	"context"
)

// ReconcileJobName is the name of the outstanding-job sweep.
const ReconcileJobName = "reconcile-translations"

// Reconciler resumes tracking of backend jobs that are still outstanding.
type Reconciler interface {
	ReconcileAll(ctx context.Context) error
}

// RegisterReconcile schedules a periodic reconcile sweep over every open
// entity. Jobs started by another admin session or lost across a restart
// are picked up on the next sweep.
func (s *Scheduler) RegisterReconcile(r Reconciler, schedule string) error {
	return s.Register(ReconcileJobName, "Resume tracking of outstanding translation jobs", schedule, r.ReconcileAll)
}
