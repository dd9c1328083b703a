package jobline

import (
	"context"
)

// DriveToEmpty runs worker's claim loop inline, on the calling goroutine,
// until there are no Pending jobs of its type and no due ScheduledJob of
// that type remains. It is meant for tests and graceful drains, not for
// production dispatch (use Worker.Start for that).
//
// DriveToEmpty performs one explicit maintenance tick first so that any
// due scheduled jobs are materialised before the emptiness check.
func DriveToEmpty(ctx context.Context, q *Queue, w *Worker) error {
	q.tick(ctx)

	for {
		job, err := q.Claim(ctx, w.jobType)
		if err != nil {
			return err
		}
		if job != nil {
			w.process(job)
			continue
		}

		empty, err := isEmpty(ctx, q, w.jobType)
		if err != nil {
			return err
		}
		if empty {
			return nil
		}
		// A schedule for this type is due but hasn't fired yet in this
		// pass; give the scheduler a chance to materialise it.
		q.tick(ctx)
	}
}

func isEmpty(ctx context.Context, q *Queue, jobType string) (bool, error) {
	n, err := q.CountJobs(ctx, JobFilter{Type: jobType, Status: Pending})
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	scheds, err := q.GetScheduledJobs(ctx)
	if err != nil {
		return false, err
	}
	now := nowMillis()
	for _, sc := range scheds {
		if sc.Type != jobType {
			continue
		}
		if sc.Status == Idle && sc.NextRun <= now {
			return false, nil
		}
	}
	return true, nil
}
