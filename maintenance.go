package jobline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// maintain is the queue's background maintenance loop. It runs until
// stopc is closed, performing one tick every maintenanceInterval. Ticks
// never overlap: a tick waits for the previous one to finish.
func (q *Queue) maintain() {
	defer close(q.donec)

	t := time.NewTicker(q.maintenanceInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			q.tick(context.Background())
		case <-q.stopc:
			return
		}
	}
}

// tick runs one maintenance pass: fire due schedules, requeue timed-out
// jobs, then reap aged terminal jobs. Errors are logged, never fatal to
// the loop.
func (q *Queue) tick(ctx context.Context) {
	if err := q.fireDueSchedules(ctx); err != nil {
		q.logger.Printf("jobline: maintenance: firing schedules: %v", err)
	}
	if _, err := q.RequeueTimedOutJobs(ctx, q.timeout); err != nil {
		q.logger.Printf("jobline: maintenance: requeueing timed-out jobs: %v", err)
	}
	if err := q.reap(ctx); err != nil {
		q.logger.Printf("jobline: maintenance: reaping: %v", err)
	}
}

// fireDueSchedules materialises one Pending job per due ScheduledJob.
// Exactly one job is created per schedule per tick, regardless of how
// many cron fire instants fell in the past while the process was down.
func (q *Queue) fireDueSchedules(ctx context.Context) error {
	for {
		sched, err := q.ClaimDueScheduledJob(ctx)
		if err != nil {
			return err
		}
		if sched == nil {
			return nil
		}
		if err := q.materialize(ctx, sched); err != nil {
			q.logger.Printf("jobline: maintenance: materializing schedule %d (%s): %v", sched.ID, sched.Type, err)
			// Leave the schedule SchedProcessing; an operator can
			// investigate. A future tick will not reclaim it until it is
			// returned to Idle, which is the safest failure mode for a
			// uniquely-typed schedule.
			return err
		}
	}
}

func (q *Queue) materialize(ctx context.Context, sched *ScheduledJob) error {
	data, err := q.serializer.Serialize(emptyPayload)
	if err != nil {
		return err
	}
	job := &Job{
		Type:      sched.Type,
		Data:      data,
		Status:    Pending,
		CreatedAt: nowMillis(),
	}
	if err := q.store.CreateJob(ctx, job); err != nil {
		return err
	}
	q.hooks.jobAdded(job)

	next, err := nextFireAfter(sched.CronExpression, time.Now())
	if err != nil {
		return err
	}
	return q.MarkScheduledJobIdle(ctx, sched.ID, next)
}

// reap deletes aged terminal jobs if reaping is configured. The done and
// failed passes touch disjoint rows, so they run concurrently.
func (q *Queue) reap(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if q.reapDoneAfter > 0 {
		g.Go(func() error {
			_, err := q.RemoveDoneJobs(gctx, q.reapDoneAfter)
			return err
		})
	}
	if q.reapFailedAfter > 0 {
		g.Go(func() error {
			_, err := q.RemoveFailedJobs(gctx, q.reapFailedAfter)
			return err
		})
	}
	return g.Wait()
}
