package jobline

// Hooks are optional observability callbacks invoked by the queue and its
// workers. Every field may be left nil; nil hooks are no-ops. Hooks are
// invoked synchronously on the calling goroutine and must not block
// indefinitely; a panicking hook is recovered and discarded, never allowed
// to influence a job's recorded outcome.
type Hooks struct {
	// OnJobAdded fires after Add/AddMany successfully inserts a job.
	OnJobAdded func(job *Job)

	// OnProcessing fires just before a worker invokes its handler.
	OnProcessing func(job *Job)
	// OnCompleted fires after a handler returns nil and MarkDone has been
	// attempted; it fires even if MarkDone returned an error.
	OnCompleted func(job *Job)
	// OnFailed fires after a handler returns an error and MarkFailed has
	// been attempted; it fires even if MarkFailed returned an error.
	OnFailed func(job *Job, err error)

	// OnDoneJobsRemoved fires after a reap pass deletes done jobs, with
	// the number of rows deleted.
	OnDoneJobsRemoved func(n int)
	// OnFailedJobsRemoved fires after a reap pass deletes failed jobs.
	OnFailedJobsRemoved func(n int)
	// OnProcessingJobsRequeued fires after a maintenance tick requeues
	// timed-out processing jobs.
	OnProcessingJobsRequeued func(n int)
}

func (h *Hooks) jobAdded(job *Job) {
	if h == nil || h.OnJobAdded == nil {
		return
	}
	defer recoverHook()
	h.OnJobAdded(job)
}

func (h *Hooks) processing(job *Job) {
	if h == nil || h.OnProcessing == nil {
		return
	}
	defer recoverHook()
	h.OnProcessing(job)
}

func (h *Hooks) completed(job *Job) {
	if h == nil || h.OnCompleted == nil {
		return
	}
	defer recoverHook()
	h.OnCompleted(job)
}

func (h *Hooks) failed(job *Job, err error) {
	if h == nil || h.OnFailed == nil {
		return
	}
	defer recoverHook()
	h.OnFailed(job, err)
}

func (h *Hooks) doneJobsRemoved(n int) {
	if h == nil || h.OnDoneJobsRemoved == nil || n == 0 {
		return
	}
	defer recoverHook()
	h.OnDoneJobsRemoved(n)
}

func (h *Hooks) failedJobsRemoved(n int) {
	if h == nil || h.OnFailedJobsRemoved == nil || n == 0 {
		return
	}
	defer recoverHook()
	h.OnFailedJobsRemoved(n)
}

func (h *Hooks) processingJobsRequeued(n int) {
	if h == nil || h.OnProcessingJobsRequeued == nil || n == 0 {
		return
	}
	defer recoverHook()
	h.OnProcessingJobsRequeued(n)
}

// recoverHook swallows a panic raised from within a hook callback. Hooks
// are diagnostic; they must never crash the queue or a worker.
func recoverHook() {
	_ = recover()
}
