package jobline

// Job status values, stored verbatim in the jobs.status column.
const (
	// Pending means the job is waiting to be claimed by a worker.
	Pending string = "pending"
	// Processing means a worker currently owns the job.
	Processing string = "processing"
	// Done means the job's handler returned without error.
	Done string = "done"
	// Failed means the job's handler returned an error or panicked.
	Failed string = "failed"
)

// Job is a single unit of work tracked by the queue.
type Job struct {
	ID     int64  // opaque identifier, assigned at insertion
	Type   string // subscription key; workers claim jobs of one type
	Data   string // serialized payload, opaque to the queue
	Status string // one of Pending, Processing, Done, Failed

	CreatedAt    int64 // millisecond Unix timestamp, always set
	ProcessingAt int64 // set on every Pending -> Processing transition
	DoneAt       int64 // set iff Status == Done
	FailedAt     int64 // set iff Status == Failed

	Error string // populated iff Status == Failed
}

// JobFilter restricts CountJobs and similar listing operations. Zero-value
// fields are not applied as filters.
type JobFilter struct {
	Type   string
	Status string
}
