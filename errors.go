package jobline

import "errors"

var (
	// ErrNotFound is returned by lookups when no matching row exists.
	ErrNotFound = errors.New("jobline: not found")

	// ErrInvalidCron is returned by Schedule when the cron expression
	// could not be parsed.
	ErrInvalidCron = errors.New("invalid cron expression provided")

	// ErrNotProcessing is returned by MarkDone/MarkFailed when the job
	// being marked is not currently in the Processing state. It is
	// recoverable: the job was likely already requeued by the timeout
	// logic, or marked by a different, racing caller.
	ErrNotProcessing = errors.New("jobline: job is not in processing state")

	// ErrClosed is returned by Add, AddMany, Claim and Schedule when
	// invoked after Close.
	ErrClosed = errors.New("jobline: queue is closed")
)
