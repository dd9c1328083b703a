package jobline

import (
	"time"

	"github.com/cenkalti/backoff"
)

// idleBackoffCap bounds how long a worker sleeps between unsuccessful
// claim attempts.
const idleBackoffCap = 1 * time.Second

// newIdleBackoff returns a fresh exponential backoff used by a worker
// while no job is available for its type. A successful claim resets it
// via Reset.
func newIdleBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	// Jitter stretches an interval by up to RandomizationFactor, so the
	// base interval is capped low enough that the jittered value stays
	// within idleBackoffCap.
	b.MaxInterval = time.Duration(float64(idleBackoffCap) / (1 + b.RandomizationFactor))
	b.MaxElapsedTime = 0 // never stop retrying
	b.Reset()
	return b
}
