package domain

import (
	"context"
	"time"
)

// CommitGrace bounds how long a candidate commit may run after the pass
// deadline.
const CommitGrace = 5 * time.Second

// PassLease is a named advisory flag with a TTL, used to keep two engine
// instances from running passes at the same time.
type PassLease interface {
	// Acquire takes the lease for holder until now+ttl. It succeeds when the
	// lease is free, expired, or already held by holder.
	Acquire(ctx context.Context, holder string, ttl time.Duration, now time.Time) (bool, error)
	Release(ctx context.Context, holder string) error
}
