package repository

import (
	"context"
	"time"
)

// RateLimitRepository implements a per-identity fixed-window counter backed by
// transactional storage.
type RateLimitRepository interface {
	// CheckAndConsume atomically consumes one slot for the identity. Inside a
	// single transaction: a missing counter is created with count=1, an
	// expired window is reset, an active window below max is incremented.
	// Returns false without mutating state when the limit is reached.
	CheckAndConsume(ctx context.Context, identityHash string, max int, window time.Duration) (bool, error)

	// DeleteExpiredBefore removes counters whose window started before cutoff,
	// in batches of at most batchSize rows. Returns the total number of
	// deleted rows.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}
