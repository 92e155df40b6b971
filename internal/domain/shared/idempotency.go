package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys that have already been handled so a
// repeated delivery of the same signal is recognized
type IdempotencyStore interface {
	// MarkProcessed records key for ttl. It returns false when the key was
	// already recorded.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	IsProcessed(ctx context.Context, key string) (bool, error)

	Close() error
}
