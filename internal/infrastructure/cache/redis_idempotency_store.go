package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reseller/crosslist/internal/domain/shared"
)

const defaultSignalPrefix = "crosslist:sale-signal:"

// RedisIdempotencyStore shares processed sale signal ids between instances
type RedisIdempotencyStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisIdempotencyStore wraps an existing client. An empty prefix uses
// crosslist:sale-signal:
func NewRedisIdempotencyStore(client redis.UniversalClient, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = defaultSignalPrefix
	}
	return &RedisIdempotencyStore{client: client, keyPrefix: keyPrefix}
}

// MarkProcessed uses SET NX with a TTL so the check and the write are atomic
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+id, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark sale signal %s: %w", id, err)
	}
	return ok, nil
}

// IsProcessed reports whether id is recorded
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, s.keyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check sale signal %s: %w", id, err)
	}
	return n > 0, nil
}

// Close is a no-op: the client is owned by the Factory
func (s *RedisIdempotencyStore) Close() error {
	return nil
}

var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)
