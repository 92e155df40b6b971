package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reseller/crosslist/internal/domain/listing"
	"github.com/reseller/crosslist/internal/domain/shared"
	"github.com/reseller/crosslist/internal/infrastructure/config"
)

// Factory creates the listing locker and sale signal store from configuration.
// With Redis enabled both are shared across instances; otherwise, or when
// Redis is unreachable and fallback is allowed, they are process-local.
type Factory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool

	client redis.UniversalClient
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory
// implementations when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// WithClient uses an existing Redis client instead of dialing one
func WithClient(client redis.UniversalClient) FactoryOption {
	return func(f *Factory) {
		f.client = client
	}
}

// NewFactory creates a new factory
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// redisClient connects once and pings. It returns nil, nil when Redis is
// disabled.
func (f *Factory) redisClient() (redis.UniversalClient, error) {
	if f.client != nil {
		return f.client, nil
	}
	if !f.redisConfig.Enabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	f.client = client
	return client, nil
}

func (f *Factory) fallback(what string, err error) error {
	if !f.allowInMemoryFallback {
		return fmt.Errorf("Redis required for %s but unavailable: %w", what, err)
	}
	f.logger.Warn("Redis unavailable, falling back to in-memory "+what+". "+
		"Concurrent sales on other instances will not be serialized.",
		zap.Error(err),
	)
	return nil
}

// CreateLocker returns a Redis locker with lock ttl, or a KeyedLocker
func (f *Factory) CreateLocker(ttl time.Duration) (listing.ListingLocker, error) {
	client, err := f.redisClient()
	if err != nil {
		if ferr := f.fallback("listing locks", err); ferr != nil {
			return nil, ferr
		}
		return NewKeyedLocker(), nil
	}
	if client == nil {
		f.logger.Info("using in-memory listing locks")
		return NewKeyedLocker(), nil
	}
	f.logger.Info("using Redis listing locks", zap.Duration("ttl", ttl))
	return NewRedisListingLocker(client, ttl, f.logger), nil
}

// CreateIdempotencyStore returns the sale signal store
func (f *Factory) CreateIdempotencyStore() (shared.IdempotencyStore, error) {
	client, err := f.redisClient()
	if err != nil {
		if ferr := f.fallback("sale signal store", err); ferr != nil {
			return nil, ferr
		}
		return NewInMemoryIdempotencyStore(0), nil
	}
	if client == nil {
		return NewInMemoryIdempotencyStore(0), nil
	}
	return NewRedisIdempotencyStore(client, ""), nil
}

// Close closes the Redis client if one was opened
func (f *Factory) Close() error {
	if f.client == nil {
		return nil
	}
	return f.client.Close()
}
