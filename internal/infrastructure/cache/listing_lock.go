package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reseller/crosslist/internal/domain/listing"
)

var (
	_ listing.ListingLocker = (*KeyedLocker)(nil)
	_ listing.ListingLocker = (*RedisListingLocker)(nil)
)

// ---------------------------------------------------------------------------
// KeyedLocker
// ---------------------------------------------------------------------------

// KeyedLocker is a process-local mutex per listing id. Entries are removed
// once no goroutine holds or waits for them.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*keyedEntry
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

// NewKeyedLocker creates an empty KeyedLocker
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[uuid.UUID]*keyedEntry)}
}

// Lock waits for the listing's lock or for ctx to be done
func (k *KeyedLocker) Lock(ctx context.Context, listingID uuid.UUID) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[listingID]
	if !ok {
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		k.locks[listingID] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		k.release(listingID, e)
		return nil, fmt.Errorf("lock listing %s: %w", listingID, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			k.release(listingID, e)
		})
	}, nil
}

func (k *KeyedLocker) release(listingID uuid.UUID, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, listingID)
	}
}

// Len returns the number of listings currently locked or awaited
func (k *KeyedLocker) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// ---------------------------------------------------------------------------
// RedisListingLocker
// ---------------------------------------------------------------------------

// releaseScript deletes the key only if it still holds our token, so a lock
// that expired and was taken by another instance is never released by us
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const (
	defaultLockPrefix = "crosslist:listing-lock:"
	defaultLockRetry  = 50 * time.Millisecond
)

// RedisListingLocker serializes sales for a listing across instances with
// SET NX PX. The TTL bounds how long a crashed holder blocks others.
type RedisListingLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
	prefix string
	logger *zap.Logger
}

// NewRedisListingLocker creates a locker whose locks expire after ttl
func NewRedisListingLocker(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisListingLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisListingLocker{
		client: client,
		ttl:    ttl,
		retry:  defaultLockRetry,
		prefix: defaultLockPrefix,
		logger: logger,
	}
}

// Lock polls SET NX until acquired or ctx is done
func (l *RedisListingLocker) Lock(ctx context.Context, listingID uuid.UUID) (func(), error) {
	key := l.prefix + listingID.String()
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock listing %s: %w", listingID, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("lock listing %s: %w", listingID, ctx.Err())
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// the caller's ctx may already be canceled
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
				l.logger.Warn("failed to release listing lock",
					zap.String("listing_id", listingID.String()),
					zap.Error(err),
				)
			}
		})
	}, nil
}
