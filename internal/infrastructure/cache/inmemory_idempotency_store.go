package cache

import (
	"context"
	"sync"
	"time"

	"github.com/reseller/crosslist/internal/domain/shared"
)

const defaultCleanupInterval = 5 * time.Minute

// InMemoryIdempotencyStore remembers processed sale signal ids in a map.
// Suitable for single-instance deployments and tests.
type InMemoryIdempotencyStore struct {
	mu        sync.RWMutex
	expiresAt map[string]time.Time
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore creates the store and starts a goroutine that
// drops expired ids every interval (5m when interval <= 0)
func NewInMemoryIdempotencyStore(interval time.Duration) *InMemoryIdempotencyStore {
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	store := &InMemoryIdempotencyStore{
		expiresAt: make(map[string]time.Time),
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop(interval)

	return store
}

// MarkProcessed records id for ttl. It returns false when id was already
// recorded and has not expired.
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, id string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.expiresAt[id]; ok && now.Before(exp) {
		return false, nil
	}
	s.expiresAt[id] = now.Add(ttl)
	return true, nil
}

// IsProcessed reports whether id is recorded and unexpired
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exp, ok := s.expiresAt[id]
	return ok && s.now().Before(exp), nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryIdempotencyStore) cleanupLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryIdempotencyStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, exp := range s.expiresAt {
		if !now.Before(exp) {
			delete(s.expiresAt, id)
		}
	}
}

// Size returns the number of recorded ids, expired or not
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.expiresAt)
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
