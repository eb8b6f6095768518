package cache

import (
	"context"
	"sync"
	"time"

	"retailledger/internal/domain/ledger"
)

type entry struct {
	result    string
	done      bool
	expiresAt time.Time
}

// InMemoryIdempotencyStore keeps idempotency keys in process.
// It is suitable for single-instance deployments and tests.
type InMemoryIdempotencyStore struct {
	mu         sync.Mutex
	entries    map[string]entry
	pendingTTL time.Duration
	resultTTL  time.Duration
	now        func() time.Time

	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ ledger.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)

// NewInMemoryIdempotencyStore creates the store and starts a background
// goroutine that drops expired entries. Call Close to stop it.
func NewInMemoryIdempotencyStore(pendingTTL, resultTTL time.Duration) *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		entries:    make(map[string]entry),
		pendingTTL: pendingTTL,
		resultTTL:  resultTTL,
		now:        time.Now,
		stopChan:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.cleanupLoop()
	return s
}

// Acquire claims key unless a live entry holds it.
func (s *InMemoryIdempotencyStore) Acquire(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		if e.done {
			return e.result, false, nil
		}
		return "", false, nil
	}
	s.entries[key] = entry{expiresAt: now.Add(s.pendingTTL)}
	return "", true, nil
}

// Complete stores result for key.
func (s *InMemoryIdempotencyStore) Complete(_ context.Context, key, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{result: result, done: true, expiresAt: s.now().Add(s.resultTTL)}
	return nil
}

// Release drops key.
func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Size returns the number of stored keys, expired ones included.
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the cleanup goroutine.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryIdempotencyStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopChan:
			return
		}
	}
}

func (s *InMemoryIdempotencyStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}
