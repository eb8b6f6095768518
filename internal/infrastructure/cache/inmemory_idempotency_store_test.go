package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore_Lifecycle(t *testing.T) {
	s := NewInMemoryIdempotencyStore(time.Minute, time.Hour)
	defer s.Close()
	ctx := context.Background()

	_, acquired, err := s.Acquire(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, acquired)

	result, acquired, err := s.Acquire(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.Empty(t, result, "in flight key has no result yet")

	require.NoError(t, s.Complete(ctx, "k1", "tx-1"))

	result, acquired, err = s.Acquire(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.Equal(t, "tx-1", result)
}

func TestInMemoryIdempotencyStore_ReleaseAllowsRetry(t *testing.T) {
	s := NewInMemoryIdempotencyStore(time.Minute, time.Hour)
	defer s.Close()
	ctx := context.Background()

	_, acquired, _ := s.Acquire(ctx, "k")
	require.True(t, acquired)
	require.NoError(t, s.Release(ctx, "k"))

	_, acquired, _ = s.Acquire(ctx, "k")
	assert.True(t, acquired)
}

func TestInMemoryIdempotencyStore_Expiry(t *testing.T) {
	s := NewInMemoryIdempotencyStore(time.Second, time.Minute)
	defer s.Close()
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, acquired, _ := s.Acquire(ctx, "stale")
	require.True(t, acquired)

	now = now.Add(2 * time.Second)
	_, acquired, _ = s.Acquire(ctx, "stale")
	assert.True(t, acquired, "an abandoned pending key expires")

	now = now.Add(2 * time.Minute)
	s.cleanup()
	assert.Equal(t, 0, s.Size())
}

func TestInMemoryIdempotencyStore_ConcurrentAcquire(t *testing.T) {
	s := NewInMemoryIdempotencyStore(time.Minute, time.Hour)
	defer s.Close()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := s.Acquire(context.Background(), "race"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
