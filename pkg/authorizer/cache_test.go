package authorizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mux sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.now = c.now.Add(d)
}

func jwtDate(t time.Time) *jwt.NumericDate {
	return jwt.NewNumericDate(t)
}

type countingDecider struct {
	calls    atomic.Int32
	decision func(request *Request) (*Decision, error)
}

func (c *countingDecider) Decide(ctx context.Context, request *Request) (*Decision, error) {
	c.calls.Add(1)
	return c.decision(request)
}

func TestCache_Expiry(t *testing.T) {
	now := &clock{now: time.Unix(1700000000, 0)}
	cache := NewCache(time.Minute, WithCacheClock(now.Now))

	cache.Put("Bearer a", Result{Decision: &Decision{Allowed: true}})
	result, ok := cache.Get("Bearer a")
	require.True(t, ok)
	assert.True(t, result.Decision.Allowed)

	now.Advance(59 * time.Second)
	_, ok = cache.Get("Bearer a")
	assert.True(t, ok)

	now.Advance(time.Second)
	_, ok = cache.Get("Bearer a")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestCache_TokenExpiryCapsTTL(t *testing.T) {
	now := &clock{now: time.Unix(1700000000, 0)}
	cache := NewCache(time.Hour, WithCacheClock(now.Now))

	cache.Put("Bearer a", Result{Decision: &Decision{Allowed: true, ExpiresAt: now.Now().Add(10 * time.Second)}})
	now.Advance(10 * time.Second)
	_, ok := cache.Get("Bearer a")
	assert.False(t, ok)

	cache.Put("Bearer expired", Result{Decision: &Decision{Allowed: true, ExpiresAt: now.Now().Add(-time.Second)}})
	assert.Equal(t, 0, cache.Len())
}

// keysInShard returns n credentials that land in the same shard.
func keysInShard(cache *Cache, n int) []string {
	var keys []string
	_, target := cache.locate("Bearer 0")
	for i := 0; len(keys) < n; i++ {
		key := fmt.Sprintf("Bearer %d", i)
		if _, s := cache.locate(key); s == target {
			keys = append(keys, key)
		}
	}
	return keys
}

func TestCache_Capacity(t *testing.T) {
	now := &clock{now: time.Unix(1700000000, 0)}
	cache := NewCache(time.Hour, WithCacheClock(now.Now), WithCacheCapacity(2*cacheShards))
	keys := keysInShard(cache, 3)

	cache.Put(keys[0], Result{Decision: &Decision{Allowed: true, ExpiresAt: now.Now().Add(10 * time.Second)}})
	cache.Put(keys[1], Result{Decision: Deny()})
	cache.Put(keys[2], Result{Decision: Deny()})

	_, ok := cache.Get(keys[0])
	assert.False(t, ok, "entry expiring soonest is evicted")
	_, ok = cache.Get(keys[1])
	assert.True(t, ok)
	_, ok = cache.Get(keys[2])
	assert.True(t, ok)

	for i := 0; i < 1000; i++ {
		cache.Put(fmt.Sprintf("Bearer flood-%d", i), Result{Decision: Deny()})
	}
	assert.LessOrEqual(t, cache.Len(), 2*cacheShards)
}

func TestCache_ReturnsCopies(t *testing.T) {
	cache := NewCache(time.Minute)
	cache.Put("Bearer a", Result{Decision: &Decision{Allowed: true, PrincipalID: "user-1"}})

	result, ok := cache.Get("Bearer a")
	require.True(t, ok)
	result.Decision.Allowed = false

	result, ok = cache.Get("Bearer a")
	require.True(t, ok)
	assert.True(t, result.Decision.Allowed)
}

func TestCache_DistinctCredentials(t *testing.T) {
	cache := NewCache(time.Minute)
	cache.Put("Bearer a", Result{Decision: &Decision{Allowed: true}})
	cache.Put("Bearer b", Result{Decision: &Decision{Allowed: false}, Err: ErrInactiveToken})

	a, ok := cache.Get("Bearer a")
	require.True(t, ok)
	assert.True(t, a.Decision.Allowed)

	b, ok := cache.Get("Bearer b")
	require.True(t, ok)
	assert.False(t, b.Decision.Allowed)
	assert.ErrorIs(t, b.Err, ErrInactiveToken)

	_, ok = cache.Get("Bearer c")
	assert.False(t, ok)
}

func TestCachingDecider(t *testing.T) {
	decide := func(request *Request) (*Decision, error) {
		switch request.IdentitySource[0] {
		case "Bearer valid":
			return &Decision{Allowed: true, PrincipalID: "user-1"}, nil
		case "Bearer flaky":
			return TransientDeny(), ErrDecisionUnavailable
		default:
			return Deny(), ErrInactiveToken
		}
	}

	t.Run("allow served from cache", func(t *testing.T) {
		next := &countingDecider{decision: decide}
		decider := NewCachingDecider(next, NewCache(time.Minute), false)

		for i := 0; i < 3; i++ {
			decision, err := decider.Decide(context.Background(), &Request{IdentitySource: []string{"Bearer valid"}})
			require.NoError(t, err)
			assert.True(t, decision.Allowed)
		}
		assert.EqualValues(t, 1, next.calls.Load())
	})

	t.Run("expired entry decided again", func(t *testing.T) {
		now := &clock{now: time.Unix(1700000000, 0)}
		next := &countingDecider{decision: decide}
		decider := NewCachingDecider(next, NewCache(time.Minute, WithCacheClock(now.Now)), true)
		request := &Request{IdentitySource: []string{"Bearer valid"}}

		_, err := decider.Decide(context.Background(), request)
		require.NoError(t, err)
		_, err = decider.Decide(context.Background(), request)
		require.NoError(t, err)
		assert.EqualValues(t, 1, next.calls.Load())

		now.Advance(time.Minute)
		_, err = decider.Decide(context.Background(), request)
		require.NoError(t, err)
		assert.EqualValues(t, 2, next.calls.Load())
	})

	t.Run("denials cached when enabled", func(t *testing.T) {
		next := &countingDecider{decision: decide}
		decider := NewCachingDecider(next, NewCache(time.Minute), true)

		for i := 0; i < 2; i++ {
			decision, err := decider.Decide(context.Background(), &Request{IdentitySource: []string{"Bearer revoked"}})
			assert.ErrorIs(t, err, ErrInactiveToken)
			assert.False(t, decision.Allowed)
		}
		assert.EqualValues(t, 1, next.calls.Load())
	})

	t.Run("denials not cached when disabled", func(t *testing.T) {
		next := &countingDecider{decision: decide}
		decider := NewCachingDecider(next, NewCache(time.Minute), false)

		for i := 0; i < 2; i++ {
			_, err := decider.Decide(context.Background(), &Request{IdentitySource: []string{"Bearer revoked"}})
			assert.ErrorIs(t, err, ErrInactiveToken)
		}
		assert.EqualValues(t, 2, next.calls.Load())
	})

	t.Run("transient failures never cached", func(t *testing.T) {
		next := &countingDecider{decision: decide}
		decider := NewCachingDecider(next, NewCache(time.Minute), true)

		for i := 0; i < 2; i++ {
			decision, err := decider.Decide(context.Background(), &Request{IdentitySource: []string{"Bearer flaky"}})
			assert.ErrorIs(t, err, ErrDecisionUnavailable)
			assert.False(t, decision.Allowed)
		}
		assert.EqualValues(t, 2, next.calls.Load())
	})

	t.Run("missing identity source bypasses cache", func(t *testing.T) {
		next := &countingDecider{decision: func(request *Request) (*Decision, error) {
			return Deny(), ErrMissingCredential
		}}
		cache := NewCache(time.Minute)
		decider := NewCachingDecider(next, cache, true)

		_, err := decider.Decide(context.Background(), &Request{IdentitySource: []string{""}})
		assert.ErrorIs(t, err, ErrMissingCredential)
		assert.Equal(t, 0, cache.Len())
	})

	t.Run("cancelled decisions leave no state", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		next := &countingDecider{decision: func(request *Request) (*Decision, error) {
			return Deny(), errors.New("context canceled")
		}}
		cache := NewCache(time.Minute)
		decider := NewCachingDecider(next, cache, true)

		_, err := decider.Decide(ctx, &Request{IdentitySource: []string{"Bearer valid"}})
		assert.Error(t, err)
		assert.Equal(t, 0, cache.Len())
	})

	t.Run("concurrent callers", func(t *testing.T) {
		next := &countingDecider{decision: decide}
		decider := NewCachingDecider(next, NewCache(time.Minute), false)

		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				decision, err := decider.Decide(context.Background(), &Request{IdentitySource: []string{"Bearer valid"}})
				assert.NoError(t, err)
				assert.True(t, decision.Allowed)
			}()
		}
		wg.Wait()

		calls := next.calls.Load()
		assert.GreaterOrEqual(t, calls, int32(1))
		assert.LessOrEqual(t, calls, int32(32))
	})
}
