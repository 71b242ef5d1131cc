package authorizer

import (
	"crypto/sha256"
	"sync"
	"time"

	"github.com/dgryski/go-farm"
)

const (
	cacheShards          = 16
	defaultCacheCapacity = cacheShards * 1024
	defaultCacheTTL      = 5 * time.Minute
)

type (
	// Result is a completed decision as it was returned by the decider.
	Result struct {
		Decision *Decision
		Err      error
	}

	Cache struct {
		ttl           time.Duration
		now           func() time.Time
		shardCapacity int
		shards        []*shard
	}

	CacheOption func(*Cache)

	shard struct {
		mux     sync.Mutex
		entries map[[sha256.Size]byte]*entry
	}

	entry struct {
		result    Result
		expiresAt time.Time
	}
)

// WithCacheCapacity bounds the number of entries, spread evenly over the shards.
func WithCacheCapacity(capacity int) CacheOption {
	return func(c *Cache) {
		c.shardCapacity = max(1, capacity/cacheShards)
	}
}

func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache keys entries by the SHA-256 digest of the credential, tokens are never kept in memory as map keys.
func NewCache(ttl time.Duration, options ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	c := &Cache{ttl: ttl, now: time.Now, shardCapacity: defaultCacheCapacity / cacheShards, shards: make([]*shard, cacheShards)}
	for i := range c.shards {
		c.shards[i] = &shard{entries: map[[sha256.Size]byte]*entry{}}
	}

	for _, option := range options {
		option(c)
	}

	return c
}

func (c *Cache) TTL() time.Duration {
	return c.ttl
}

func (c *Cache) Get(key string) (Result, bool) {
	digest, s := c.locate(key)

	s.mux.Lock()
	defer s.mux.Unlock()

	e, ok := s.entries[digest]
	if !ok {
		return Result{}, false
	}

	if !c.now().Before(e.expiresAt) {
		delete(s.entries, digest)
		return Result{}, false
	}

	return e.result.copy(), true
}

// Put stores result until the TTL passes or the token expires, whichever comes first.
func (c *Cache) Put(key string, result Result) {
	now := c.now()
	expiresAt := now.Add(c.ttl)
	if result.Decision != nil && !result.Decision.ExpiresAt.IsZero() && result.Decision.ExpiresAt.Before(expiresAt) {
		expiresAt = result.Decision.ExpiresAt
	}

	if !now.Before(expiresAt) {
		return
	}

	digest, s := c.locate(key)

	s.mux.Lock()
	defer s.mux.Unlock()

	if _, ok := s.entries[digest]; !ok && len(s.entries) >= c.shardCapacity {
		s.sweep(now)
		if len(s.entries) >= c.shardCapacity {
			s.evictSoonest()
		}
	}
	s.entries[digest] = &entry{result: result.copy(), expiresAt: expiresAt}
}

func (c *Cache) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mux.Lock()
		total += len(s.entries)
		s.mux.Unlock()
	}
	return total
}

func (c *Cache) locate(key string) ([sha256.Size]byte, *shard) {
	digest := sha256.Sum256([]byte(key))
	return digest, c.shards[farm.Hash32(digest[:])%uint32(len(c.shards))]
}

func (s *shard) sweep(now time.Time) {
	for digest, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, digest)
		}
	}
}

func (s *shard) evictSoonest() {
	var (
		soonest [sha256.Size]byte
		first   *entry
	)
	for digest, e := range s.entries {
		if first == nil || e.expiresAt.Before(first.expiresAt) {
			soonest, first = digest, e
		}
	}
	if first != nil {
		delete(s.entries, soonest)
	}
}

func (r Result) copy() Result {
	if r.Decision == nil {
		return r
	}
	decision := *r.Decision
	return Result{Decision: &decision, Err: r.Err}
}
