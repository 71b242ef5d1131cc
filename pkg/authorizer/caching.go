package authorizer

import (
	"context"
	"strings"
)

// CachingDecider remembers completed decisions per identity source.
type CachingDecider struct {
	next         Decider
	cache        *Cache
	cacheDenials bool
}

func NewCachingDecider(next Decider, cache *Cache, cacheDenials bool) *CachingDecider {
	return &CachingDecider{next: next, cache: cache, cacheDenials: cacheDenials}
}

// Decide may run the wrapped decider concurrently for the same credential on a cold cache.
func (c *CachingDecider) Decide(ctx context.Context, request *Request) (*Decision, error) {
	key := cacheKey(request)
	if key == "" {
		return c.next.Decide(ctx, request)
	}

	if result, ok := c.cache.Get(key); ok {
		return result.Decision, result.Err
	}

	decision, err := c.next.Decide(ctx, request)
	if decision == nil {
		decision = TransientDeny()
	}

	if c.storable(ctx, decision) {
		c.cache.Put(key, Result{Decision: decision, Err: err})
	}

	return decision, err
}

func (c *CachingDecider) storable(ctx context.Context, decision *Decision) bool {
	if ctx.Err() != nil || decision.Transient {
		return false
	}
	return decision.Allowed || c.cacheDenials
}

func cacheKey(request *Request) string {
	for _, value := range request.IdentitySource {
		if value == "" {
			return ""
		}
	}
	return strings.Join(request.IdentitySource, "\x00")
}
