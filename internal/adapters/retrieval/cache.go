package retrieval

import (
	"context"
	"strconv"
	"time"

	"github.com/okian/corep/internal/domain/model"
	"github.com/okian/corep/pkg/metrics"
	"github.com/patrickmn/go-cache"
)

// Cached memoizes a Retriever's results for a fixed TTL.
type Cached struct {
	next  Retriever
	cache *cache.Cache
}

// NewCached wraps next. A non-positive ttl disables caching.
func NewCached(next Retriever, ttl time.Duration) *Cached {
	c := &Cached{next: next}
	if ttl > 0 {
		c.cache = cache.New(ttl, 2*ttl)
	}
	return c
}

// Retrieve returns a cached result or delegates. Errors are not cached.
func (c *Cached) Retrieve(ctx context.Context, query, scenario string, k int) ([]model.RetrievedDocument, error) {
	if c.cache == nil {
		return c.next.Retrieve(ctx, query, scenario, k)
	}
	key := cacheKey(query, scenario, k)
	if v, ok := c.cache.Get(key); ok {
		metrics.RecordRetrievalCacheHit()
		return clone(v.([]model.RetrievedDocument)), nil
	}
	metrics.RecordRetrievalCacheMiss()

	docs, err := c.next.Retrieve(ctx, query, scenario, k)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, clone(docs))
	return docs, nil
}

// Flush drops every cached result, e.g. after the corpus changes.
func (c *Cached) Flush() {
	if c.cache != nil {
		c.cache.Flush()
	}
}

// Len returns the number of cached entries.
func (c *Cached) Len() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.ItemCount()
}

func cacheKey(query, scenario string, k int) string {
	return strconv.Itoa(k) + "\x00" + query + "\x00" + scenario
}

func clone(docs []model.RetrievedDocument) []model.RetrievedDocument {
	out := make([]model.RetrievedDocument, len(docs))
	copy(out, docs)
	return out
}
