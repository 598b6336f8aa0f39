package extractor

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/docextract/pkg/types"
)

// CachedExtractor memoizes successful extractions by content hash.
// Failures are never cached.
type CachedExtractor struct {
	next   Extractor
	cache  *lru.Cache[string, *types.Legislation]
	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats reports cache effectiveness
type CacheStats struct {
	Size   int
	Hits   int64
	Misses int64
}

// NewCachedExtractor wraps next with an LRU of the given size
func NewCachedExtractor(next Extractor, size int) *CachedExtractor {
	if size <= 0 {
		size = DefaultCacheSize
	}
	// lru.New only errors on a non-positive size
	c, _ := lru.New[string, *types.Legislation](size)
	return &CachedExtractor{next: next, cache: c}
}

// Extract implements Extractor. Callers receive their own copy and may
// mutate it freely.
func (c *CachedExtractor) Extract(ctx context.Context, instructions, text string) (*types.Legislation, error) {
	key := ComputeKey(instructions, text)
	if doc, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return doc.Clone(), nil
	}
	c.misses.Add(1)

	doc, err := c.next.Extract(ctx, instructions, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, doc.Clone())
	return doc, nil
}

// Validate forwards to the wrapped extractor when it can validate
func (c *CachedExtractor) Validate(ctx context.Context, text string) (*types.Validation, error) {
	v, ok := c.next.(Validator)
	if !ok {
		return &types.Validation{IsLegislation: true, ConfidenceScore: 1}, nil
	}
	return v.Validate(ctx, text)
}

// Provider implements Extractor
func (c *CachedExtractor) Provider() string {
	return c.next.Provider()
}

// Model implements Extractor
func (c *CachedExtractor) Model() string {
	return c.next.Model()
}

// Stats returns a snapshot of the cache counters
func (c *CachedExtractor) Stats() CacheStats {
	return CacheStats{
		Size:   c.cache.Len(),
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

// Purge empties the cache
func (c *CachedExtractor) Purge() {
	c.cache.Purge()
}
