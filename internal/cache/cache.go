// Package cache implements the semantic response cache: a nearest-neighbor
// lookup over L2-normalized query embeddings, keyed on cosine similarity
// and TTL rather than exact-match text, plus document-scoped invalidation
// and a cron-scheduled expiry sweep.
package cache

import (
	"context"
	"math"
	"time"

	"github.com/sells-group/research-cli/internal/model"
	"github.com/sells-group/research-cli/internal/store"
)

// DefaultMinSimilarity is the cosine similarity floor a lookup must clear
// to count as a hit.
const DefaultMinSimilarity = 0.95

// DefaultTTL is how long a stored response stays eligible for reuse.
const DefaultTTL = 7 * 24 * time.Hour

// Embedder produces the dense embedding of a query string. Narrow local
// interface over embedding.Client, same decoupling technique as
// ragtool.DenseEmbedder.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Backend is the cache's persistence surface. Narrow local interface over
// store.Store — the response cache only ever touches its own four methods,
// never the checkpoint or DLQ ones that share the same store.
type Backend interface {
	LookupCache(ctx context.Context, queryEmbedding []float32, filter store.CacheFilter) (*model.CacheEntry, error)
	StoreCache(ctx context.Context, entry model.CacheEntry) error
	InvalidateCacheByDocument(ctx context.Context, documentID string) (int, error)
	SweepExpiredCache(ctx context.Context, now time.Time) (int, error)
}

// ResponseCache is the semantic response cache: lookup by L2-normalized
// query embedding and cosine similarity, store with a TTL, invalidate by
// cited document, sweep expired entries.
type ResponseCache struct {
	backend       Backend
	embedder      Embedder
	minSimilarity float64
	ttl           time.Duration
}

// New builds a ResponseCache with the given similarity floor and TTL. A
// zero minSimilarity or ttl falls back to the package defaults.
func New(backend Backend, embedder Embedder, minSimilarity float64, ttl time.Duration) *ResponseCache {
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResponseCache{backend: backend, embedder: embedder, minSimilarity: minSimilarity, ttl: ttl}
}

// Lookup embeds and L2-normalizes query, then returns the nearest cache
// entry whose cosine similarity clears the floor and whose TTL has not
// elapsed. A miss — no candidate clears the floor, or the nearest one has
// already expired — returns (nil, false, nil), never an error.
func (c *ResponseCache) Lookup(ctx context.Context, query string) (*model.CacheEntry, bool, error) {
	embedding, err := c.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, false, err
	}
	normalized := l2Normalize(embedding)

	entry, err := c.backend.LookupCache(ctx, normalized, store.CacheFilter{MinSimilarity: c.minSimilarity})
	if err != nil {
		return nil, false, err
	}
	if entry == nil {
		return nil, false, nil
	}
	// TTL is authoritative: an entry the backend hands back but whose TTL
	// has already elapsed is treated as absent even before a sweep reclaims
	// it, the same defensive check the backend's own query applies.
	if entry.Expired(time.Now()) {
		return nil, false, nil
	}
	return entry, true, nil
}

// Store embeds and L2-normalizes query, then persists one cache entry with
// a TTL expiring ttl from now.
func (c *ResponseCache) Store(ctx context.Context, query, response, toolTraceSummary string, citedDocumentIDs []string) error {
	embedding, err := c.embedder.EmbedOne(ctx, query)
	if err != nil {
		return err
	}
	entry := model.CacheEntry{
		QueryEmbedding:   l2Normalize(embedding),
		CanonicalQuery:   query,
		Response:         response,
		ToolTraceSummary: toolTraceSummary,
		CitedDocumentIDs: citedDocumentIDs,
		TTLEpoch:         time.Now().Add(c.ttl).Unix(),
		CreatedAt:        time.Now().UTC(),
	}
	return c.backend.StoreCache(ctx, entry)
}

// InvalidateByDocument purges every cache entry whose trace cites
// documentID, returning the count removed.
func (c *ResponseCache) InvalidateByDocument(ctx context.Context, documentID string) (int, error) {
	return c.backend.InvalidateCacheByDocument(ctx, documentID)
}

// Sweep removes every entry whose TTL has already elapsed, returning the
// count removed. Called on the cron schedule by Sweeper, and safe to call
// directly (e.g. from a CLI maintenance command).
func (c *ResponseCache) Sweep(ctx context.Context) (int, error) {
	return c.backend.SweepExpiredCache(ctx, time.Now())
}

// l2Normalize scales v to unit length so cosine similarity reduces to a
// plain dot product on the stored side; a zero vector is returned as-is
// since it has no direction to normalize.
func l2Normalize(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return v
	}
	norm := math.Sqrt(sumSquares)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
