// Package store provides the shared connection-pool plumbing backing
// conversation checkpoint persistence, the semantic response cache, and the
// extraction/index dead-letter queue. The relational store, graph store,
// and vector index each own a dedicated schema and live in their own
// packages (internal/relstore, internal/graphstore, internal/vectorindex)
// because their query shapes (SQL-tool SELECTs, recursive CTEs, pgvector
// operators) don't fit a generic interface the way checkpoint/cache/DLQ do.
package store

import (
	"context"
	"math"
	"time"

	"github.com/sells-group/research-cli/internal/model"
	"github.com/sells-group/research-cli/internal/resilience"
)

// CacheFilter narrows a Response Cache lookup beyond nearest-neighbor search.
type CacheFilter struct {
	MinSimilarity float64 // cosine similarity floor, default 0.95
}

// Store is the persistence interface for the conversation checkpoint store,
// the semantic response cache, and the document-retry dead-letter queue.
type Store interface {
	// Conversation checkpoint persistence
	SaveCheckpoint(ctx context.Context, state model.ConversationState) (*model.Checkpoint, error)
	LoadCheckpoint(ctx context.Context, conversationID string) (*model.ConversationState, error)
	DeleteCheckpoint(ctx context.Context, conversationID string) error

	// Semantic response cache
	LookupCache(ctx context.Context, queryEmbedding []float32, filter CacheFilter) (*model.CacheEntry, error)
	StoreCache(ctx context.Context, entry model.CacheEntry) error
	InvalidateCacheByDocument(ctx context.Context, documentID string) (int, error)
	SweepExpiredCache(ctx context.Context, now time.Time) (int, error)

	// Dead-letter queue (extraction/load/index retry)
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
	CountDLQ(ctx context.Context) (int, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// cosineSimilarity computes the cosine similarity of two equal-length
// vectors. Both backends' LookupCache use it to rank cache rows, since
// neither stores the cache embedding in a vector column.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
