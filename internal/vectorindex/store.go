// Package vectorindex implements a hybrid dense/sparse vector index over
// Postgres + pgvector: dense vectors in a native `vector` column, sparse
// vectors in a `jsonb` column, hybrid fusion done externally since pgvector
// has no native sparse/dense fusion operator.
package vectorindex

import (
	"context"

	"github.com/sells-group/research-cli/internal/model"
)

// Stats summarizes one vector collection, returned by Store.Stats.
type Stats struct {
	VectorCount int64
	Dimension   int
}

// MaxUpsertBatch is the upsert batch ceiling.
const MaxUpsertBatch = 100

// Store is the vector index's contract: upsert, hybrid query, metadata-filtered delete,
// and stats. Re-indexing a document must delete its vectors before
// upserting the new set — callers get that ordering for free from
// ReindexDocument rather than having to sequence it themselves.
type Store interface {
	Upsert(ctx context.Context, vectors []model.VectorRecord) error
	Query(ctx context.Context, dense []float32, sparse *model.SparseVector, topK int, filter model.VectorFilter) ([]model.ScoredChunk, error)
	Delete(ctx context.Context, filter model.VectorFilter) error
	Stats(ctx context.Context) (Stats, error)

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// ReindexDocument enforces the invariant that a document's
// vectors are deleted before the replacement set is upserted, so readers
// never observe a partial duplicate state. Batches larger than
// MaxUpsertBatch are split; a failure partway through a multi-batch upsert
// leaves the document's vectors in a deleted (not duplicated) state, which
// is the safer of the two inconsistent outcomes.
func ReindexDocument(ctx context.Context, s Store, documentID string, vectors []model.VectorRecord) error {
	if err := s.Delete(ctx, model.VectorFilter{DocumentID: documentID}); err != nil {
		return err
	}
	for start := 0; start < len(vectors); start += MaxUpsertBatch {
		end := start + MaxUpsertBatch
		if end > len(vectors) {
			end = len(vectors)
		}
		if err := s.Upsert(ctx, vectors[start:end]); err != nil {
			return err
		}
	}
	return nil
}
