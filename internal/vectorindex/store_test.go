package vectorindex

import (
	"context"

	"github.com/sells-group/research-cli/internal/model"
)

// stubStore is a hand-rolled Store double for exercising ReindexDocument's
// delete-then-upsert sequencing without a live Postgres connection.
type stubStore struct {
	deleteFn func(model.VectorFilter)
	upsertFn func([]model.VectorRecord)
}

func (s *stubStore) Upsert(_ context.Context, vectors []model.VectorRecord) error {
	if s.upsertFn != nil {
		s.upsertFn(vectors)
	}
	return nil
}

func (s *stubStore) Query(_ context.Context, _ []float32, _ *model.SparseVector, _ int, _ model.VectorFilter) ([]model.ScoredChunk, error) {
	return nil, nil
}

func (s *stubStore) Delete(_ context.Context, filter model.VectorFilter) error {
	if s.deleteFn != nil {
		s.deleteFn(filter)
	}
	return nil
}

func (s *stubStore) Stats(_ context.Context) (Stats, error) { return Stats{}, nil }
func (s *stubStore) Ping(_ context.Context) error            { return nil }
func (s *stubStore) Migrate(_ context.Context) error         { return nil }
func (s *stubStore) Close() error                            { return nil }
