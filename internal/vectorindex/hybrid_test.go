package vectorindex

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/research-cli/internal/model"
)

func TestSparseDot_OverlappingIndices(t *testing.T) {
	a := model.SparseVector{Indices: []uint32{1, 3, 5}, Values: []float32{1, 2, 3}}
	b := model.SparseVector{Indices: []uint32{2, 3, 5, 8}, Values: []float32{4, 5, 6, 7}}

	got := sparseDot(a, b)
	assert.InDelta(t, float64(2*5+3*6), got, 1e-9)
}

func TestSparseDot_Disjoint(t *testing.T) {
	a := model.SparseVector{Indices: []uint32{1, 2}, Values: []float32{1, 1}}
	b := model.SparseVector{Indices: []uint32{3, 4}, Values: []float32{1, 1}}
	assert.Equal(t, float64(0), sparseDot(a, b))
}

func TestFuseScores_WeightsBothSignals(t *testing.T) {
	got := fuseScores(1.0, 0.0)
	assert.InDelta(t, hybridDenseWeight, got, 1e-9)

	got = fuseScores(0.0, 1.0)
	assert.InDelta(t, 1-hybridDenseWeight, got, 1e-9)
}

func TestSortByScoreDesc(t *testing.T) {
	chunks := []model.ScoredChunk{
		{ChunkID: "a", Score: 0.2},
		{ChunkID: "b", Score: 0.9},
		{ChunkID: "c", Score: 0.5},
	}
	sortByScoreDesc(chunks)
	assert.Equal(t, []string{"b", "c", "a"}, []string{chunks[0].ChunkID, chunks[1].ChunkID, chunks[2].ChunkID})
}

func TestReindexDocument_SplitsLargeBatches(t *testing.T) {
	vectors := make([]model.VectorRecord, MaxUpsertBatch+10)
	for i := range vectors {
		vectors[i] = model.VectorRecord{ChunkID: "chunk", Dense: []float32{0.1}}
	}

	var deletedFilters []model.VectorFilter
	var upsertBatches [][]model.VectorRecord
	stub := &stubStore{
		deleteFn: func(f model.VectorFilter) { deletedFilters = append(deletedFilters, f) },
		upsertFn: func(v []model.VectorRecord) { upsertBatches = append(upsertBatches, v) },
	}

	err := ReindexDocument(t.Context(), stub, "doc-1", vectors)
	assert.NoError(t, err)
	assert.Len(t, deletedFilters, 1)
	assert.Equal(t, "doc-1", deletedFilters[0].DocumentID)
	assert.Len(t, upsertBatches, 2)
	assert.Len(t, upsertBatches[0], MaxUpsertBatch)
	assert.Len(t, upsertBatches[1], 10)
}
