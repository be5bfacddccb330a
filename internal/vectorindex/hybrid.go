package vectorindex

import (
	"sort"

	"github.com/sells-group/research-cli/internal/model"
)

// sparseDot computes the dot product of two BM25-style sparse vectors over
// shared indices. Both vectors are assumed sorted by index ascending, which
// is how internal/embedding emits them.
func sparseDot(a, b model.SparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] == b.Indices[j]:
			sum += float64(a.Values[i]) * float64(b.Values[j])
			i++
			j++
		case a.Indices[i] < b.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// hybridDenseWeight balances dense cosine similarity (already in [-1,1],
// typically [0,1] for normalized embeddings) against an unbounded sparse
// dot product; 0.5/0.5 is the simplest symmetric default absent relevance
// feedback to tune it.
const hybridDenseWeight = 0.5

func fuseScores(denseScore, sparseScore float64) float64 {
	return hybridDenseWeight*denseScore + (1-hybridDenseWeight)*sparseScore
}

func sortByScoreDesc(chunks []model.ScoredChunk) {
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Score > chunks[j].Score })
}
