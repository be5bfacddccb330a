// Package ragtool implements the retrieval pipeline: query expansion,
// parallel dense/sparse/graph retrieval, reciprocal-rank fusion,
// cross-encoder rerank, contextual compression, and citation coalescing.
package ragtool

import (
	"context"

	"github.com/sells-group/research-cli/internal/model"
)

// Paraphraser generates alternate phrasings of a question, widening
// retrieval recall beyond the user's exact wording.
type Paraphraser interface {
	Paraphrase(ctx context.Context, question string, n int) ([]string, error)
}

// Reranker scores a (question, passage) pair in [0,1]; higher means more
// relevant. Kept narrow and local, same technique as vlm.VisionCaller.
type Reranker interface {
	Score(ctx context.Context, question, passageText string) (float64, error)
}

// Compressor extracts only the sentences of a passage relevant to a
// question, preserving the passage's source prefix.
type Compressor interface {
	Compress(ctx context.Context, question, passageText string) (string, error)
}

// RankedPassage is one retrieved, reranked, and compressed chunk with its
// resolvable citation.
type RankedPassage struct {
	ChunkID  string
	Text     string
	Score    float64
	Citation model.Citation
}

// RetrievalFilter narrows retrieval the same way model.VectorFilter does;
// mirrored here so callers outside internal/vectorindex don't need to
// import that package's filter type directly.
type RetrievalFilter = model.VectorFilter
