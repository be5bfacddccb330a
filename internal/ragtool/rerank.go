package ragtool

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/research-cli/internal/model"
)

// rerankedCandidate is a fused candidate after cross-encoder scoring.
type rerankedCandidate struct {
	chunkID string
	score   float64
}

const rerankConcurrency = 8

// rerank scores every fused candidate against the question with a
// cross-encoder. A candidate with no hydrated chunk text (a graph-only hit
// the dense/sparse passes never surfaced) or a scoring failure keeps its
// fused RRF score instead of being dropped — reranking refines ordering, it
// never gates membership. A nil reranker skips straight to the fused order.
func (r *Retriever) rerank(ctx context.Context, question string, candidates []fusionCandidate, chunksByID map[string]model.ScoredChunk) []rerankedCandidate {
	out := make([]rerankedCandidate, len(candidates))
	if r.reranker == nil {
		for i, c := range candidates {
			out[i] = rerankedCandidate{chunkID: c.chunkID, score: c.rrfScore}
		}
		return out
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rerankConcurrency)

	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			score := c.rrfScore
			if hit, ok := chunksByID[c.chunkID]; ok && hit.Chunk != nil && hit.Chunk.TextRaw != "" {
				s, err := r.reranker.Score(gctx, question, hit.Chunk.TextRaw)
				if err != nil {
					zap.L().Warn("ragtool: rerank scoring failed",
						zap.String("chunk_id", c.chunkID), zap.Error(err))
				} else {
					score = s
				}
			}
			out[i] = rerankedCandidate{chunkID: c.chunkID, score: score}
			return nil
		})
	}
	_ = g.Wait() // every goroutine above always returns nil; errors are logged, not propagated

	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}
