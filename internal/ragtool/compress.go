package ragtool

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/research-cli/internal/model"
)

// compressAndCite extracts the question-relevant sentences of each
// reranked candidate's chunk text and attaches a resolvable citation. A nil
// compressor, or one that errors, falls back to the chunk's full raw text
// rather than dropping the passage.
func (r *Retriever) compressAndCite(ctx context.Context, question string, top []rerankedCandidate, chunksByID map[string]model.ScoredChunk) []RankedPassage {
	passages := make([]RankedPassage, len(top))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rerankConcurrency)

	for i, c := range top {
		i, c := i, c
		g.Go(func() error {
			hit := chunksByID[c.chunkID]
			text := ""
			if hit.Chunk != nil {
				text = hit.Chunk.TextRaw
			}

			compressed := text
			if r.compressor != nil && text != "" {
				result, err := r.compressor.Compress(gctx, question, text)
				if err != nil {
					zap.L().Warn("ragtool: compression failed",
						zap.String("chunk_id", c.chunkID), zap.Error(err))
				} else if result != "" {
					compressed = result
				}
			}

			passage := RankedPassage{
				ChunkID: c.chunkID,
				Text:    compressed,
				Score:   c.score,
				Citation: model.Citation{
					DocumentID: hit.Metadata.DocumentID,
					Company:    hit.Metadata.Company,
					Section:    hit.Metadata.Section,
					Page:       hit.Metadata.StartPage,
				},
			}
			passages[i] = passage
			return nil
		})
	}
	_ = g.Wait()
	return passages
}
