package ragtool

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/research-cli/internal/config"
	"github.com/sells-group/research-cli/internal/graphstore"
	"github.com/sells-group/research-cli/internal/model"
)

// DenseEmbedder produces the dense embedding of a query string. Narrow local
// interface over embedding.Client's EmbedOne, same decoupling technique as
// vlm.VisionCaller.
type DenseEmbedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// SparseEncoder produces the BM25-style sparse vector of a query string.
// Narrow local interface over embedding.Encoder.
type SparseEncoder interface {
	Encode(text string) model.SparseVector
}

// VectorSearcher is the vector index's read path. Narrow local interface
// over vectorindex.Store.
type VectorSearcher interface {
	Query(ctx context.Context, dense []float32, sparse *model.SparseVector, topK int, filter model.VectorFilter) ([]model.ScoredChunk, error)
}

// GraphSearcher is the graph store's read path. MergeEntity is idempotent —
// resolving a question's mentioned entities to their existing entity ids is
// the same merge-on-conflict call the extraction pipeline uses to write
// them in the first place, so reusing it here never mutates a graph that
// already has the entity.
type GraphSearcher interface {
	MergeEntity(ctx context.Context, t model.EntityType, canonicalName string, aliases []string) (string, error)
	FindRelated(ctx context.Context, entityIDs []string, maxHops int) ([]model.RelatedEntity, error)
}

// Retriever implements the question -> RankedPassages pipeline: query
// expansion, parallel dense/sparse/graph retrieval, reciprocal-rank fusion,
// cross-encoder rerank, contextual compression, and citation coalescing.
type Retriever struct {
	embedder    DenseEmbedder
	sparse      SparseEncoder
	vectors     VectorSearcher
	graph       GraphSearcher
	extractor   *graphstore.Extractor
	paraphraser Paraphraser
	reranker    Reranker
	compressor  Compressor
	cfg         config.RAGConfig
}

func NewRetriever(
	embedder DenseEmbedder,
	sparse SparseEncoder,
	vectors VectorSearcher,
	graph GraphSearcher,
	paraphraser Paraphraser,
	reranker Reranker,
	compressor Compressor,
	cfg config.RAGConfig,
) *Retriever {
	return &Retriever{
		embedder:    embedder,
		sparse:      sparse,
		vectors:     vectors,
		graph:       graph,
		extractor:   graphstore.NewExtractor(),
		paraphraser: paraphraser,
		reranker:    reranker,
		compressor:  compressor,
		cfg:         cfg,
	}
}

// Retrieve runs the full pipeline for one question, returning up to
// RerankTopN compressed, cited passages ordered by relevance. Every stage
// past query expansion fails open: a failing query variant, an empty graph
// hit, or a reranker/compressor error drops that contribution rather than
// aborting the whole retrieval.
func (r *Retriever) Retrieve(ctx context.Context, question string, filter RetrievalFilter) ([]RankedPassage, error) {
	queries := r.expandQueries(ctx, question)

	var mu sync.Mutex
	chunksByID := make(map[string]model.ScoredChunk)
	lists := make([]rankedList, len(queries))
	var graphList rankedList

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(queries) + 1)

	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			hits, err := r.hybridQuery(gctx, q, filter)
			if err != nil {
				zap.L().Warn("ragtool: retrieval query variant failed",
					zap.Int("variant", i), zap.Error(err))
				return nil
			}
			ids := make([]string, len(hits))
			mu.Lock()
			for j, h := range hits {
				ids[j] = h.ChunkID
				chunksByID[h.ChunkID] = h
			}
			mu.Unlock()
			lists[i] = rankedList{chunkIDs: ids}
			return nil
		})
	}

	g.Go(func() error {
		graphList = rankedList{chunkIDs: r.graphRetrieve(gctx, question), isGraph: true}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	fiscalYearByChunk := make(map[string]int, len(chunksByID))
	for id, c := range chunksByID {
		fiscalYearByChunk[id] = c.Metadata.FiscalYear
	}

	fused := fuseRankings(append(lists, graphList), r.cfg.RRFK, kgBoostOrDefault(r.cfg.KGBoost), fiscalYearByChunk)

	fanout := r.cfg.FanoutTopK
	if fanout <= 0 || fanout > len(fused) {
		fanout = len(fused)
	}
	candidates := fused[:fanout]

	reranked := r.rerank(ctx, question, candidates, chunksByID)

	topN := r.cfg.RerankTopN
	if topN <= 0 || topN > len(reranked) {
		topN = len(reranked)
	}

	passages := r.compressAndCite(ctx, question, reranked[:topN], chunksByID)
	return coalesceCitations(passages), nil
}

func kgBoostOrDefault(w float64) float64 {
	if w < 1.0 {
		return 1.0
	}
	return w
}

// expandQueries widens recall with a Paraphraser; a missing paraphraser or a
// paraphrase failure just leaves the original question as the sole query.
func (r *Retriever) expandQueries(ctx context.Context, question string) []string {
	queries := []string{question}
	if r.paraphraser == nil || r.cfg.Paraphrases <= 0 {
		return queries
	}
	alts, err := r.paraphraser.Paraphrase(ctx, question, r.cfg.Paraphrases)
	if err != nil {
		zap.L().Warn("ragtool: paraphrase failed, retrieving on the original question only", zap.Error(err))
		return queries
	}
	for _, alt := range alts {
		if alt != "" {
			queries = append(queries, alt)
		}
	}
	return queries
}

// hybridQuery embeds and sparse-encodes one query variant and runs it
// against the vector index.
func (r *Retriever) hybridQuery(ctx context.Context, query string, filter RetrievalFilter) ([]model.ScoredChunk, error) {
	dense, err := r.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, err
	}
	topK := r.cfg.FanoutTopK
	if topK <= 0 {
		topK = r.cfg.TopK
	}
	sparse := r.sparse.Encode(query)
	return r.vectors.Query(ctx, dense, &sparse, topK, filter)
}

// graphRetrieve resolves the entities mentioned in the question to their
// graph entity ids and walks out to the configured hop ceiling, returning
// the supporting chunk ids in the order Store.FindRelated returns them
// (nearest hop first). A nil graph, an extraction miss, or a store error
// all yield an empty list rather than an error — the graph contribution is
// additive, never load-bearing.
func (r *Retriever) graphRetrieve(ctx context.Context, question string) []string {
	if r.graph == nil {
		return nil
	}
	entities, _ := r.extractor.Extract(model.Chunk{TextEnriched: question}, "")

	seen := make(map[string]bool)
	var entityIDs []string
	for _, ent := range entities {
		if ent.Type == model.EntityDocument {
			continue
		}
		id, err := r.graph.MergeEntity(ctx, ent.Type, ent.CanonicalName, ent.Aliases)
		if err != nil {
			zap.L().Warn("ragtool: entity resolution failed",
				zap.String("canonical_name", ent.CanonicalName), zap.Error(err))
			continue
		}
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		entityIDs = append(entityIDs, id)
	}
	if len(entityIDs) == 0 {
		return nil
	}

	related, err := r.graph.FindRelated(ctx, entityIDs, graphstore.ClampHops(r.cfg.MaxHops))
	if err != nil {
		zap.L().Warn("ragtool: graph traversal failed", zap.Error(err))
		return nil
	}

	seenChunk := make(map[string]bool)
	var chunkIDs []string
	for _, rel := range related {
		for _, chunkID := range rel.SupportingChunks {
			if chunkID == "" || seenChunk[chunkID] {
				continue
			}
			seenChunk[chunkID] = true
			chunkIDs = append(chunkIDs, chunkID)
		}
	}
	return chunkIDs
}
