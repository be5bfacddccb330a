package ragtool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-cli/internal/config"
	"github.com/sells-group/research-cli/internal/model"
)

type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) EmbedOne(_ context.Context, _ string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type stubSparseEncoder struct{}

func (stubSparseEncoder) Encode(_ string) model.SparseVector {
	return model.SparseVector{Indices: []uint32{1}, Values: []float32{1.0}}
}

type stubVectorSearcher struct {
	hits  []model.ScoredChunk
	err   error
	calls int
}

func (s *stubVectorSearcher) Query(_ context.Context, _ []float32, _ *model.SparseVector, _ int, _ model.VectorFilter) ([]model.ScoredChunk, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

type stubGraphSearcher struct {
	related []model.RelatedEntity
}

func (s *stubGraphSearcher) MergeEntity(_ context.Context, t model.EntityType, canonicalName string, _ []string) (string, error) {
	return string(t) + ":" + canonicalName, nil
}

func (s *stubGraphSearcher) FindRelated(_ context.Context, _ []string, _ int) ([]model.RelatedEntity, error) {
	return s.related, nil
}

type stubParaphraser struct {
	alts []string
	err  error
}

func (s *stubParaphraser) Paraphrase(_ context.Context, _ string, _ int) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.alts, nil
}

type stubReranker struct {
	scoreByChunk map[string]float64
}

func (s *stubReranker) Score(_ context.Context, _ string, passageText string) (float64, error) {
	if v, ok := s.scoreByChunk[passageText]; ok {
		return v, nil
	}
	return 0, nil
}

type stubCompressor struct{}

func (stubCompressor) Compress(_ context.Context, _ string, passageText string) (string, error) {
	return "compressed: " + passageText, nil
}

func testConfig() config.RAGConfig {
	return config.RAGConfig{
		TopK: 5, FanoutTopK: 10, RRFK: 60, KGBoost: 1.0,
		RerankTopN: 2, MaxHops: 2, Paraphrases: 1,
	}
}

func TestRetrieve_FusesVectorAndGraphHitsAndRespectsTopN(t *testing.T) {
	vs := &stubVectorSearcher{hits: []model.ScoredChunk{
		{ChunkID: "c1", Score: 0.9, Chunk: &model.Chunk{ChunkID: "c1", TextRaw: "Apple's revenue grew 8%."}, Metadata: model.VectorMetadata{DocumentID: "AAPL-2023", FiscalYear: 2023, StartPage: 5}},
		{ChunkID: "c2", Score: 0.8, Chunk: &model.Chunk{ChunkID: "c2", TextRaw: "Revenue by segment."}, Metadata: model.VectorMetadata{DocumentID: "AAPL-2023", FiscalYear: 2023, StartPage: 8}},
		{ChunkID: "c3", Score: 0.7, Chunk: &model.Chunk{ChunkID: "c3", TextRaw: "Unrelated text."}, Metadata: model.VectorMetadata{DocumentID: "AAPL-2022", FiscalYear: 2022, StartPage: 2}},
	}}
	gs := &stubGraphSearcher{related: []model.RelatedEntity{
		{Entity: model.Entity{EntityID: "e1", CanonicalName: "AAPL"}, Distance: 1, SupportingChunks: []string{"c1"}},
	}}

	r := NewRetriever(&stubEmbedder{}, stubSparseEncoder{}, vs, gs,
		&stubParaphraser{alts: []string{"What was Apple's revenue growth?"}},
		&stubReranker{scoreByChunk: map[string]float64{
			"Apple's revenue grew 8%.": 0.95,
			"Revenue by segment.":      0.6,
			"Unrelated text.":          0.1,
		}},
		stubCompressor{}, testConfig())

	out, err := r.Retrieve(context.Background(), "What is $AAPL's revenue?", RetrievalFilter{})
	require.NoError(t, err)
	require.Len(t, out, 2, "RerankTopN=2 caps the result")
	assert.Equal(t, "c1", out[0].ChunkID, "highest cross-encoder score should lead after rerank")
	assert.Contains(t, out[0].Text, "compressed:")
	assert.Equal(t, "AAPL-2023", out[0].Citation.DocumentID)
	assert.Equal(t, 5, out[0].Citation.Page)
}

func TestRetrieve_FailsOpenWhenVectorSearchErrors(t *testing.T) {
	vs := &stubVectorSearcher{err: errors.New("index unavailable")}
	gs := &stubGraphSearcher{}

	r := NewRetriever(&stubEmbedder{}, stubSparseEncoder{}, vs, gs,
		nil, nil, nil, testConfig())

	out, err := r.Retrieve(context.Background(), "anything", RetrievalFilter{})
	require.NoError(t, err, "a failing query variant degrades results, it doesn't error the call")
	assert.Empty(t, out)
}

func TestRetrieve_FailsOpenWhenEmbedderErrors(t *testing.T) {
	vs := &stubVectorSearcher{hits: []model.ScoredChunk{
		{ChunkID: "c1", Chunk: &model.Chunk{TextRaw: "text"}, Metadata: model.VectorMetadata{DocumentID: "D"}},
	}}
	gs := &stubGraphSearcher{}

	r := NewRetriever(&stubEmbedder{err: errors.New("embedding service down")}, stubSparseEncoder{}, vs, gs,
		nil, nil, nil, testConfig())

	out, err := r.Retrieve(context.Background(), "anything", RetrievalFilter{})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, vs.calls, "vector search should never be reached when embedding fails")
}

func TestRetrieve_NilParaphraserRerankerCompressorStillReturnsResults(t *testing.T) {
	vs := &stubVectorSearcher{hits: []model.ScoredChunk{
		{ChunkID: "c1", Score: 0.9, Chunk: &model.Chunk{TextRaw: "some text"}, Metadata: model.VectorMetadata{DocumentID: "D", StartPage: 1}},
	}}
	gs := &stubGraphSearcher{}

	r := NewRetriever(&stubEmbedder{}, stubSparseEncoder{}, vs, gs, nil, nil, nil, testConfig())

	out, err := r.Retrieve(context.Background(), "anything", RetrievalFilter{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "some text", out[0].Text, "no compressor means the raw chunk text passes through unchanged")
}

func TestRetrieve_ParaphraseFailureFallsBackToOriginalQuestionOnly(t *testing.T) {
	vs := &stubVectorSearcher{hits: []model.ScoredChunk{
		{ChunkID: "c1", Chunk: &model.Chunk{TextRaw: "text"}, Metadata: model.VectorMetadata{DocumentID: "D"}},
	}}
	gs := &stubGraphSearcher{}

	r := NewRetriever(&stubEmbedder{}, stubSparseEncoder{}, vs, gs,
		&stubParaphraser{err: errors.New("llm timeout")}, nil, nil, testConfig())

	out, err := r.Retrieve(context.Background(), "anything", RetrievalFilter{})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Equal(t, 1, vs.calls, "only the original question should be queried when paraphrasing fails")
}
