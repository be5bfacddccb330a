package exttools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/research-cli/internal/config"
	"github.com/sells-group/research-cli/internal/resilience"
	"github.com/sells-group/research-cli/pkg/jina"
)

type stubSearchBackend struct {
	resp *jina.SearchResponse
	err  error
}

func (s *stubSearchBackend) Search(_ context.Context, _ string, _ ...jina.SearchOption) (*jina.SearchResponse, error) {
	return s.resp, s.err
}

func newTestWebSearchTool(backend searchBackend) *WebSearchTool {
	return &WebSearchTool{
		backend: backend,
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		retry:   resilience.RetryConfig{MaxAttempts: 1},
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
}

func TestNewWebSearchTool_NoKeyRunsInMockMode(t *testing.T) {
	tool := NewWebSearchTool(config.WebSearchConfig{})
	results, err := tool.Search(context.Background(), "Apple revenue 2023")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Title, "Apple revenue 2023")
}

func TestWebSearchTool_NormalizesResults(t *testing.T) {
	tool := newTestWebSearchTool(&stubSearchBackend{resp: &jina.SearchResponse{
		Data: []jina.SearchResult{
			{Title: "10-K filing", URL: "https://sec.gov/x", Description: "annual report summary"},
			{Title: "No description", URL: "https://sec.gov/y", Content: "fallback content"},
		},
	}})
	results, err := tool.Search(context.Background(), "query")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "annual report summary", results[0].Snippet)
	assert.Equal(t, "fallback content", results[1].Snippet, "falls back to content when description is empty")
	assert.False(t, results[0].RetrievedAt.IsZero())
}

func TestWebSearchTool_PropagatesBackendError(t *testing.T) {
	tool := newTestWebSearchTool(&stubSearchBackend{err: errors.New("jina: search unexpected status 500")})
	_, err := tool.Search(context.Background(), "query")
	require.Error(t, err)
}
