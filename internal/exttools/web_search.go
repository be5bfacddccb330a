package exttools

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/research-cli/internal/config"
	"github.com/sells-group/research-cli/internal/resilience"
	"github.com/sells-group/research-cli/pkg/jina"
)

// searchBackend is the narrow surface WebSearchTool needs from a search
// provider; jina.Client satisfies it directly.
type searchBackend interface {
	Search(ctx context.Context, query string, opts ...jina.SearchOption) (*jina.SearchResponse, error)
}

// WebSearchTool answers a free-text query as a pure function, returning
// normalized records with source URLs, behind a circuit breaker, a retry
// policy, and a rate limiter.
type WebSearchTool struct {
	backend searchBackend
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	limiter *rate.Limiter
	mock    bool
}

// NewWebSearchTool builds a WebSearchTool backed by Jina AI Search. With no
// key configured it runs in mock mode so the agent stays runnable without
// external credentials.
func NewWebSearchTool(cfg config.WebSearchConfig) *WebSearchTool {
	if cfg.Key == "" {
		zap.L().Warn("exttools: no web search API key configured, running in mock mode")
		return &WebSearchTool{
			mock:    true,
			breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
			retry:   resilience.DefaultRetryConfig(),
		}
	}

	var opts []jina.Option
	if cfg.BaseURL != "" {
		opts = append(opts, jina.WithSearchBaseURL(cfg.BaseURL))
	}
	return &WebSearchTool{
		backend: jina.NewClient(cfg.Key, opts...),
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		retry:   resilience.DefaultRetryConfig(),
		limiter: rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultRequestsPerSecond),
	}
}

// Search runs one web search. Errors from the underlying API are wrapped by
// the circuit breaker (ErrCircuitOpen when tripped) and retried up to the
// configured attempt ceiling before surfacing.
func (t *WebSearchTool) Search(ctx context.Context, query string) ([]SearchResult, error) {
	if t.mock {
		return mockSearchResults(query), nil
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := resilience.ExecuteVal(ctx, t.breaker, func(ctx context.Context) (*jina.SearchResponse, error) {
		return resilience.DoVal(ctx, t.retry, func(ctx context.Context) (*jina.SearchResponse, error) {
			return t.backend.Search(ctx, query)
		})
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]SearchResult, 0, len(resp.Data))
	for _, r := range resp.Data {
		out = append(out, SearchResult{
			Title:       r.Title,
			URL:         r.URL,
			Snippet:     firstNonEmpty(r.Description, r.Content),
			RetrievedAt: now,
		})
	}
	return out, nil
}

func mockSearchResults(query string) []SearchResult {
	return []SearchResult{{
		Title:       "Mock result for: " + query,
		URL:         "https://example.invalid/mock-search-result",
		Snippet:     "Web search is not configured; this placeholder keeps the agent runnable without live credentials.",
		RetrievedAt: time.Now().UTC(),
	}}
}
