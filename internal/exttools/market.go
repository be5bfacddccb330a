package exttools

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/research-cli/internal/config"
	"github.com/sells-group/research-cli/internal/resilience"
)

// marketBackend is the narrow surface MarketDataTool needs from a quote
// provider; httpMarketClient satisfies it.
type marketBackend interface {
	Quote(ctx context.Context, symbol string) (*quoteResponse, error)
}

// MarketDataTool answers a ticker-quote lookup as a pure function, behind a
// circuit breaker, a retry policy, and a rate limiter.
type MarketDataTool struct {
	backend   marketBackend
	breaker   *resilience.CircuitBreaker
	retry     resilience.RetryConfig
	limiter   *rate.Limiter
	sourceURL string
	mock      bool
}

// NewMarketDataTool builds a MarketDataTool. With no key configured it runs
// in mock mode so the agent stays runnable without external credentials.
func NewMarketDataTool(cfg config.MarketConfig) *MarketDataTool {
	if cfg.Key == "" {
		zap.L().Warn("exttools: no market data API key configured, running in mock mode")
		return &MarketDataTool{
			mock:    true,
			breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
			retry:   resilience.DefaultRetryConfig(),
		}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultMarketBaseURL
	}
	return &MarketDataTool{
		backend:   newHTTPMarketClient(cfg.Key, cfg.BaseURL),
		breaker:   resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		retry:     resilience.DefaultRetryConfig(),
		limiter:   rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultRequestsPerSecond),
		sourceURL: baseURL,
	}
}

// Quote fetches the latest quote for one ticker symbol.
func (t *MarketDataTool) Quote(ctx context.Context, symbol string) (*MarketQuote, error) {
	if t.mock {
		return mockQuote(symbol), nil
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := resilience.ExecuteVal(ctx, t.breaker, func(ctx context.Context) (*quoteResponse, error) {
		return resilience.DoVal(ctx, t.retry, func(ctx context.Context) (*quoteResponse, error) {
			return t.backend.Quote(ctx, symbol)
		})
	})
	if err != nil {
		return nil, err
	}

	asOf, parseErr := time.Parse(time.RFC3339, resp.AsOf)
	if parseErr != nil {
		asOf = time.Now().UTC()
	}
	return &MarketQuote{
		Symbol:        resp.Symbol,
		Price:         resp.Price,
		Change:        resp.Change,
		ChangePercent: resp.ChangePercent,
		Volume:        resp.Volume,
		AsOf:          asOf,
		SourceURL:     t.sourceURL,
	}, nil
}

func mockQuote(symbol string) *MarketQuote {
	return &MarketQuote{
		Symbol:    symbol,
		AsOf:      time.Now().UTC(),
		SourceURL: "mock://market-data-unconfigured",
	}
}
