package exttools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/research-cli/internal/resilience"
)

const defaultMarketBaseURL = "https://api.example-market-data.invalid/v1"

// quoteResponse is the wire shape of a GET /quote response.
type quoteResponse struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume"`
	AsOf          string  `json:"as_of"`
}

// httpMarketClient is a minimal REST client for a quote endpoint, built the
// same way as this module's other external API client (pkg/jina): a
// pooled http.Client, JSON decode, eris-wrapped
// errors, transient statuses marked so the caller's retry policy picks
// them up.
type httpMarketClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func newHTTPMarketClient(apiKey, baseURL string) *httpMarketClient {
	if baseURL == "" {
		baseURL = defaultMarketBaseURL
	}
	return &httpMarketClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *httpMarketClient) Quote(ctx context.Context, symbol string) (*quoteResponse, error) {
	reqURL := fmt.Sprintf("%s/quote?symbol=%s", c.baseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "exttools: create market quote request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "exttools: send market quote request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "exttools: read market quote response")
	}

	if resp.StatusCode != http.StatusOK {
		wrapped := eris.Errorf("exttools: market quote status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(wrapped, resp.StatusCode)
		}
		return nil, wrapped
	}

	var q quoteResponse
	if err := json.Unmarshal(body, &q); err != nil {
		return nil, eris.Wrap(err, "exttools: unmarshal market quote response")
	}
	return &q, nil
}
