// Package embedding implements a dense-vector embedding client over the
// deployment's embedding gateway, with a deterministic local mock used
// when no credential is configured.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Client embeds text into dense vectors, deterministic for a given input
// and model version.
type Client interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// BatchSize is the embed request chunk size.
const BatchSize = 25

// NewClient returns an HTTP-backed embedding client, or a deterministic
// mock embedder when apiKey is empty, so local development never needs
// live credentials.
func NewClient(baseURL, apiKey, modelID string, dimension int) Client {
	if apiKey == "" {
		zap.L().Warn("embedding: no API key configured, using deterministic mock embedder", zap.String("model_id", modelID))
		return &mockClient{dimension: dimension}
	}
	return &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		modelID: modelID,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type embedRequest struct {
	ModelID string   `json:"model_id"`
	Inputs  []string `json:"inputs"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type httpClient struct {
	baseURL string
	apiKey  string
	modelID string
	http    *http.Client
}

func (c *httpClient) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (c *httpClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	for start := 0; start < len(texts); start += BatchSize {
		end := start + BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := c.embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (c *httpClient) embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{ModelID: c.modelID, Inputs: texts})
	if err != nil {
		return nil, eris.Wrap(err, "embedding: marshal request")
	}

	respBody, statusCode, err := c.retryDo(ctx, body)
	if err != nil {
		return nil, eris.Wrap(err, "embedding: request failed")
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("embedding: unexpected status %d: %s", statusCode, string(respBody))
	}

	var result embedResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "embedding: unmarshal response")
	}
	if len(result.Embeddings) != len(texts) {
		return nil, eris.Errorf("embedding: expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}
	return result.Embeddings, nil
}

func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo retries on throttling/transient server errors with exponential
// backoff.
func (c *httpClient) retryDo(ctx context.Context, payload []byte) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(payload))
		if err != nil {
			return nil, 0, eris.Wrap(err, "embedding: create request")
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				if waitErr := sleepOrCancel(ctx, backoff); waitErr != nil {
					return nil, 0, waitErr
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "embedding: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("embedding: status %d: %s", resp.StatusCode, string(respBody))
			if waitErr := sleepOrCancel(ctx, backoff); waitErr != nil {
				return nil, 0, waitErr
			}
			backoff *= 2
			continue
		}

		return respBody, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

func sleepOrCancel(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// mockClient produces deterministic, model-free embeddings so local
// development and tests can exercise the chunk-embed-index path without
// real credentials.
type mockClient struct {
	dimension int
}

func (m *mockClient) EmbedOne(_ context.Context, text string) ([]float32, error) {
	return mockEmbed(text, m.dimension), nil
}

func (m *mockClient) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = mockEmbed(t, m.dimension)
	}
	return out, nil
}

// mockEmbed deterministically derives a unit vector from text via a simple
// hash-seeded PRNG — not a real embedding, but stable across runs for the
// same input, which is all the mock needs to guarantee.
func mockEmbed(text string, dimension int) []float32 {
	seed := fnv1a(text)
	vec := make([]float32, dimension)
	var sumSq float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float32(int32(seed>>32)) / float32(1<<31)
		vec[i] = v
		sumSq += float64(v) * float64(v)
	}
	norm := float32(1.0)
	if sumSq > 0 {
		norm = float32(1.0 / math.Sqrt(sumSq))
	}
	for i := range vec {
		vec[i] *= norm
	}
	return vec
}

func fnv1a(s string) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}

