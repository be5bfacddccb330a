package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/research-cli/internal/anthropic"
	"github.com/sells-group/research-cli/internal/exttools"
	"github.com/sells-group/research-cli/internal/model"
	"github.com/sells-group/research-cli/internal/ragtool"
	"github.com/sells-group/research-cli/internal/sqltool"
)

// Registry holds the planner's callable tool set, keyed by name.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t to the registry, keyed by t.Name().
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns the tool registered under name, or false if none is.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns every registered tool's schema, in registration
// order, for inclusion in a planner request.
func (r *Registry) Definitions() []anthropic.ToolDefinition {
	out := make([]anthropic.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, anthropic.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return out
}

// sqlTool adapts sqltool.Answerer to Tool.
type sqlTool struct {
	answerer *sqltool.Answerer
}

// NewSQLTool wraps answerer as a planner-callable tool over the companies'
// structured financial data.
func NewSQLTool(answerer *sqltool.Answerer) Tool {
	return &sqlTool{answerer: answerer}
}

func (t *sqlTool) Name() string        { return "sql_query" }
func (t *sqlTool) Description() string { return "Answer a question against structured financial data (companies, metrics, segments, geography, risk factors) using a read-only SQL query." }
func (t *sqlTool) InputSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"question": map[string]any{"type": "string"}},
		"required":   []string{"question"},
	}
}

type sqlToolInput struct {
	Question string `json:"question"`
}

func (t *sqlTool) Call(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in sqlToolInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, eris.Wrap(err, "sql_query: decode input")
	}
	result, err := t.answerer.Answer(ctx, in.Question)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

// ragTool adapts ragtool.Retriever to Tool.
type ragTool struct {
	retriever *ragtool.Retriever
}

// NewRAGTool wraps retriever as a planner-callable tool over the indexed
// filing and reference-document corpus.
func NewRAGTool(retriever *ragtool.Retriever) Tool {
	return &ragTool{retriever: retriever}
}

func (t *ragTool) Name() string        { return "document_search" }
func (t *ragTool) Description() string { return "Retrieve cited passages from indexed SEC filings and reference documents relevant to a question." }
func (t *ragTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question":    map[string]any{"type": "string"},
			"ticker":      map[string]any{"type": "string"},
			"fiscal_year": map[string]any{"type": "integer"},
		},
		"required": []string{"question"},
	}
}

type ragToolInput struct {
	Question   string `json:"question"`
	Ticker     string `json:"ticker,omitempty"`
	FiscalYear int    `json:"fiscal_year,omitempty"`
}

type ragToolOutput struct {
	Passages []ragtool.RankedPassage `json:"passages"`
}

func (t *ragTool) Call(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in ragToolInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, eris.Wrap(err, "document_search: decode input")
	}
	passages, err := t.retriever.Retrieve(ctx, in.Question, model.VectorFilter{Ticker: in.Ticker, FiscalYear: in.FiscalYear})
	if err != nil {
		return nil, err
	}
	return json.Marshal(ragToolOutput{Passages: passages})
}

// webSearchTool adapts exttools.WebSearchTool to Tool.
type webSearchTool struct {
	inner *exttools.WebSearchTool
}

// NewWebSearchTool wraps inner as a planner-callable tool over live web search.
func NewWebSearchTool(inner *exttools.WebSearchTool) Tool {
	return &webSearchTool{inner: inner}
}

func (t *webSearchTool) Name() string        { return "web_search" }
func (t *webSearchTool) Description() string { return "Search the live web for recent news or context not present in the indexed filings." }
func (t *webSearchTool) InputSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"query": map[string]any{"type": "string"}},
		"required":   []string{"query"},
	}
}

type webSearchInput struct {
	Query string `json:"query"`
}

type webSearchOutput struct {
	Results []exttools.SearchResult `json:"results"`
}

func (t *webSearchTool) Call(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in webSearchInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, eris.Wrap(err, "web_search: decode input")
	}
	results, err := t.inner.Search(ctx, in.Query)
	if err != nil {
		return nil, err
	}
	return json.Marshal(webSearchOutput{Results: results})
}

// marketDataTool adapts exttools.MarketDataTool to Tool.
type marketDataTool struct {
	inner *exttools.MarketDataTool
}

// NewMarketDataTool wraps inner as a planner-callable tool over live market quotes.
func NewMarketDataTool(inner *exttools.MarketDataTool) Tool {
	return &marketDataTool{inner: inner}
}

func (t *marketDataTool) Name() string        { return "market_quote" }
func (t *marketDataTool) Description() string { return "Fetch a live market quote for a ticker symbol." }
func (t *marketDataTool) InputSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"symbol": map[string]any{"type": "string"}},
		"required":   []string{"symbol"},
	}
}

type marketDataInput struct {
	Symbol string `json:"symbol"`
}

func (t *marketDataTool) Call(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in marketDataInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, eris.Wrap(err, "market_quote: decode input")
	}
	quote, err := t.inner.Quote(ctx, in.Symbol)
	if err != nil {
		return nil, err
	}
	return json.Marshal(quote)
}
