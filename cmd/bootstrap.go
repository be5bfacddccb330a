//go:build integration

package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-cli/internal/anthropic"
	"github.com/sells-group/research-cli/internal/cache"
	"github.com/sells-group/research-cli/internal/embedding"
	"github.com/sells-group/research-cli/internal/exttools"
	"github.com/sells-group/research-cli/internal/graphstore"
	"github.com/sells-group/research-cli/internal/orchestrator"
	"github.com/sells-group/research-cli/internal/ragtool"
	"github.com/sells-group/research-cli/internal/relstore"
	"github.com/sells-group/research-cli/internal/sqltool"
	"github.com/sells-group/research-cli/internal/store"
	"github.com/sells-group/research-cli/internal/vectorindex"
	"github.com/sells-group/research-cli/internal/verifier"
)

// conversationEnv holds every initialized client, store, and tool the
// conversation agent and its supporting CLIs need. Callers should defer
// env.Close().
type conversationEnv struct {
	Checkpoints store.Store
	Relational  relstore.Store
	Graph       graphstore.Store
	Vectors     *vectorindex.PostgresStore

	AnthropicClient anthropic.Client
	EmbedClient     embedding.Client

	Cache      *cache.ResponseCache
	InputGate  *verifier.InputGate
	OutputGate *verifier.OutputGate
	Registry   *orchestrator.Registry
	Activities *orchestrator.Activities
}

// Close releases every resource conversationEnv holds open.
func (e *conversationEnv) Close() {
	if e.Checkpoints != nil {
		_ = e.Checkpoints.Close()
	}
	if e.Relational != nil {
		_ = e.Relational.Close()
	}
	if e.Graph != nil {
		_ = e.Graph.Close()
	}
	if e.Vectors != nil {
		_ = e.Vectors.Close()
	}
}

// defaultSystemPrompt grounds the planner's tool-use loop: what it can
// call, and the caveat it must carry when a question falls outside the
// indexed corpus.
const defaultSystemPrompt = `You are a financial research assistant answering questions about companies' SEC 10-K filings.

Use sql_query for questions about specific financial figures (revenue, net income, segment/geographic breakdowns, risk factors) stored in the structured database. Use document_search for questions that need the filing's narrative text, MD&A language, or exact wording with a citation. Use web_search only for information that would not appear in a 10-K. Use market_quote only for a live stock price.

Always answer from tool results. If no tool result supports an answer, say so rather than guessing.`

// buildConversationEnv wires every dependency the conversation agent needs
// from cfg: relational/graph/vector/checkpoint stores, the Anthropic and
// embedding clients, the four planner tools, and the input/output safety
// gates.
func buildConversationEnv(ctx context.Context) (*conversationEnv, error) {
	checkpoints, err := initCheckpointStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkpoints.Migrate(ctx); err != nil {
		_ = checkpoints.Close()
		return nil, eris.Wrap(err, "migrate checkpoint store")
	}

	relational, err := relstore.NewPostgres(ctx, cfg.Relational.DatabaseURL)
	if err != nil {
		_ = checkpoints.Close()
		return nil, eris.Wrap(err, "connect relational store")
	}
	if err := relational.Migrate(ctx); err != nil {
		_ = checkpoints.Close()
		_ = relational.Close()
		return nil, eris.Wrap(err, "migrate relational store")
	}

	graph, err := graphstore.NewPostgres(ctx, cfg.Graph.DatabaseURL)
	if err != nil {
		_ = checkpoints.Close()
		_ = relational.Close()
		return nil, eris.Wrap(err, "connect graph store")
	}
	if err := graph.Migrate(ctx); err != nil {
		_ = checkpoints.Close()
		_ = relational.Close()
		_ = graph.Close()
		return nil, eris.Wrap(err, "migrate graph store")
	}

	vectors, err := vectorindex.NewPostgres(ctx, cfg.VectorIndex.DatabaseURL, cfg.VectorIndex.DenseDim)
	if err != nil {
		_ = checkpoints.Close()
		_ = relational.Close()
		_ = graph.Close()
		return nil, eris.Wrap(err, "connect vector index")
	}
	if err := vectors.Migrate(ctx); err != nil {
		_ = checkpoints.Close()
		_ = relational.Close()
		_ = graph.Close()
		_ = vectors.Close()
		return nil, eris.Wrap(err, "migrate vector index")
	}

	anthropicClient := anthropic.NewClient(cfg.Anthropic.Key)
	embedClient := embedding.NewClient(cfg.Embedding.BaseURL, cfg.Embedding.Key, cfg.Models.EmbedModelID, cfg.VectorIndex.DenseDim)
	vocab, err := loadVocabulary(vocabularyPath())
	if err != nil {
		_ = checkpoints.Close()
		_ = relational.Close()
		_ = graph.Close()
		_ = vectors.Close()
		return nil, eris.Wrap(err, "load sparse vocabulary")
	}
	sparseEncoder := embedding.NewEncoder(vocab)

	classifier := anthropic.NewClassifierAdapter(anthropicClient, cfg.Models.VerifierModelID)
	policy := verifier.Policy(cfg.Verifier.Policy)
	if policy == "" {
		policy = verifier.PolicyModerate
	}
	inputGate := verifier.NewInputGate(classifier, policy)
	outputGate := verifier.NewOutputGate(classifier, vectors, policy)

	cacheTTL := time.Duration(cfg.Cache.TTLDays) * 24 * time.Hour
	responseCache := cache.New(checkpoints, embedClient, cfg.Cache.SimilarityFloor, cacheTTL)

	// Reuses cfg.Relational.DatabaseURL: config exposes one connection string
	// per logical store, not a separate read-only credential. Operators
	// deploying this against a database with least-privilege roles should
	// point it at a role that only has SELECT on the financial-facts tables.
	executor, err := sqltool.NewPostgresExecutor(ctx, cfg.Relational.DatabaseURL, 30*time.Second)
	if err != nil {
		_ = checkpoints.Close()
		_ = relational.Close()
		_ = graph.Close()
		_ = vectors.Close()
		return nil, eris.Wrap(err, "connect sql tool executor")
	}
	planner := anthropic.NewSQLPlannerAdapter(anthropicClient, cfg.Models.PlannerModelID)
	answerer := sqltool.NewAnswerer(planner, executor)

	retriever := ragtool.NewRetriever(
		embedClient,
		sparseEncoder,
		vectors,
		graph,
		anthropic.NewParaphraserAdapter(anthropicClient, cfg.Models.RerankModelID),
		anthropic.NewRerankerAdapter(anthropicClient, cfg.Models.RerankModelID),
		anthropic.NewCompressorAdapter(anthropicClient, cfg.Models.RerankModelID),
		cfg.RAG,
	)

	registry := orchestrator.NewRegistry()
	registry.Register(orchestrator.NewSQLTool(answerer))
	registry.Register(orchestrator.NewRAGTool(retriever))
	registry.Register(orchestrator.NewWebSearchTool(exttools.NewWebSearchTool(cfg.WebSearch)))
	registry.Register(orchestrator.NewMarketDataTool(exttools.NewMarketDataTool(cfg.Market)))

	activities := &orchestrator.Activities{
		Planner:      anthropicClient,
		Model:        cfg.Models.PlannerModelID,
		MaxTokens:    4096,
		SystemPrompt: defaultSystemPrompt,
		Registry:     registry,
		Checkpoints:  checkpoints,
		Cache:        responseCache,
		InputGate:    inputGate,
		OutputGate:   outputGate,
	}

	zap.L().Info("conversation environment initialized",
		zap.String("planner_model", cfg.Models.PlannerModelID),
		zap.String("verifier_policy", string(policy)),
		zap.Int("tools", len(registry.Definitions())),
	)

	return &conversationEnv{
		Checkpoints:     checkpoints,
		Relational:      relational,
		Graph:           graph,
		Vectors:         vectors,
		AnthropicClient: anthropicClient,
		EmbedClient:     embedClient,
		Cache:           responseCache,
		InputGate:       inputGate,
		OutputGate:      outputGate,
		Registry:        registry,
		Activities:      activities,
	}, nil
}

// initCheckpointStore selects the Postgres or SQLite checkpoint/cache/DLQ
// backend per cfg.Checkpoint.Driver ("postgres" by default); the choice
// does not depend on cfg.Environment.
func initCheckpointStore(ctx context.Context) (store.Store, error) {
	switch cfg.Checkpoint.Driver {
	case "sqlite":
		dsn := cfg.Checkpoint.DatabaseURL
		if dsn == "" {
			dsn = "research.db"
		}
		return store.NewSQLite(dsn)
	case "postgres", "":
		return store.NewPostgres(ctx, cfg.Checkpoint.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported checkpoint driver: %s", cfg.Checkpoint.Driver)
	}
}

// vocabularyPath returns where index.go persists the BM25 vocabulary it
// builds over the indexed corpus. Queries and indexing share one file so
// term statistics stay consistent between the two.
func vocabularyPath() string {
	return filepath.Join(cfg.Extract.ExtractedDir, "vocabulary.json")
}

// loadVocabulary reads a persisted vocabulary, or returns an empty one if
// nothing has been indexed yet — the sparse encoder still runs, but every
// term is out of vocabulary, so it returns empty sparse vectors until
// index.go rebuilds the vocabulary.
func loadVocabulary(path string) (*embedding.Vocabulary, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return embedding.BuildVocabulary(nil), nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "read vocabulary")
	}
	return embedding.VocabularyFromJSON(b)
}
