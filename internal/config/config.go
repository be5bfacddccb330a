// Package config loads and validates the application configuration for the
// research agent backend from a YAML file and environment overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Environment selects the secret source and logging encoder.
type Environment string

const (
	EnvironmentLocal Environment = "local"
	EnvironmentCloud Environment = "cloud"
)

// Config holds the full application configuration. Components receive only
// the sub-struct they need; nothing reaches for this type by name.
type Config struct {
	Environment Environment      `yaml:"environment" mapstructure:"environment"`
	Log         LogConfig        `yaml:"log" mapstructure:"log"`
	Server      ServerConfig     `yaml:"server" mapstructure:"server"`
	AllowedOrigins []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`

	Relational  StoreConfig    `yaml:"relational" mapstructure:"relational"`
	Checkpoint  StoreConfig    `yaml:"checkpoint" mapstructure:"checkpoint"`
	Graph       StoreConfig    `yaml:"graph" mapstructure:"graph"`
	VectorIndex VectorIndexConfig `yaml:"vector_index" mapstructure:"vector_index"`
	Cache       CacheConfig    `yaml:"cache" mapstructure:"cache"`

	Models   ModelsConfig   `yaml:"models" mapstructure:"models"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Pricing  PricingConfig  `yaml:"pricing" mapstructure:"pricing"`

	RAG      RAGConfig      `yaml:"rag" mapstructure:"rag"`
	Verifier VerifierConfig `yaml:"verifier" mapstructure:"verifier"`
	Chunker  ChunkerConfig  `yaml:"chunker" mapstructure:"chunker"`

	Circuit CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
	Retry   RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Turn    TurnConfig    `yaml:"turn" mapstructure:"turn"`

	Temporal  TemporalConfig  `yaml:"temporal" mapstructure:"temporal"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	WebSearch WebSearchConfig `yaml:"web_search" mapstructure:"web_search"`
	Market    MarketConfig    `yaml:"market" mapstructure:"market"`
	Cron      CronConfig      `yaml:"cron" mapstructure:"cron"`
}

// StoreConfig configures a Postgres/sqlite-backed connection pool.
// Driver "postgres" backs cloud deployments; "sqlite" backs local dev.
// The driver is chosen by this field alone, not by the Environment.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	OverflowConns int32 `yaml:"overflow_conns" mapstructure:"overflow_conns"`
}

// VectorIndexConfig configures the pgvector-backed Vector Index.
type VectorIndexConfig struct {
	StoreConfig `yaml:",inline" mapstructure:",squash"`
	DenseDim    int `yaml:"dense_dim" mapstructure:"dense_dim"`
}

// CacheConfig configures the Response Cache.
type CacheConfig struct {
	StoreConfig     `yaml:",inline" mapstructure:",squash"`
	TTLDays         int     `yaml:"ttl_days" mapstructure:"ttl_days"`
	SimilarityFloor float64 `yaml:"similarity_floor" mapstructure:"similarity_floor"`
}

// ModelsConfig selects the model ID per role, each with a fallback chain.
type ModelsConfig struct {
	PlannerModelID  string   `yaml:"planner_model_id" mapstructure:"planner_model_id"`
	VerifierModelID string   `yaml:"verifier_model_id" mapstructure:"verifier_model_id"`
	EmbedModelID    string   `yaml:"embed_model_id" mapstructure:"embed_model_id"`
	VLMModelID      string   `yaml:"vlm_model_id" mapstructure:"vlm_model_id"`
	RerankModelID   string   `yaml:"rerank_model_id" mapstructure:"rerank_model_id"`
	FallbackChain   []string `yaml:"fallback_chain" mapstructure:"fallback_chain"`
}

// AnthropicConfig holds Anthropic API credentials and batch tuning.
type AnthropicConfig struct {
	Key                 string `yaml:"key" mapstructure:"key"`
	MaxBatchSize        int    `yaml:"max_batch_size" mapstructure:"max_batch_size"`
	NoBatch             bool   `yaml:"no_batch" mapstructure:"no_batch"`
	SmallBatchThreshold int    `yaml:"small_batch_threshold" mapstructure:"small_batch_threshold"`
	PromptCacheTTL      string `yaml:"prompt_cache_ttl" mapstructure:"prompt_cache_ttl"`
}

// EmbeddingConfig points the embedding client at the deployment's dense
// embedding gateway. Dimension and model family are deployment constants;
// BatchSize is loaded but not read by the embedding client, which always
// sends at most embedding.BatchSize (25) texts per embed request.
type EmbeddingConfig struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Key       string `yaml:"key" mapstructure:"key"`
	BatchSize int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// PricingConfig holds per-model token pricing (USD per million tokens), used
// for cost attribution logging.
type PricingConfig struct {
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
}

// ModelPricing holds per-million-token pricing for one model.
type ModelPricing struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	BatchDiscount float64 `yaml:"batch_discount" mapstructure:"batch_discount"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// RAGConfig holds the retrieval pipeline's numeric tunables.
type RAGConfig struct {
	TopK        int     `yaml:"top_k" mapstructure:"top_k"`
	FanoutTopK  int     `yaml:"fanout_top_k" mapstructure:"fanout_top_k"`
	RRFK        int     `yaml:"rrf_k" mapstructure:"rrf_k"`
	KGBoost     float64 `yaml:"kg_boost" mapstructure:"kg_boost"`
	RerankTopN  int     `yaml:"rerank_top_n" mapstructure:"rerank_top_n"`
	MaxHops     int     `yaml:"max_hops" mapstructure:"max_hops"`
	Paraphrases int     `yaml:"paraphrases" mapstructure:"paraphrases"`
}

// VerifierConfig selects the input/output gate policy.
type VerifierConfig struct {
	Policy string `yaml:"policy" mapstructure:"policy"` // strict | moderate | permissive
}

// ChunkerConfig holds the sentence chunker's tunables.
type ChunkerConfig struct {
	MaxTokens int `yaml:"max_tokens" mapstructure:"max_tokens"`
	Overlap   int `yaml:"overlap" mapstructure:"overlap"`
}

// CircuitConfig configures per-tool circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// RetryConfig configures exponential-backoff retry.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// TurnConfig holds the orchestrator's per-call and per-turn timeout budget.
type TurnConfig struct {
	LLMTimeoutSecs   int `yaml:"llm_timeout_secs" mapstructure:"llm_timeout_secs"`
	ToolTimeoutSecs  int `yaml:"tool_timeout_secs" mapstructure:"tool_timeout_secs"`
	RSTimeoutSecs    int `yaml:"rs_timeout_secs" mapstructure:"rs_timeout_secs"`
	ExtToolTimeoutSecs int `yaml:"ext_tool_timeout_secs" mapstructure:"ext_tool_timeout_secs"`
	TurnBudgetSecs   int `yaml:"turn_budget_secs" mapstructure:"turn_budget_secs"`
}

// TemporalConfig points at the Temporal cluster hosting the conversation
// orchestration workflow.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// ExtractConfig configures the offline document extraction and indexing
// pipeline.
type ExtractConfig struct {
	RawDir       string `yaml:"raw_dir" mapstructure:"raw_dir"`
	ExtractedDir string `yaml:"extracted_dir" mapstructure:"extracted_dir"`
	ManifestName string `yaml:"manifest_name" mapstructure:"manifest_name"`
	RenderDPI    int    `yaml:"render_dpi" mapstructure:"render_dpi"`
	MaxRetries   int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// WebSearchConfig configures the web search tool.
type WebSearchConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// MarketConfig configures the market data tool.
type MarketConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CronConfig schedules periodic maintenance (cache TTL sweep, index staleness scan).
type CronConfig struct {
	CacheSweepSpec string `yaml:"cache_sweep_spec" mapstructure:"cache_sweep_spec"`
	IndexScanSpec  string `yaml:"index_scan_spec" mapstructure:"index_scan_spec"`
}

// ServerConfig holds the values an externally implemented transport's
// health endpoint would report. No HTTP server lives in this module.
type ServerConfig struct {
	Version    string `yaml:"version" mapstructure:"version"`
	APIVersion string `yaml:"api_version" mapstructure:"api_version"`
	Port       int    `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks required configuration fields.
func (c *Config) Validate() error {
	var errs []string

	switch c.Environment {
	case EnvironmentLocal, EnvironmentCloud, "":
	default:
		errs = append(errs, fmt.Sprintf("environment must be 'local' or 'cloud', got %q", c.Environment))
	}

	if c.Relational.DatabaseURL == "" {
		errs = append(errs, "relational.database_url is required")
	}
	if c.Anthropic.Key == "" && c.Environment == EnvironmentCloud {
		errs = append(errs, "anthropic.key is required in cloud environment")
	}
	switch c.Verifier.Policy {
	case "strict", "moderate", "permissive", "":
	default:
		errs = append(errs, fmt.Sprintf("verifier.policy must be strict|moderate|permissive, got %q", c.Verifier.Policy))
	}
	if c.VectorIndex.DenseDim <= 0 {
		errs = append(errs, "vector_index.dense_dim must be > 0")
	}
	if c.RAG.RRFK <= 0 {
		errs = append(errs, "rag.rrf_k must be > 0")
	}
	if c.RAG.KGBoost < 1.0 {
		errs = append(errs, "rag.kg_boost must be >= 1.0")
	}
	if c.Chunker.MaxTokens <= 0 {
		errs = append(errs, "chunker.max_tokens must be > 0")
	}

	if len(errs) > 0 {
		return eris.New(fmt.Sprintf("config: validation failed: %s", strings.Join(errs, "; ")))
	}
	return nil
}

// Load reads configuration from a YAML file ("config.yaml" in the working
// directory) plus RESEARCH_-prefixed environment overrides.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "local")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.version", "0.1.0")
	v.SetDefault("server.api_version", "2026-01-01")
	v.SetDefault("allowed_origins", []string{})

	v.SetDefault("relational.driver", "postgres")
	v.SetDefault("relational.max_conns", 5)
	v.SetDefault("relational.overflow_conns", 10)
	v.SetDefault("checkpoint.driver", "postgres")
	v.SetDefault("checkpoint.max_conns", 5)
	v.SetDefault("checkpoint.overflow_conns", 5)
	v.SetDefault("graph.driver", "postgres")
	v.SetDefault("graph.max_conns", 5)
	v.SetDefault("graph.overflow_conns", 5)
	v.SetDefault("vector_index.driver", "postgres")
	v.SetDefault("vector_index.max_conns", 5)
	v.SetDefault("vector_index.overflow_conns", 5)
	v.SetDefault("vector_index.dense_dim", 1024) // Titan v2 family
	v.SetDefault("cache.driver", "postgres")
	v.SetDefault("cache.max_conns", 3)
	v.SetDefault("cache.overflow_conns", 2)
	v.SetDefault("cache.ttl_days", 7)
	v.SetDefault("cache.similarity_floor", 0.95)

	v.SetDefault("models.planner_model_id", "claude-sonnet-4-5-20250929")
	v.SetDefault("models.verifier_model_id", "claude-haiku-4-5-20251001")
	v.SetDefault("models.embed_model_id", "amazon.titan-embed-text-v2:0")
	v.SetDefault("models.vlm_model_id", "claude-sonnet-4-5-20250929")
	v.SetDefault("models.rerank_model_id", "claude-haiku-4-5-20251001")
	v.SetDefault("models.fallback_chain", []string{"claude-sonnet-4-5-20250929", "claude-haiku-4-5-20251001"})

	v.SetDefault("anthropic.max_batch_size", 100)
	v.SetDefault("anthropic.small_batch_threshold", 3)
	v.SetDefault("anthropic.prompt_cache_ttl", "5m")

	v.SetDefault("embedding.base_url", "https://bedrock-runtime.us-east-1.amazonaws.com")
	v.SetDefault("embedding.batch_size", 25)

	v.SetDefault("rag.top_k", 5)
	v.SetDefault("rag.fanout_top_k", 15)
	v.SetDefault("rag.rrf_k", 60)
	v.SetDefault("rag.kg_boost", 1.0)
	v.SetDefault("rag.rerank_top_n", 5)
	v.SetDefault("rag.max_hops", 2)
	v.SetDefault("rag.paraphrases", 3)

	v.SetDefault("verifier.policy", "moderate")

	v.SetDefault("chunker.max_tokens", 512)
	v.SetDefault("chunker.overlap", 50)

	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 60)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 8000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.2)

	v.SetDefault("turn.llm_timeout_secs", 60)
	v.SetDefault("turn.tool_timeout_secs", 10)
	v.SetDefault("turn.rs_timeout_secs", 30)
	v.SetDefault("turn.ext_tool_timeout_secs", 15)
	v.SetDefault("turn.turn_budget_secs", 120)

	v.SetDefault("temporal.host_port", "127.0.0.1:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "research-agent")

	v.SetDefault("extract.raw_dir", "documents/raw")
	v.SetDefault("extract.extracted_dir", "documents/extracted")
	v.SetDefault("extract.manifest_name", "manifest.json")
	v.SetDefault("extract.render_dpi", 150)
	v.SetDefault("extract.max_retries", 3)

	v.SetDefault("web_search.base_url", "https://api.perplexity.ai")
	v.SetDefault("market.base_url", "https://api.iex.cloud")

	v.SetDefault("cron.cache_sweep_spec", "@every 1h")
	v.SetDefault("cron.index_scan_spec", "@every 24h")
}

// InitLogger initializes the global zap logger. Local, or any environment
// with Format "console", uses a human-readable console encoder; otherwise
// (cloud) it uses JSON.
func InitLogger(env Environment, cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" || env == EnvironmentLocal {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
