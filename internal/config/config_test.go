package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func withTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	withTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvironmentLocal, cfg.Environment)
	assert.Equal(t, "postgres", cfg.Relational.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 1024, cfg.VectorIndex.DenseDim)
	assert.Equal(t, 5, int(cfg.Relational.MaxConns))
	assert.Equal(t, 10, int(cfg.Relational.OverflowConns))
	assert.Equal(t, 7, cfg.Cache.TTLDays)
	assert.InDelta(t, 0.95, cfg.Cache.SimilarityFloor, 0.001)
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.Equal(t, 60, cfg.RAG.RRFK)
	assert.InDelta(t, 1.0, cfg.RAG.KGBoost, 0.001)
	assert.Equal(t, 5, cfg.RAG.RerankTopN)
	assert.Equal(t, "moderate", cfg.Verifier.Policy)
	assert.Equal(t, 512, cfg.Chunker.MaxTokens)
	assert.Equal(t, 50, cfg.Chunker.Overlap)
	assert.Equal(t, 5, cfg.Circuit.FailureThreshold)
	assert.Equal(t, 60, cfg.Circuit.ResetTimeoutSecs)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 120, cfg.Turn.TurnBudgetSecs)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Models.PlannerModelID)
}

func TestLoadFromYAML(t *testing.T) {
	dir := withTempDir(t)

	yaml := `
environment: cloud
relational:
  driver: postgres
  database_url: postgres://localhost/research
log:
  level: debug
  format: console
server:
  port: 9090
rag:
  top_k: 8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvironmentCloud, cfg.Environment)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8, cfg.RAG.TopK)
	// Defaults still apply for unset values.
	assert.Equal(t, 60, cfg.RAG.RRFK)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := withTempDir(t)

	yaml := `
relational:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("RESEARCH_RELATIONAL_DRIVER", "postgres")
	t.Setenv("RESEARCH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Relational.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	withTempDir(t)

	t.Setenv("RESEARCH_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(EnvironmentLocal, LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(EnvironmentCloud, LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(EnvironmentCloud, LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func validDefaults() *Config {
	cfg := &Config{}
	cfg.Environment = EnvironmentCloud
	cfg.Relational.DatabaseURL = "postgres://localhost/research"
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Verifier.Policy = "moderate"
	cfg.VectorIndex.DenseDim = 1024
	cfg.RAG.RRFK = 60
	cfg.RAG.KGBoost = 1.0
	cfg.Chunker.MaxTokens = 512
	return cfg
}

func TestValidate_AllPresent(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Relational.DatabaseURL = ""
	cfg.Anthropic.Key = ""

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "relational.database_url is required")
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestValidate_BadVerifierPolicy(t *testing.T) {
	cfg := validDefaults()
	cfg.Verifier.Policy = "lax"

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "verifier.policy")
}

func TestValidate_BadKGBoost(t *testing.T) {
	cfg := validDefaults()
	cfg.RAG.KGBoost = 0.5

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "kg_boost")
}

func TestValidate_LocalEnvironmentNoAnthropicKeyRequired(t *testing.T) {
	cfg := validDefaults()
	cfg.Environment = EnvironmentLocal
	cfg.Anthropic.Key = ""

	assert.NoError(t, cfg.Validate())
}
