package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa-retriever/internal/infra/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 512, cfg.ChunkSize)
	assert.Equal(t, 150, cfg.ChunkOverlap)
	assert.Equal(t, 5000, cfg.SmallDocTokenThreshold)
	assert.InDelta(t, 0.7, cfg.SemanticWeight, 1e-9)
	assert.InDelta(t, 0.3, cfg.KeywordWeight, 1e-9)
	assert.Equal(t, 20, cfg.RerankTopN)
	assert.Equal(t, 10, cfg.RerankTopK)
	assert.Equal(t, 20, cfg.MaxConcurrentQuestions)
	assert.Equal(t, int64(10<<30), cfg.CacheMaxBytes)
	assert.Equal(t, 32, cfg.EmbedBatch)
	assert.Equal(t, "memory", cfg.IndexBackend)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "256")
	t.Setenv("SEMANTIC_WEIGHT", "0.5")
	t.Setenv("KEYWORD_WEIGHT", "0.5")
	t.Setenv("CACHE_MAX_BYTES", "1048576")
	t.Setenv("EMBEDDING_MODEL", "custom-embed")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 256, cfg.ChunkSize)
	assert.InDelta(t, 0.5, cfg.SemanticWeight, 1e-9)
	assert.InDelta(t, 0.5, cfg.KeywordWeight, 1e-9)
	assert.Equal(t, int64(1048576), cfg.CacheMaxBytes)
	assert.Equal(t, "custom-embed", cfg.EmbeddingModel)
}

func TestLoad_TomlFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retriever.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
chunk_size = 300
chunk_overlap = 100
rerank_top_k = 5
embedding_model = "toml-embed"
`), 0o644))
	t.Setenv("RETRIEVER_CONFIG_FILE", path)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 300, cfg.ChunkSize)
	assert.Equal(t, 100, cfg.ChunkOverlap)
	assert.Equal(t, 5, cfg.RerankTopK)
	assert.Equal(t, "toml-embed", cfg.EmbeddingModel)
	// Untouched keys keep their defaults.
	assert.Equal(t, 5000, cfg.SmallDocTokenThreshold)
}

func TestLoad_EnvWinsOverToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retriever.toml")
	require.NoError(t, os.WriteFile(path, []byte("chunk_size = 300\n"), 0o644))
	t.Setenv("RETRIEVER_CONFIG_FILE", path)
	t.Setenv("CHUNK_SIZE", "400")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 400, cfg.ChunkSize)
}

func TestLoad_SecretFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db_url")
	require.NoError(t, os.WriteFile(path, []byte("postgres://u:p@localhost/db\n"), 0o600))
	t.Setenv("DATABASE_URL_FILE", path)
	t.Setenv("INDEX_BACKEND", "pgvector")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost/db", cfg.DatabaseURL)
}

func TestLoad_ValidationErrors(t *testing.T) {
	t.Run("overlap not below chunk size", func(t *testing.T) {
		t.Setenv("CHUNK_SIZE", "100")
		t.Setenv("CHUNK_OVERLAP", "100")
		_, err := config.Load()
		assert.Error(t, err)
	})

	t.Run("negative weight", func(t *testing.T) {
		t.Setenv("SEMANTIC_WEIGHT", "-0.5")
		_, err := config.Load()
		assert.Error(t, err)
	})

	t.Run("zero rerank top n", func(t *testing.T) {
		t.Setenv("RERANK_TOP_N", "0")
		_, err := config.Load()
		assert.Error(t, err)
	})

	t.Run("negative rerank top k", func(t *testing.T) {
		t.Setenv("RERANK_TOP_K", "-1")
		_, err := config.Load()
		assert.Error(t, err)
	})

	t.Run("unknown index backend", func(t *testing.T) {
		t.Setenv("INDEX_BACKEND", "faiss")
		_, err := config.Load()
		assert.Error(t, err)
	})

	t.Run("pgvector without database url", func(t *testing.T) {
		t.Setenv("INDEX_BACKEND", "pgvector")
		_, err := config.Load()
		assert.Error(t, err)
	})

	t.Run("missing config file", func(t *testing.T) {
		t.Setenv("RETRIEVER_CONFIG_FILE", filepath.Join(t.TempDir(), "nope.toml"))
		_, err := config.Load()
		assert.Error(t, err)
	})
}
