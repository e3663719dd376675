package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config aggregates all process configuration. Values come from
// defaults, then an optional TOML file (RETRIEVER_CONFIG_FILE), then
// environment variables, later sources winning.
type Config struct {
	Env string `toml:"env"`

	// Chunking
	ChunkSize    int `toml:"chunk_size"`
	ChunkOverlap int `toml:"chunk_overlap"`

	// Strategy
	SmallDocTokenThreshold int `toml:"small_doc_token_threshold"`

	// Fusion
	SemanticWeight float64 `toml:"semantic_weight"`
	KeywordWeight  float64 `toml:"keyword_weight"`

	// Reranking
	RerankTopN           int `toml:"rerank_top_n"`
	RerankTopK           int `toml:"rerank_top_k"`
	RerankTimeoutSeconds int `toml:"rerank_timeout_seconds"`

	// Batch orchestration
	MaxConcurrentQuestions int `toml:"max_concurrent_questions"`
	BatchTimeoutSeconds    int `toml:"batch_timeout_seconds"`
	ModelConcurrency       int `toml:"model_concurrency"`
	VisionConcurrency      int `toml:"vision_concurrency"`

	// Embedding cache
	CacheDir      string `toml:"cache_dir"`
	CacheTTLHours int    `toml:"cache_ttl_hours"`
	CacheMaxBytes int64  `toml:"cache_max_bytes"`
	EmbedBatch    int    `toml:"embed_batch"`

	// Capabilities
	EmbedderURL    string `toml:"embedder_url"`
	EmbeddingModel string `toml:"embedding_model"`
	RerankerURL    string `toml:"reranker_url"`
	RerankerModel  string `toml:"reranker_model"`
	GeneratorURL   string `toml:"generator_url"`
	GeneratorModel string `toml:"generator_model"`
	GeneratorKey   string `toml:"-"` // secret, env only

	// Dense index backend: "memory" or "pgvector"
	IndexBackend string `toml:"index_backend"`
	DatabaseURL  string `toml:"-"` // secret, env only
}

// Load builds the configuration from defaults, the optional TOML file
// and the environment.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("RETRIEVER_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.Env = getEnv("ENV", cfg.Env)
	cfg.ChunkSize = getEnvInt("CHUNK_SIZE", cfg.ChunkSize)
	cfg.ChunkOverlap = getEnvInt("CHUNK_OVERLAP", cfg.ChunkOverlap)
	cfg.SmallDocTokenThreshold = getEnvInt("SMALL_DOC_TOKEN_THRESHOLD", cfg.SmallDocTokenThreshold)
	cfg.SemanticWeight = getEnvFloat("SEMANTIC_WEIGHT", cfg.SemanticWeight)
	cfg.KeywordWeight = getEnvFloat("KEYWORD_WEIGHT", cfg.KeywordWeight)
	cfg.RerankTopN = getEnvInt("RERANK_TOP_N", cfg.RerankTopN)
	cfg.RerankTopK = getEnvInt("RERANK_TOP_K", cfg.RerankTopK)
	cfg.RerankTimeoutSeconds = getEnvInt("RERANK_TIMEOUT_SECONDS", cfg.RerankTimeoutSeconds)
	cfg.MaxConcurrentQuestions = getEnvInt("MAX_CONCURRENT_QUESTIONS", cfg.MaxConcurrentQuestions)
	cfg.BatchTimeoutSeconds = getEnvInt("BATCH_TIMEOUT_SECONDS", cfg.BatchTimeoutSeconds)
	cfg.ModelConcurrency = getEnvInt("MODEL_CONCURRENCY", cfg.ModelConcurrency)
	cfg.VisionConcurrency = getEnvInt("VISION_CONCURRENCY", cfg.VisionConcurrency)
	cfg.CacheDir = getEnv("CACHE_DIR", cfg.CacheDir)
	cfg.CacheTTLHours = getEnvInt("CACHE_TTL_HOURS", cfg.CacheTTLHours)
	cfg.CacheMaxBytes = getEnvInt64("CACHE_MAX_BYTES", cfg.CacheMaxBytes)
	cfg.EmbedBatch = getEnvInt("EMBED_BATCH", cfg.EmbedBatch)
	cfg.EmbedderURL = getEnv("EMBEDDER_URL", cfg.EmbedderURL)
	cfg.EmbeddingModel = getEnv("EMBEDDING_MODEL", cfg.EmbeddingModel)
	cfg.RerankerURL = getEnv("RERANKER_URL", cfg.RerankerURL)
	cfg.RerankerModel = getEnv("RERANKER_MODEL", cfg.RerankerModel)
	cfg.GeneratorURL = getEnv("GENERATOR_URL", cfg.GeneratorURL)
	cfg.GeneratorModel = getEnv("GENERATOR_MODEL", cfg.GeneratorModel)
	cfg.GeneratorKey = getSecret("GENERATOR_API_KEY", "GENERATOR_API_KEY_FILE", cfg.GeneratorKey)
	cfg.IndexBackend = getEnv("INDEX_BACKEND", cfg.IndexBackend)
	cfg.DatabaseURL = getSecret("DATABASE_URL", "DATABASE_URL_FILE", cfg.DatabaseURL)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Env:                    "development",
		ChunkSize:              512,
		ChunkOverlap:           150,
		SmallDocTokenThreshold: 5000,
		SemanticWeight:         0.7,
		KeywordWeight:          0.3,
		RerankTopN:             20,
		RerankTopK:             10,
		RerankTimeoutSeconds:   30,
		MaxConcurrentQuestions: 20,
		BatchTimeoutSeconds:    300,
		ModelConcurrency:       20,
		VisionConcurrency:      1,
		CacheDir:               "document_cache",
		CacheTTLHours:          24,
		CacheMaxBytes:          10 << 30, // 10GiB
		EmbedBatch:             32,
		EmbedderURL:            "http://localhost:11434",
		EmbeddingModel:         "bge-m3",
		RerankerURL:            "http://localhost:8001",
		RerankerModel:          "bge-reranker-v2-m3",
		GeneratorURL:           "https://openrouter.ai/api/v1/chat/completions",
		GeneratorModel:         "anthropic/claude-3.5-sonnet",
		IndexBackend:           "memory",
	}
}

func (c *Config) validate() error {
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap %d must be smaller than chunk_size %d", c.ChunkOverlap, c.ChunkSize)
	}
	if c.SemanticWeight < 0 || c.KeywordWeight < 0 {
		return fmt.Errorf("fusion weights must be non-negative")
	}
	if c.RerankTopN <= 0 || c.RerankTopK <= 0 {
		return fmt.Errorf("rerank_top_n %d and rerank_top_k %d must be positive", c.RerankTopN, c.RerankTopK)
	}
	switch c.IndexBackend {
	case "memory", "pgvector":
	default:
		return fmt.Errorf("unknown index backend %q", c.IndexBackend)
	}
	if c.IndexBackend == "pgvector" && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for the pgvector index backend")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
