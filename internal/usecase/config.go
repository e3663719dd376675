package usecase

import "time"

// Config is the immutable retrieval configuration snapshot. A batch
// observes one snapshot for its whole run; weights and thresholds
// never change mid-batch.
type Config struct {
	ChunkSize              int
	ChunkOverlap           int
	SmallDocTokenThreshold int

	SemanticWeight float64
	KeywordWeight  float64

	RerankTopN    int
	RerankTopK    int
	RerankTimeout time.Duration

	MaxConcurrentQuestions int
	BatchTimeout           time.Duration

	// Independent concurrency caps for expensive capabilities,
	// enforced at the orchestrator boundary.
	ModelConcurrency  int64
	VisionConcurrency int64
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:              512,
		ChunkOverlap:           150,
		SmallDocTokenThreshold: 5000,
		SemanticWeight:         0.7,
		KeywordWeight:          0.3,
		RerankTopN:             20,
		RerankTopK:             10,
		RerankTimeout:          30 * time.Second,
		MaxConcurrentQuestions: 20,
		BatchTimeout:           5 * time.Minute,
		ModelConcurrency:       20,
		VisionConcurrency:      1,
	}
}
