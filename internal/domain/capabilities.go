package domain

import "context"

// VectorEncoder defines the interface for generating embeddings.
// Implementations batch the given texts in a single capability call.
type VectorEncoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Version() string
}

// RerankCandidate is a (chunk index, text) pair submitted for
// cross-encoder scoring. Score carries the fused retrieval score for
// logging and for fallback ordering.
type RerankCandidate struct {
	Index int
	Text  string
	Score float64
}

// RerankResult is a cross-encoder relevance score for one candidate.
type RerankResult struct {
	Index int
	Score float64
}

// Reranker defines the interface for cross-encoder reranking.
// Rerank scores candidates against the question and returns results
// sorted by score descending. On error, callers fall back to the
// fused order.
type Reranker interface {
	Rerank(ctx context.Context, question string, candidates []RerankCandidate) ([]RerankResult, error)
	ModelName() string
}

// DocumentLoader acquires a document source and produces cleaned text.
// Format parsing lives behind this interface, outside the core.
type DocumentLoader interface {
	LoadAndClean(ctx context.Context, source string) (string, error)
}

// AnswerGenerator synthesizes an answer from a question and its
// retrieved context. The downstream generation step, not called by the
// retrieval pipeline itself.
type AnswerGenerator interface {
	Generate(ctx context.Context, question, context string) (string, error)
}

// ImageAnalyzer describes a document image with a vision model.
// External capability; the core only rate-caps calls into it.
type ImageAnalyzer interface {
	Analyze(ctx context.Context, imageURL, question string) (string, error)
}
