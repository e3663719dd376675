package domain

import "context"

// DenseHit is a single nearest-neighbor result: squared Euclidean
// distance to the query vector, smaller meaning more similar.
type DenseHit struct {
	ChunkIndex int
	Distance   float64
}

// DenseIndex supports nearest-neighbor queries over chunk embeddings.
// Query returns exactly min(k, Len()) hits ordered by ascending
// distance, ties broken by ascending chunk index. Indexes are
// read-only once built and safe for concurrent queries.
type DenseIndex interface {
	Query(ctx context.Context, vector []float32, k int) ([]DenseHit, error)
	Len() int
}

// DenseIndexBuilder constructs a DenseIndex for one document's
// embeddings. Built once per fingerprint under single-flight.
type DenseIndexBuilder interface {
	Build(ctx context.Context, fingerprint string, embeddings [][]float32) (DenseIndex, error)
}

// SparseIndex scores chunks against query terms with a BM25-family
// ranking function. Unknown terms contribute zero, never an error.
// Only chunks with a non-zero score appear in the result map.
type SparseIndex interface {
	Score(queryTerms []string) map[int]float64
}
