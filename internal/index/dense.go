package index

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"docqa-retriever/internal/domain"
)

// flatIndex is an exact-scan dense index over chunk embeddings using
// squared Euclidean distance. Brute force is the true top-k for the
// corpus sizes a single document produces.
type flatIndex struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float32
}

type flatBuilder struct{}

// NewFlatBuilder returns the in-memory DenseIndexBuilder.
func NewFlatBuilder() domain.DenseIndexBuilder {
	return flatBuilder{}
}

func (flatBuilder) Build(_ context.Context, _ string, embeddings [][]float32) (domain.DenseIndex, error) {
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings to index", domain.ErrInvalidInput)
	}
	dimension := len(embeddings[0])
	for i, v := range embeddings {
		if len(v) != dimension {
			return nil, fmt.Errorf("%w: embedding %d has dimension %d, want %d",
				domain.ErrInvalidInput, i, len(v), dimension)
		}
	}
	return &flatIndex{dimension: dimension, vectors: embeddings}, nil
}

func (ix *flatIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

func (ix *flatIndex) Query(_ context.Context, vector []float32, k int) ([]domain.DenseHit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(vector) != ix.dimension {
		return nil, fmt.Errorf("%w: query vector has dimension %d, want %d",
			domain.ErrInvalidInput, len(vector), ix.dimension)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidInput, k)
	}
	if k > len(ix.vectors) {
		k = len(ix.vectors)
	}

	hits := make([]domain.DenseHit, len(ix.vectors))
	for i, v := range ix.vectors {
		hits[i] = domain.DenseHit{ChunkIndex: i, Distance: squaredL2(v, vector)}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ChunkIndex < hits[j].ChunkIndex
	})
	return hits[:k], nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
