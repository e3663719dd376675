package retrieval

import (
	"fmt"
	"log/slog"
	"sort"

	"docqa-retriever/internal/domain"
)

// Fuse merges dense and sparse result lists into one ranked candidate
// set. Both score lists are min-max normalized to [0,1] per query
// before weighting; a candidate present in only one list receives 0
// for the missing signal. Output is ordered by descending fused score,
// ties broken by ascending chunk index.
func Fuse(
	denseHits []domain.DenseHit,
	sparseScores map[int]float64,
	semanticWeight, keywordWeight float64,
	retrievalID string,
	logger *slog.Logger,
) ([]domain.CandidateResult, error) {
	if semanticWeight < 0 || keywordWeight < 0 {
		return nil, fmt.Errorf("%w: fusion weights must be non-negative, got semantic=%v keyword=%v",
			domain.ErrInvalidInput, semanticWeight, keywordWeight)
	}

	denseNorm := normalizeDense(denseHits)
	sparseNorm := normalizeSparse(sparseScores)

	fusedMap := make(map[int]*domain.CandidateResult, len(denseNorm)+len(sparseNorm))
	for idx, score := range denseNorm {
		fusedMap[idx] = &domain.CandidateResult{ChunkIndex: idx, DenseScore: score}
	}
	for idx, score := range sparseNorm {
		if existing, ok := fusedMap[idx]; ok {
			existing.SparseScore = score
		} else {
			fusedMap[idx] = &domain.CandidateResult{ChunkIndex: idx, SparseScore: score}
		}
	}

	candidates := make([]domain.CandidateResult, 0, len(fusedMap))
	for _, c := range fusedMap {
		c.FusedScore = semanticWeight*c.DenseScore + keywordWeight*c.SparseScore
		candidates = append(candidates, *c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].FusedScore != candidates[j].FusedScore {
			return candidates[i].FusedScore > candidates[j].FusedScore
		}
		return candidates[i].ChunkIndex < candidates[j].ChunkIndex
	})

	logger.Debug("hybrid_fusion_completed",
		slog.String("retrieval_id", retrievalID),
		slog.Int("dense_count", len(denseHits)),
		slog.Int("sparse_count", len(sparseScores)),
		slog.Int("fused_count", len(candidates)))

	return candidates, nil
}

// normalizeDense converts squared-L2 distances into similarities and
// min-max normalizes them. All-equal distances (including a single
// candidate) normalize to 1.0 for every hit.
func normalizeDense(hits []domain.DenseHit) map[int]float64 {
	norm := make(map[int]float64, len(hits))
	if len(hits) == 0 {
		return norm
	}
	minDist, maxDist := hits[0].Distance, hits[0].Distance
	for _, h := range hits[1:] {
		if h.Distance < minDist {
			minDist = h.Distance
		}
		if h.Distance > maxDist {
			maxDist = h.Distance
		}
	}
	spread := maxDist - minDist
	for _, h := range hits {
		if spread == 0 {
			norm[h.ChunkIndex] = 1.0
		} else {
			norm[h.ChunkIndex] = (maxDist - h.Distance) / spread
		}
	}
	return norm
}

// normalizeSparse min-max normalizes BM25 scores, with the same
// all-equal edge case as normalizeDense.
func normalizeSparse(scores map[int]float64) map[int]float64 {
	norm := make(map[int]float64, len(scores))
	if len(scores) == 0 {
		return norm
	}
	first := true
	var minScore, maxScore float64
	for _, s := range scores {
		if first {
			minScore, maxScore = s, s
			first = false
			continue
		}
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}
	spread := maxScore - minScore
	for idx, s := range scores {
		if spread == 0 {
			norm[idx] = 1.0
		} else {
			norm[idx] = (s - minScore) / spread
		}
	}
	return norm
}
