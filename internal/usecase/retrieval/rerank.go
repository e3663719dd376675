package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"docqa-retriever/internal/domain"
)

// RerankConfig holds reranking stage parameters.
type RerankConfig struct {
	TopN    int // fused candidates submitted to the cross-encoder
	TopK    int // final output size
	Timeout time.Duration
}

// Rerank refines the fused head with cross-encoder scores. On
// capability failure or timeout it returns the fused order truncated
// to TopK with fallback=true; the fallback is never silent.
func Rerank(
	ctx context.Context,
	question string,
	fused []domain.CandidateResult,
	chunks []domain.Chunk,
	reranker domain.Reranker,
	cfg RerankConfig,
	retrievalID string,
	logger *slog.Logger,
) (ranked []domain.CandidateResult, fallback bool) {
	head := fused
	if cfg.TopN > 0 && len(head) > cfg.TopN {
		head = head[:cfg.TopN]
	}

	if reranker == nil {
		return truncate(head, cfg.TopK), true
	}

	candidates := make([]domain.RerankCandidate, len(head))
	for i, c := range head {
		candidates[i] = domain.RerankCandidate{
			Index: c.ChunkIndex,
			Text:  chunks[c.ChunkIndex].Text,
			Score: c.FusedScore,
		}
	}

	rerankStart := time.Now()
	rerankCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		rerankCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	results, err := reranker.Rerank(rerankCtx, question, candidates)
	if err != nil {
		logger.Warn("reranking_failed_using_fused_order",
			slog.String("retrieval_id", retrievalID),
			slog.String("error", err.Error()),
			slog.Int64("duration_ms", time.Since(rerankStart).Milliseconds()))
		return truncate(head, cfg.TopK), true
	}

	logger.Info("reranking_completed",
		slog.String("retrieval_id", retrievalID),
		slog.Int("candidate_count", len(candidates)),
		slog.Int("reranked_count", len(results)),
		slog.String("model", reranker.ModelName()),
		slog.Int64("duration_ms", time.Since(rerankStart).Milliseconds()))

	scores := make(map[int]float64, len(results))
	for _, r := range results {
		scores[r.Index] = r.Score
	}

	ranked = make([]domain.CandidateResult, len(head))
	copy(ranked, head)
	for i := range ranked {
		if score, ok := scores[ranked[i].ChunkIndex]; ok {
			ranked[i].RerankScore = score
			ranked[i].Reranked = true
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		si, sj := stageScore(ranked[i]), stageScore(ranked[j])
		if si != sj {
			return si > sj
		}
		return ranked[i].ChunkIndex < ranked[j].ChunkIndex
	})
	return truncate(ranked, cfg.TopK), false
}

// stageScore orders reranked candidates ahead of any the capability
// did not score.
func stageScore(c domain.CandidateResult) float64 {
	if c.Reranked {
		return c.RerankScore
	}
	return c.FusedScore - 1
}

func truncate(candidates []domain.CandidateResult, k int) []domain.CandidateResult {
	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]domain.CandidateResult, len(candidates))
	copy(out, candidates)
	return out
}
