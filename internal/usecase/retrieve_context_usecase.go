package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"docqa-retriever/internal/cache"
	"docqa-retriever/internal/domain"
	"docqa-retriever/internal/index"
	"docqa-retriever/internal/usecase/retrieval"
)

// RetrieveContextUsecase runs per-question hybrid retrieval across a
// batch of questions. The output list always matches the input
// questions in length and order; per-question failures are captured
// in the corresponding result rather than aborting the batch.
type RetrieveContextUsecase interface {
	Execute(ctx context.Context, source string, questions []string) ([]domain.RetrievalResult, error)
}

type retrieveContextUsecase struct {
	sessions *sessionManager
	encoder  domain.VectorEncoder
	reranker domain.Reranker
	qcache   *cache.QuestionCache
	cfg      Config
	logger   *slog.Logger
}

func (u *retrieveContextUsecase) Execute(ctx context.Context, source string, questions []string) ([]domain.RetrievalResult, error) {
	if len(questions) == 0 {
		return []domain.RetrievalResult{}, nil
	}

	// Document-level failures (acquisition, embedding unavailability
	// during index build) abort the whole batch.
	sess, err := u.sessions.Acquire(ctx, source)
	if err != nil {
		return nil, err
	}

	results := make([]domain.RetrievalResult, len(questions))

	if sess.plan.Strategy == domain.StrategyFullText {
		for i, q := range questions {
			results[i] = domain.RetrievalResult{
				Question: q,
				Strategy: domain.StrategyFullText,
				FullText: sess.text,
			}
		}
		return results, nil
	}

	// The batch timeout bounds question embedding and retrieval both.
	batchCtx := ctx
	if u.cfg.BatchTimeout > 0 {
		var cancel context.CancelFunc
		batchCtx, cancel = context.WithTimeout(ctx, u.cfg.BatchTimeout)
		defer cancel()
	}

	vectors, err := u.encoder.Encode(batchCtx, questions)
	if err != nil {
		return nil, fmt.Errorf("%w: question embedding failed: %v", domain.ErrModelUnavailable, err)
	}
	if len(vectors) != len(questions) {
		return nil, fmt.Errorf("%w: encoder returned %d vectors for %d questions",
			domain.ErrModelUnavailable, len(vectors), len(questions))
	}

	start := time.Now()
	var g errgroup.Group
	if u.cfg.MaxConcurrentQuestions > 0 {
		g.SetLimit(u.cfg.MaxConcurrentQuestions)
	}
	for i := range questions {
		i := i
		g.Go(func() error {
			results[i] = u.retrieveOne(batchCtx, sess, questions[i], vectors[i])
			return nil
		})
	}
	_ = g.Wait()

	u.logger.Info("batch_retrieval_completed",
		slog.String("fingerprint", sess.fingerprint),
		slog.Int("question_count", len(questions)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return results, nil
}

func (u *retrieveContextUsecase) retrieveOne(ctx context.Context, sess *documentSession, question string, vector []float32) domain.RetrievalResult {
	if cached, ok := u.qcache.Get(sess.fingerprint, question); ok {
		cached.Question = question
		return cached
	}

	// A batch timeout cancels still-pending questions; completed
	// results are unaffected.
	if err := ctx.Err(); err != nil {
		return errorResult(question, fmt.Errorf("question cancelled: %w", err))
	}

	retrievalID := uuid.New().String()

	k := 2 * u.cfg.RerankTopN
	if k > sess.dense.Len() {
		k = sess.dense.Len()
	}
	denseHits, err := sess.dense.Query(ctx, vector, k)
	if err != nil {
		return errorResult(question, fmt.Errorf("dense query failed: %w", err))
	}
	sparseScores := sess.sparse.Score(index.Terms(question))

	fused, err := retrieval.Fuse(denseHits, sparseScores,
		u.cfg.SemanticWeight, u.cfg.KeywordWeight, retrievalID, u.logger)
	if err != nil {
		return errorResult(question, err)
	}

	ranked, fallback := retrieval.Rerank(ctx, question, fused, sess.chunks, u.reranker,
		retrieval.RerankConfig{
			TopN:    u.cfg.RerankTopN,
			TopK:    u.cfg.RerankTopK,
			Timeout: u.cfg.RerankTimeout,
		}, retrievalID, u.logger)

	contexts := make([]domain.RetrievedChunk, len(ranked))
	for i, c := range ranked {
		score := c.FusedScore
		if c.Reranked {
			score = c.RerankScore
		}
		contexts[i] = domain.RetrievedChunk{
			ChunkIndex: c.ChunkIndex,
			Text:       sess.chunks[c.ChunkIndex].Text,
			Score:      score,
		}
	}

	result := domain.RetrievalResult{
		Question:       question,
		Strategy:       domain.StrategyHybridRAG,
		Contexts:       contexts,
		RerankFallback: fallback,
	}
	u.qcache.Add(sess.fingerprint, question, result)
	return result
}

func errorResult(question string, err error) domain.RetrievalResult {
	return domain.RetrievalResult{Question: question, Err: err}
}
