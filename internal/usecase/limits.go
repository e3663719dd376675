package usecase

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"docqa-retriever/internal/domain"
)

// capabilityLimits caps concurrent calls into the expensive external
// capabilities. The embedding/generation/reranking models share one
// cap; the vision-analysis capability has its own.
type capabilityLimits struct {
	model  *semaphore.Weighted
	vision *semaphore.Weighted
}

func newCapabilityLimits(cfg Config) *capabilityLimits {
	model := cfg.ModelConcurrency
	if model <= 0 {
		model = 1
	}
	vision := cfg.VisionConcurrency
	if vision <= 0 {
		vision = 1
	}
	return &capabilityLimits{
		model:  semaphore.NewWeighted(model),
		vision: semaphore.NewWeighted(vision),
	}
}

// limitedEncoder gates VectorEncoder calls on the model cap.
type limitedEncoder struct {
	inner  domain.VectorEncoder
	limits *capabilityLimits
}

func (e *limitedEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limits.model.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for model slot: %w", err)
	}
	defer e.limits.model.Release(1)
	return e.inner.Encode(ctx, texts)
}

func (e *limitedEncoder) Version() string { return e.inner.Version() }

// limitedReranker gates Reranker calls on the model cap.
type limitedReranker struct {
	inner  domain.Reranker
	limits *capabilityLimits
}

func (r *limitedReranker) Rerank(ctx context.Context, question string, candidates []domain.RerankCandidate) ([]domain.RerankResult, error) {
	if err := r.limits.model.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for model slot: %w", err)
	}
	defer r.limits.model.Release(1)
	return r.inner.Rerank(ctx, question, candidates)
}

func (r *limitedReranker) ModelName() string { return r.inner.ModelName() }

// limitedImageAnalyzer gates vision-analysis calls on their own cap.
type limitedImageAnalyzer struct {
	inner  domain.ImageAnalyzer
	limits *capabilityLimits
}

func (a *limitedImageAnalyzer) Analyze(ctx context.Context, imageURL, question string) (string, error) {
	if err := a.limits.vision.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("waiting for vision slot: %w", err)
	}
	defer a.limits.vision.Release(1)
	return a.inner.Analyze(ctx, imageURL, question)
}
