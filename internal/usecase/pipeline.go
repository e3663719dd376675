package usecase

import (
	"log/slog"
	"time"

	"docqa-retriever/internal/cache"
	"docqa-retriever/internal/domain"
)

// Pipeline bundles the retrieval core: shared per-document session
// state plus the prepare and retrieve entry points. Capability
// concurrency caps are applied here, at the orchestrator boundary.
type Pipeline struct {
	Prepare  PrepareDocumentUsecase
	Retrieve RetrieveContextUsecase

	limits *capabilityLimits
}

// PipelineDeps are the external collaborators the core consumes.
type PipelineDeps struct {
	Loader   domain.DocumentLoader
	Encoder  domain.VectorEncoder
	Reranker domain.Reranker // nil disables reranking (observable fused-order fallback)
	Builder  domain.DenseIndexBuilder
	Store    *cache.Store
}

// NewPipeline wires the retrieval core from its collaborators and one
// immutable config snapshot.
func NewPipeline(deps PipelineDeps, cfg Config, logger *slog.Logger) *Pipeline {
	limits := newCapabilityLimits(cfg)
	encoder := domain.VectorEncoder(&limitedEncoder{inner: deps.Encoder, limits: limits})

	var reranker domain.Reranker
	if deps.Reranker != nil {
		reranker = &limitedReranker{inner: deps.Reranker, limits: limits}
	}

	sessions := newSessionManager(deps.Loader, encoder, deps.Builder, deps.Store, cfg, logger)

	return &Pipeline{
		Prepare: NewPrepareDocumentUsecase(sessions),
		Retrieve: &retrieveContextUsecase{
			sessions: sessions,
			encoder:  encoder,
			reranker: reranker,
			qcache:   cache.NewQuestionCache(1024, 24*time.Hour),
			cfg:      cfg,
			logger:   logger,
		},
		limits: limits,
	}
}

// LimitImageAnalyzer applies the vision-analysis concurrency cap to an
// external analyzer. The core never calls the analyzer itself.
func (p *Pipeline) LimitImageAnalyzer(inner domain.ImageAnalyzer) domain.ImageAnalyzer {
	return &limitedImageAnalyzer{inner: inner, limits: p.limits}
}
