package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"docqa-retriever/internal/cache"
	"docqa-retriever/internal/domain"
	"docqa-retriever/internal/index"
)

// documentSession is the per-fingerprint shared state: the strategy
// decision plus, for hybrid documents, the chunk set and both indexes.
// Read-only once built; shared across concurrent questions.
type documentSession struct {
	fingerprint string
	source      string
	text        string
	plan        *domain.RetrievalPlan
	chunks      []domain.Chunk
	dense       domain.DenseIndex
	sparse      domain.SparseIndex
}

// sessionManager builds and caches document sessions. Building is
// protected by single-flight semantics so concurrent first access does
// not duplicate model calls or index construction.
type sessionManager struct {
	loader  domain.DocumentLoader
	encoder domain.VectorEncoder
	builder domain.DenseIndexBuilder
	store   *cache.Store
	cfg     Config
	logger  *slog.Logger

	flights  singleflight.Group
	mu       sync.RWMutex
	sessions map[string]*documentSession
}

func newSessionManager(
	loader domain.DocumentLoader,
	encoder domain.VectorEncoder,
	builder domain.DenseIndexBuilder,
	store *cache.Store,
	cfg Config,
	logger *slog.Logger,
) *sessionManager {
	return &sessionManager{
		loader:   loader,
		encoder:  encoder,
		builder:  builder,
		store:    store,
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*documentSession),
	}
}

// Acquire loads the source and returns its session, building it on
// first access.
func (m *sessionManager) Acquire(ctx context.Context, source string) (*documentSession, error) {
	text, err := m.loader.LoadAndClean(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAcquisition, err)
	}
	cleaned := domain.CleanText(text)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: document is empty", domain.ErrInvalidInput)
	}
	fingerprint := domain.Fingerprint(cleaned)

	m.mu.RLock()
	sess, ok := m.sessions[fingerprint]
	m.mu.RUnlock()
	if ok {
		return sess, nil
	}

	v, err, _ := m.flights.Do(fingerprint, func() (interface{}, error) {
		m.mu.RLock()
		existing, ok := m.sessions[fingerprint]
		m.mu.RUnlock()
		if ok {
			return existing, nil
		}
		built, err := m.build(ctx, fingerprint, source, cleaned)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.sessions[fingerprint] = built
		m.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*documentSession), nil
}

func (m *sessionManager) build(ctx context.Context, fingerprint, source, text string) (*documentSession, error) {
	start := time.Now()

	if rec, ok := m.store.Lookup(fingerprint, m.encoder.Version()); ok {
		m.logger.Info("cache_hit",
			slog.String("fingerprint", fingerprint),
			slog.String("strategy", string(rec.Strategy)),
			slog.Int("chunk_count", len(rec.Chunks)))
		return m.materialize(ctx, fingerprint, source, text, rec)
	}

	estimate := domain.EstimateTokens(text)
	if estimate < m.cfg.SmallDocTokenThreshold {
		plan := &domain.RetrievalPlan{
			Strategy:      domain.StrategyFullText,
			Reason:        fmt.Sprintf("estimated %d tokens below threshold %d", estimate, m.cfg.SmallDocTokenThreshold),
			TokenEstimate: estimate,
		}
		rec := &cache.Record{
			Fingerprint:   fingerprint,
			ModelVersion:  m.encoder.Version(),
			Strategy:      plan.Strategy,
			Reason:        plan.Reason,
			TokenEstimate: plan.TokenEstimate,
		}
		if err := m.store.Put(rec); err != nil {
			m.logger.Warn("plan_cache_write_failed",
				slog.String("fingerprint", fingerprint),
				slog.String("error", err.Error()))
		}
		m.logger.Info("strategy_selected",
			slog.String("fingerprint", fingerprint),
			slog.String("strategy", string(plan.Strategy)),
			slog.Int("token_estimate", estimate))
		return &documentSession{fingerprint: fingerprint, source: source, text: text, plan: plan}, nil
	}

	plan := &domain.RetrievalPlan{
		Strategy:      domain.StrategyHybridRAG,
		Reason:        fmt.Sprintf("estimated %d tokens at or above threshold %d", estimate, m.cfg.SmallDocTokenThreshold),
		TokenEstimate: estimate,
	}

	chunker, err := domain.NewTokenChunker(m.cfg.ChunkSize, m.cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	chunks, err := chunker.Chunk(text)
	if err != nil {
		return nil, err
	}

	rec, err := m.store.GetOrCompute(ctx, fingerprint, plan, chunks, m.encoder)
	if err != nil {
		// Embeddings are mandatory for the dense index; fatal.
		return nil, err
	}

	sess, err := m.materialize(ctx, fingerprint, source, text, rec)
	if err != nil {
		return nil, err
	}
	m.logger.Info("document_indexed",
		slog.String("fingerprint", fingerprint),
		slog.Int("chunk_count", len(rec.Chunks)),
		slog.Int("token_estimate", estimate),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return sess, nil
}

// materialize rebuilds the in-memory indexes from a cache record. The
// sparse index is cheap to rebuild and never persisted.
func (m *sessionManager) materialize(ctx context.Context, fingerprint, source, text string, rec *cache.Record) (*documentSession, error) {
	sess := &documentSession{
		fingerprint: fingerprint,
		source:      source,
		text:        text,
		plan:        rec.Plan(),
		chunks:      rec.Chunks,
	}
	if rec.Strategy != domain.StrategyHybridRAG {
		return sess, nil
	}
	dense, err := m.builder.Build(ctx, fingerprint, rec.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("failed to build dense index: %w", err)
	}
	sess.dense = dense
	sess.sparse = index.BuildBM25(rec.Chunks)
	return sess, nil
}
