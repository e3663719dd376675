package cache

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"docqa-retriever/internal/domain"
)

// Record is one fingerprint-keyed cache entry: chunk texts, their
// embeddings, and the cached strategy decision. At most one record
// exists per fingerprint.
type Record struct {
	Fingerprint   string
	ModelVersion  string
	Strategy      domain.Strategy
	Reason        string
	TokenEstimate int
	Chunks        []domain.Chunk
	Embeddings    [][]float32
	CreatedAt     time.Time
	SizeBytes     int64
}

// Plan returns the strategy decision stored with the record.
func (r *Record) Plan() *domain.RetrievalPlan {
	return &domain.RetrievalPlan{
		Strategy:      r.Strategy,
		Reason:        r.Reason,
		TokenEstimate: r.TokenEstimate,
	}
}

// Store is a content-addressed persistent embedding cache. One gob
// file per fingerprint under dir; TTL and total-size eviction are
// enforced at write time, oldest entries first. Concurrent
// GetOrCompute calls for one fingerprint share a single computation.
type Store struct {
	dir       string
	ttl       time.Duration
	maxBytes  int64
	batchSize int
	logger    *slog.Logger

	group singleflight.Group
	mu    sync.Mutex // serializes write-time eviction
}

// NewStore opens (creating if needed) a cache directory.
func NewStore(dir string, ttl time.Duration, maxBytes int64, batchSize int, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	if batchSize <= 0 {
		batchSize = 32
	}
	return &Store{
		dir:       dir,
		ttl:       ttl,
		maxBytes:  maxBytes,
		batchSize: batchSize,
		logger:    logger,
	}, nil
}

// GetOrCompute returns the cached record for fingerprint, or computes
// chunk embeddings with encoder, stores the result and returns it.
// plan is persisted alongside the embeddings so repeated questions
// against the same document do not re-decide the strategy.
func (s *Store) GetOrCompute(
	ctx context.Context,
	fingerprint string,
	plan *domain.RetrievalPlan,
	chunks []domain.Chunk,
	encoder domain.VectorEncoder,
) (*Record, error) {
	v, err, _ := s.group.Do(fingerprint, func() (interface{}, error) {
		if rec, ok := s.lookup(fingerprint, encoder.Version()); ok {
			return rec, nil
		}
		return s.compute(ctx, fingerprint, plan, chunks, encoder)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Record), nil
}

// Lookup returns a valid (non-expired, integrity-checked) record, or
// (nil, false) on any miss.
func (s *Store) Lookup(fingerprint, modelVersion string) (*Record, bool) {
	return s.lookup(fingerprint, modelVersion)
}

// Put stores a record that needed no embedding computation, e.g. a
// full-text decision for a small document.
func (s *Store) Put(rec *Record) error {
	return s.write(rec)
}

func (s *Store) compute(
	ctx context.Context,
	fingerprint string,
	plan *domain.RetrievalPlan,
	chunks []domain.Chunk,
	encoder domain.VectorEncoder,
) (*Record, error) {
	start := time.Now()
	embeddings := make([][]float32, 0, len(chunks))
	for batchStart := 0; batchStart < len(chunks); batchStart += s.batchSize {
		batchEnd := batchStart + s.batchSize
		if batchEnd > len(chunks) {
			batchEnd = len(chunks)
		}
		texts := make([]string, 0, batchEnd-batchStart)
		for _, chunk := range chunks[batchStart:batchEnd] {
			texts = append(texts, chunk.Text)
		}
		vectors, err := encoder.Encode(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("%w: embedding batch failed: %v", domain.ErrModelUnavailable, err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("%w: encoder returned %d vectors for %d texts",
				domain.ErrModelUnavailable, len(vectors), len(texts))
		}
		embeddings = append(embeddings, vectors...)
	}

	rec := &Record{
		Fingerprint:   fingerprint,
		ModelVersion:  encoder.Version(),
		Strategy:      plan.Strategy,
		Reason:        plan.Reason,
		TokenEstimate: plan.TokenEstimate,
		Chunks:        chunks,
		Embeddings:    embeddings,
		CreatedAt:     time.Now(),
	}
	if err := s.write(rec); err != nil {
		return nil, err
	}

	s.logger.Info("embeddings_computed",
		slog.String("fingerprint", fingerprint),
		slog.Int("chunk_count", len(chunks)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return rec, nil
}

func (s *Store) lookup(fingerprint, modelVersion string) (*Record, bool) {
	path := s.path(fingerprint)
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer func() { _ = f.Close() }()

	var rec Record
	if err := gob.NewDecoder(f).Decode(&rec); err != nil {
		s.discard(path, fmt.Errorf("undecodable cache record: %w", err))
		return nil, false
	}
	if s.ttl > 0 && time.Since(rec.CreatedAt) > s.ttl {
		s.discard(path, nil)
		return nil, false
	}
	if rec.ModelVersion != modelVersion {
		return nil, false
	}
	if err := rec.check(); err != nil {
		s.discard(path, err)
		return nil, false
	}
	return &rec, true
}

// check validates the chunk/embedding invariant on read.
func (r *Record) check() error {
	if r.Strategy == domain.StrategyHybridRAG && len(r.Chunks) != len(r.Embeddings) {
		return fmt.Errorf("%w: %d chunks, %d embeddings",
			domain.ErrCacheIntegrity, len(r.Chunks), len(r.Embeddings))
	}
	return nil
}

func (s *Store) discard(path string, cause error) {
	if cause != nil && errors.Is(cause, domain.ErrCacheIntegrity) {
		s.logger.Warn("cache_record_discarded",
			slog.String("path", path),
			slog.String("error", cause.Error()))
	}
	_ = os.Remove(path)
}

func (s *Store) write(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	path := s.path(rec.Fingerprint)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(rec); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to encode cache record: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close cache file: %w", err)
	}

	info, err := os.Stat(tmp)
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to stat cache file: %w", err)
	}
	rec.SizeBytes = info.Size()

	s.evictLocked(rec.Fingerprint, rec.SizeBytes)

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to publish cache file: %w", err)
	}
	return nil
}

// evictLocked removes expired entries, then the oldest entries until
// incoming additional bytes fit under the total-size bound.
func (s *Store) evictLocked(incomingFingerprint string, incoming int64) {
	type entry struct {
		path    string
		size    int64
		modTime time.Time
	}

	paths, err := filepath.Glob(filepath.Join(s.dir, "*.gob"))
	if err != nil {
		return
	}

	var entries []entry
	var total int64
	now := time.Now()
	for _, p := range paths {
		if p == s.path(incomingFingerprint) {
			// Being replaced; don't count the old copy.
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if s.ttl > 0 && now.Sub(info.ModTime()) > s.ttl {
			_ = os.Remove(p)
			continue
		}
		entries = append(entries, entry{path: p, size: info.Size(), modTime: info.ModTime()})
		total += info.Size()
	}

	if s.maxBytes <= 0 || total+incoming <= s.maxBytes {
		return
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].modTime.Before(entries[j].modTime)
	})
	for _, e := range entries {
		if total+incoming <= s.maxBytes {
			break
		}
		if os.Remove(e.path) == nil {
			total -= e.size
			s.logger.Info("cache_entry_evicted",
				slog.String("path", e.path),
				slog.Int64("size_bytes", e.size))
		}
	}
}

// Purge removes expired entries and enforces the size bound.
func (s *Store) Purge() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked("", 0)
	return nil
}

func (s *Store) path(fingerprint string) string {
	return filepath.Join(s.dir, fingerprint+".gob")
}
