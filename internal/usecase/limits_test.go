package usecase_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa-retriever/internal/cache"
	"docqa-retriever/internal/domain"
	"docqa-retriever/internal/index"
	"docqa-retriever/internal/usecase"
)

// inflightGauge records the highest number of simultaneous callers.
type inflightGauge struct {
	cur atomic.Int64
	max atomic.Int64
}

func (g *inflightGauge) enter() {
	cur := g.cur.Add(1)
	for {
		max := g.max.Load()
		if cur <= max || g.max.CompareAndSwap(max, cur) {
			return
		}
	}
}

func (g *inflightGauge) exit() { g.cur.Add(-1) }

type gaugedEncoder struct {
	inner stubEncoder
	gauge inflightGauge
}

func (e *gaugedEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	e.gauge.enter()
	defer e.gauge.exit()
	time.Sleep(10 * time.Millisecond)
	return e.inner.Encode(ctx, texts)
}

func (e *gaugedEncoder) Version() string { return e.inner.Version() }

type gaugedReranker struct {
	gauge inflightGauge
}

func (r *gaugedReranker) Rerank(_ context.Context, _ string, candidates []domain.RerankCandidate) ([]domain.RerankResult, error) {
	r.gauge.enter()
	defer r.gauge.exit()
	time.Sleep(10 * time.Millisecond)
	results := make([]domain.RerankResult, len(candidates))
	for i, c := range candidates {
		results[i] = domain.RerankResult{Index: c.Index, Score: float64(len(candidates) - i)}
	}
	return results, nil
}

func (r *gaugedReranker) ModelName() string { return "gauged" }

func TestPipeline_ModelCapBoundsConcurrentRerankCalls(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	store, err := cache.NewStore(t.TempDir(), time.Hour, 0, 32, logger)
	require.NoError(t, err)

	cfg := usecase.DefaultConfig()
	cfg.ModelConcurrency = 1
	cfg.MaxConcurrentQuestions = 8

	rr := &gaugedReranker{}
	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Loader:   &stubLoader{docs: map[string]string{"big.txt": wordsDoc(12000)}},
		Encoder:  &stubEncoder{},
		Reranker: rr,
		Builder:  index.NewFlatBuilder(),
		Store:    store,
	}, cfg, logger)

	questions := make([]string, 8)
	for i := range questions {
		questions[i] = fmt.Sprintf("question %d about term%d", i, i)
	}
	results, err := pipeline.Retrieve.Execute(context.Background(), "big.txt", questions)
	require.NoError(t, err)
	require.Len(t, results, len(questions))
	for _, r := range results {
		require.NoError(t, r.Err)
	}

	assert.Equal(t, int64(1), rr.gauge.max.Load(),
		"the model cap must serialize cross-encoder calls even with question fan-out")
}

func TestPipeline_ModelCapBoundsConcurrentEncoderCalls(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	store, err := cache.NewStore(t.TempDir(), time.Hour, 0, 32, logger)
	require.NoError(t, err)

	cfg := usecase.DefaultConfig()
	cfg.ModelConcurrency = 1

	enc := &gaugedEncoder{}
	sources := []string{"a.txt", "b.txt", "c.txt"}
	docs := make(map[string]string, len(sources))
	for i, src := range sources {
		docs[src] = wordsDoc(12000 + i)
	}
	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Loader:   &stubLoader{docs: docs},
		Encoder:  enc,
		Reranker: &selectiveReranker{},
		Builder:  index.NewFlatBuilder(),
		Store:    store,
	}, cfg, logger)

	var wg sync.WaitGroup
	for _, src := range sources {
		src := src
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pipeline.Retrieve.Execute(context.Background(), src, []string{"q about " + src})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), enc.gauge.max.Load(),
		"chunk and question embedding calls across documents share one model slot")
}

type gaugedAnalyzer struct {
	gauge inflightGauge
}

func (a *gaugedAnalyzer) Analyze(_ context.Context, imageURL, _ string) (string, error) {
	a.gauge.enter()
	defer a.gauge.exit()
	time.Sleep(10 * time.Millisecond)
	return "description of " + imageURL, nil
}

func TestPipeline_LimitImageAnalyzerBoundsVisionCalls(t *testing.T) {
	f := newPipelineFixture(t, map[string]string{})

	inner := &gaugedAnalyzer{}
	limited := f.pipeline.LimitImageAnalyzer(inner)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			desc, err := limited.Analyze(context.Background(), fmt.Sprintf("img-%d.png", i), "what is shown?")
			assert.NoError(t, err)
			assert.NotEmpty(t, desc)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), inner.gauge.max.Load(),
		"vision analysis has its own cap, independent of the model cap")
}
