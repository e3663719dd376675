package capability_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa-retriever/internal/adapter/capability"
	"docqa-retriever/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestRerankerClient_MapsResponseIndexToChunkIndex(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/rerank", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 1, "score": 0.9},
				{"index": 0, "score": 0.2},
			},
			"model": "bge-reranker-v2-m3",
		})
	}))
	defer srv.Close()

	client := capability.NewRerankerClient(srv.URL, "bge-reranker-v2-m3", srv.Client(), discardLogger())
	// Candidate positions 0 and 1 carry chunk indexes 7 and 3.
	results, err := client.Rerank(context.Background(), "question", []domain.RerankCandidate{
		{Index: 7, Text: "seventh chunk"},
		{Index: 3, Text: "third chunk"},
	})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, 3, results[0].Index, "response position 1 is the caller's chunk 3")
	assert.InDelta(t, 0.9, results[0].Score, 1e-9)
	assert.Equal(t, 7, results[1].Index)

	assert.Equal(t, "question", gotBody["query"])
	assert.Equal(t, []any{"seventh chunk", "third chunk"}, gotBody["candidates"])
}

func TestRerankerClient_DropsOutOfRangeIndexes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 5, "score": 0.9},
				{"index": -1, "score": 0.8},
				{"index": 0, "score": 0.7},
			},
		})
	}))
	defer srv.Close()

	client := capability.NewRerankerClient(srv.URL, "m", srv.Client(), discardLogger())
	results, err := client.Rerank(context.Background(), "q", []domain.RerankCandidate{{Index: 2, Text: "t"}})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Index)
}

func TestRerankerClient_NonOKStatusIsModelUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := capability.NewRerankerClient(srv.URL, "m", srv.Client(), discardLogger())
	_, err := client.Rerank(context.Background(), "q", []domain.RerankCandidate{{Index: 0, Text: "t"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
}

func TestRerankerClient_TransportErrorIsModelUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	client := capability.NewRerankerClient(srv.URL, "m", nil, discardLogger())
	_, err := client.Rerank(context.Background(), "q", []domain.RerankCandidate{{Index: 0, Text: "t"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
}

func TestRerankerClient_EmptyCandidates(t *testing.T) {
	client := capability.NewRerankerClient("http://unused", "m", nil, discardLogger())
	results, err := client.Rerank(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
