package capability_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa-retriever/internal/adapter/capability"
)

func TestHTTPEmbedder_Encode(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{0.1, 0.2}, {0.3, 0.4}},
		})
	}))
	defer srv.Close()

	embedder := capability.NewHTTPEmbedder(srv.URL, "bge-m3", srv.Client())
	vectors, err := embedder.Encode(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)

	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vectors[0])
	assert.Equal(t, "bge-m3", gotBody["model"])
	assert.Equal(t, []any{"alpha", "beta"}, gotBody["input"])
}

func TestHTTPEmbedder_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "out of memory", http.StatusInternalServerError)
	}))
	defer srv.Close()

	embedder := capability.NewHTTPEmbedder(srv.URL, "bge-m3", srv.Client())
	_, err := embedder.Encode(context.Background(), []string{"alpha"})
	assert.Error(t, err)
}

func TestHTTPEmbedder_VersionIsModelName(t *testing.T) {
	embedder := capability.NewHTTPEmbedder("http://unused", "bge-m3", nil)
	assert.Equal(t, "bge-m3", embedder.Version())
}
