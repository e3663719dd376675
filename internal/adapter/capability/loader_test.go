package capability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa-retriever/internal/adapter/capability"
	"docqa-retriever/internal/domain"
)

func TestTextLoader_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello   world\r\n\r\n\r\nsecond  paragraph"), 0o644))

	loader := capability.NewTextLoader(nil, 10)
	text, err := loader.LoadAndClean(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "hello world\n\nsecond paragraph", text)
}

func TestTextLoader_RemoteURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("remote  document body"))
	}))
	defer srv.Close()

	loader := capability.NewTextLoader(srv.Client(), 10)
	text, err := loader.LoadAndClean(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "remote document body", text)
}

func TestTextLoader_MissingFileIsAcquisitionError(t *testing.T) {
	loader := capability.NewTextLoader(nil, 10)
	_, err := loader.LoadAndClean(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAcquisition)
}

func TestTextLoader_RemoteErrorStatusIsAcquisitionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	loader := capability.NewTextLoader(srv.Client(), 10)
	_, err := loader.LoadAndClean(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAcquisition)
}
