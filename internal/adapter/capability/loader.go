package capability

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"docqa-retriever/internal/domain"
)

const maxDocumentBytes = 100 << 20 // 100MB

// TextLoader implements domain.DocumentLoader for plain-text sources:
// http(s) URLs and local file paths. Rich-format parsing (PDF, DOCX,
// PPTX) belongs to an external parsing service behind the same
// interface.
type TextLoader struct {
	Client  *http.Client
	limiter *rate.Limiter
}

// NewTextLoader creates a loader. fetchesPerSecond throttles remote
// fetches so repeated prepares stay polite to the document host.
func NewTextLoader(client *http.Client, fetchesPerSecond float64) *TextLoader {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if fetchesPerSecond <= 0 {
		fetchesPerSecond = 2
	}
	return &TextLoader{
		Client:  client,
		limiter: rate.NewLimiter(rate.Limit(fetchesPerSecond), 1),
	}
}

func (l *TextLoader) LoadAndClean(ctx context.Context, source string) (string, error) {
	var raw []byte
	var err error
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		raw, err = l.fetch(ctx, source)
	} else {
		raw, err = os.ReadFile(source)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrAcquisition, err)
	}
	return domain.CleanText(string(raw)), nil
}

func (l *TextLoader) fetch(ctx context.Context, url string) ([]byte, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("document fetch returned status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
}
