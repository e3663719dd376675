package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"docqa-retriever/internal/domain"
)

// rerankRequest is the payload for the cross-encoder endpoint.
type rerankRequest struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
	Model      string   `json:"model,omitempty"`
}

type rerankResponseResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

type rerankResponse struct {
	Results []rerankResponseResult `json:"results"`
	Model   string                 `json:"model"`
}

// RerankerClient implements domain.Reranker via HTTP calls to a
// cross-encoder service exposing /v1/rerank.
type RerankerClient struct {
	BaseURL string
	Model   string
	Client  *http.Client
	logger  *slog.Logger
}

func NewRerankerClient(baseURL, model string, client *http.Client, logger *slog.Logger) *RerankerClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RerankerClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  client,
		logger:  logger,
	}
}

func (c *RerankerClient) ModelName() string { return c.Model }

// Rerank scores candidates against the question. The response index
// refers to the candidate's position in the request; it is mapped back
// to the caller's chunk index.
func (c *RerankerClient) Rerank(ctx context.Context, question string, candidates []domain.RerankCandidate) ([]domain.RerankResult, error) {
	if len(candidates) == 0 {
		return []domain.RerankResult{}, nil
	}

	start := time.Now()
	contents := make([]string, len(candidates))
	for i, cand := range candidates {
		contents[i] = cand.Text
	}

	jsonPayload, err := json.Marshal(rerankRequest{
		Query:      question,
		Candidates: contents,
		Model:      c.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/rerank", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: rerank call failed: %v", domain.ErrModelUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: rerank endpoint returned %d: %s",
			domain.ErrModelUnavailable, resp.StatusCode, string(body))
	}

	var respBody rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	results := make([]domain.RerankResult, 0, len(respBody.Results))
	for _, r := range respBody.Results {
		if r.Index < 0 || r.Index >= len(candidates) {
			continue
		}
		results = append(results, domain.RerankResult{
			Index: candidates[r.Index].Index,
			Score: r.Score,
		})
	}

	c.logger.Debug("rerank_call_completed",
		slog.Int("candidate_count", len(candidates)),
		slog.Int("result_count", len(results)),
		slog.String("model", c.Model),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
	return results, nil
}
