package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	generationTemperature = 0.1
	generationMaxTokens   = 1000

	contextSystemPrompt = "Answer strictly from the provided context. " +
		"If the context does not contain the answer, say so; do not use outside knowledge."
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GeneratorClient implements domain.AnswerGenerator against an
// OpenAI-compatible chat-completions endpoint. The downstream answer
// synthesis step; the retrieval pipeline itself never calls it.
type GeneratorClient struct {
	URL    string
	Model  string
	APIKey string
	Client *http.Client
}

func NewGeneratorClient(url, model, apiKey string, client *http.Client) *GeneratorClient {
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &GeneratorClient{URL: url, Model: model, APIKey: apiKey, Client: client}
}

func (g *GeneratorClient) Generate(ctx context.Context, question, context_ string) (string, error) {
	payload := chatRequest{
		Model: g.Model,
		Messages: []chatMessage{
			{Role: "system", Content: contextSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("CONTEXT:\n%s\n\nQUESTION: %s", context_, question)},
		},
		MaxTokens:   generationMaxTokens,
		Temperature: generationTemperature,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.APIKey)
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call generator: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("generator returned %d: %s", resp.StatusCode, string(body))
	}

	var respBody chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(respBody.Choices) == 0 {
		return "", fmt.Errorf("generator returned no choices")
	}
	return strings.TrimSpace(respBody.Choices[0].Message.Content), nil
}
