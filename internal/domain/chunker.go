package domain

import (
	"fmt"
	"strings"
	"unicode"
)

// Chunker defines the interface for splitting cleaned text into chunks.
type Chunker interface {
	Chunk(text string) ([]Chunk, error)
}

type tokenChunker struct {
	chunkSize int // tokens per chunk
	overlap   int // tokens shared between consecutive chunks
}

// NewTokenChunker creates a sliding-window chunker over whitespace
// tokens. Consecutive chunks overlap by exactly overlap tokens; the
// last chunk may be shorter than chunkSize. Chunking is deterministic
// for a given (text, chunkSize, overlap).
func NewTokenChunker(chunkSize, overlap int) (Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidInput, chunkSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must be non-negative, got %d", ErrInvalidInput, overlap)
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidInput, overlap, chunkSize)
	}
	return &tokenChunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// tokenSpan records a token's byte offsets within the cleaned text.
type tokenSpan struct {
	start int
	end   int
}

func (c *tokenChunker) Chunk(text string) ([]Chunk, error) {
	spans := tokenSpans(text)
	if len(spans) == 0 {
		return nil, fmt.Errorf("%w: document contains no tokens", ErrInvalidInput)
	}

	step := c.chunkSize - c.overlap
	var chunks []Chunk
	for start := 0; ; start += step {
		end := start + c.chunkSize
		if end > len(spans) {
			end = len(spans)
		}
		first, last := spans[start], spans[end-1]
		chunks = append(chunks, Chunk{
			Index:       len(chunks),
			Text:        text[first.start:last.end],
			StartOffset: first.start,
			EndOffset:   last.end,
		})
		if end == len(spans) {
			break
		}
	}
	return chunks, nil
}

// tokenSpans locates maximal runs of non-space bytes, keeping the
// original inter-token whitespace recoverable via offsets.
func tokenSpans(text string) []tokenSpan {
	var spans []tokenSpan
	inToken := false
	start := 0
	for i, r := range text {
		if unicode.IsSpace(r) {
			if inToken {
				spans = append(spans, tokenSpan{start: start, end: i})
				inToken = false
			}
			continue
		}
		if !inToken {
			start = i
			inToken = true
		}
	}
	if inToken {
		spans = append(spans, tokenSpan{start: start, end: len(text)})
	}
	return spans
}

// CleanText normalizes raw extracted text: unifies newlines and
// collapses runs of blank lines and horizontal whitespace.
func CleanText(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	var cleaned []string
	blank := 0
	for _, line := range lines {
		trimmed := strings.Join(strings.Fields(line), " ")
		if trimmed == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		cleaned = append(cleaned, trimmed)
	}
	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}
