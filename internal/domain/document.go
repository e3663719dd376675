package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Chunk represents a single token-bounded segment of a document.
type Chunk struct {
	Index       int               // Sequence number (0-indexed)
	Text        string            // The actual text content
	StartOffset int               // Byte offset of the first token in the cleaned text
	EndOffset   int               // Byte offset just past the last token
	Metadata    map[string]string // Source metadata (page, slide, section)
}

// Document is an ingested source, identified by its content fingerprint.
// Documents are immutable once created.
type Document struct {
	Fingerprint string
	Source      string
	Text        string
	Chunks      []Chunk
}

// EmbeddingDimension is the expected width of embedding vectors.
const EmbeddingDimension = 1024

// Fingerprint derives the stable content identifier for a cleaned
// document text (SHA-256 hex).
func Fingerprint(cleaned string) string {
	sum := sha256.Sum256([]byte(cleaned))
	return hex.EncodeToString(sum[:])
}

// EstimateTokens approximates the token count of a text by counting
// whitespace-delimited fields. Good enough for the small-document
// threshold decision without shipping a tokenizer model.
func EstimateTokens(text string) int {
	return len(strings.Fields(text))
}
