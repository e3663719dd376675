package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"docqa-retriever/internal/domain"
)

// QuestionCache memoizes per-question retrieval results for a
// (fingerprint, question) pair so a repeated question against an
// unchanged document skips the pipeline entirely. Error and
// rerank-fallback results are never cached.
type QuestionCache struct {
	lru *lru.LRU[string, domain.RetrievalResult]
}

// NewQuestionCache creates the in-process LRU. size bounds the entry
// count, ttl bounds entry age.
func NewQuestionCache(size int, ttl time.Duration) *QuestionCache {
	return &QuestionCache{lru: lru.NewLRU[string, domain.RetrievalResult](size, nil, ttl)}
}

// Get returns a cached result for the (fingerprint, question) pair.
func (c *QuestionCache) Get(fingerprint, question string) (domain.RetrievalResult, bool) {
	return c.lru.Get(key(fingerprint, question))
}

// Add stores a clean result. Callers must not add error or fallback
// results; those should be recomputed on the next ask.
func (c *QuestionCache) Add(fingerprint, question string, result domain.RetrievalResult) {
	if result.Err != nil || result.RerankFallback {
		return
	}
	c.lru.Add(key(fingerprint, question), result)
}

func key(fingerprint, question string) string {
	sum := sha256.Sum256([]byte(question))
	return fingerprint + ":" + hex.EncodeToString(sum[:])
}
