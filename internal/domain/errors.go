package domain

import "errors"

// Sentinel errors for the retrieval core. Callers classify failures
// with errors.Is and wrap with fmt.Errorf("...: %w", err).
var (
	// ErrInvalidInput marks malformed chunking parameters or an empty document.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAcquisition marks an unreachable or unparseable document source.
	// Surfaced as-is; the core performs no retries.
	ErrAcquisition = errors.New("document acquisition failed")

	// ErrModelUnavailable marks an embedding or reranking capability failure.
	// Fatal for index builds, recoverable (fused-order fallback) for reranking.
	ErrModelUnavailable = errors.New("model capability unavailable")

	// ErrCacheIntegrity marks a chunk/embedding count mismatch on cache read.
	// Treated as a cache miss, never propagated to callers.
	ErrCacheIntegrity = errors.New("cache record integrity violation")
)
