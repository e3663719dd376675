package usecase

import (
	"context"

	"docqa-retriever/internal/domain"
)

// PrepareDocumentUsecase is the ingestion entry point: acquire the
// document, decide its retrieval strategy, and (for hybrid documents)
// build the indexes so subsequent questions hit warm state.
type PrepareDocumentUsecase interface {
	Execute(ctx context.Context, source string) (*domain.RetrievalPlan, error)
}

type prepareDocumentUsecase struct {
	sessions *sessionManager
}

// NewPrepareDocumentUsecase creates a PrepareDocumentUsecase sharing
// session state with the retrieve usecase from the same Pipeline.
func NewPrepareDocumentUsecase(sessions *sessionManager) PrepareDocumentUsecase {
	return &prepareDocumentUsecase{sessions: sessions}
}

func (u *prepareDocumentUsecase) Execute(ctx context.Context, source string) (*domain.RetrievalPlan, error) {
	sess, err := u.sessions.Acquire(ctx, source)
	if err != nil {
		return nil, err
	}
	return sess.plan, nil
}
