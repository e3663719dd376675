package domain

// Strategy is the per-document retrieval decision.
type Strategy string

const (
	// StrategyFullText bypasses chunk retrieval; the downstream
	// generation step receives the whole document.
	StrategyFullText Strategy = "full_text"
	// StrategyHybridRAG runs the full hybrid retrieval pipeline.
	StrategyHybridRAG Strategy = "hybrid_rag"
)

// RetrievalPlan is the cached per-document strategy decision.
type RetrievalPlan struct {
	Strategy      Strategy
	Reason        string
	TokenEstimate int
}

// CandidateResult carries one chunk through fusion and reranking.
// Transient, per-question.
type CandidateResult struct {
	ChunkIndex  int
	DenseScore  float64 // normalized dense contribution in [0,1]
	SparseScore float64 // normalized sparse contribution in [0,1]
	FusedScore  float64
	RerankScore float64
	Reranked    bool
}

// RetrievedChunk is one ranked context span handed to answer generation.
type RetrievedChunk struct {
	ChunkIndex int
	Text       string
	Score      float64
}

// RetrievalResult is the per-question output of the batch orchestrator:
// ranked context chunks, a full-text marker, or an error marker.
type RetrievalResult struct {
	Question       string
	Strategy       Strategy
	Contexts       []RetrievedChunk // set for StrategyHybridRAG
	FullText       string           // set for StrategyFullText
	RerankFallback bool             // reranker was unavailable; order is the fused order
	Err            error            // per-question failure, isolated from the rest of the batch
}
