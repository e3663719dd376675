package index

import (
	"math"

	"docqa-retriever/internal/domain"
)

// BM25 constants. k1 controls term-frequency saturation, b controls
// document-length normalization against the corpus average.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// BM25Index is a term-frequency ranking model over one document's
// chunk set treated as a mini-corpus. Cheap to rebuild, never
// persisted independently of its document.
type BM25Index struct {
	k1        float64
	b         float64
	termFreqs []map[string]int
	docLens   []float64
	avgDocLen float64
	docFreq   map[string]int
	numDocs   int
}

// BuildBM25 constructs the sparse index for a chunk set with the
// default k1/b parameterization.
func BuildBM25(chunks []domain.Chunk) *BM25Index {
	return BuildBM25WithParams(chunks, DefaultK1, DefaultB)
}

// BuildBM25WithParams constructs the sparse index with explicit
// saturation and length-normalization constants.
func BuildBM25WithParams(chunks []domain.Chunk, k1, b float64) *BM25Index {
	ix := &BM25Index{
		k1:        k1,
		b:         b,
		termFreqs: make([]map[string]int, len(chunks)),
		docLens:   make([]float64, len(chunks)),
		docFreq:   make(map[string]int),
		numDocs:   len(chunks),
	}

	var totalLen float64
	for i, chunk := range chunks {
		terms := Terms(chunk.Text)
		tf := make(map[string]int, len(terms))
		for _, term := range terms {
			tf[term]++
		}
		for term := range tf {
			ix.docFreq[term]++
		}
		ix.termFreqs[i] = tf
		ix.docLens[i] = float64(len(terms))
		totalLen += float64(len(terms))
	}
	if ix.numDocs > 0 {
		ix.avgDocLen = totalLen / float64(ix.numDocs)
	}
	return ix
}

// Score computes BM25 scores for the query terms. Terms absent from
// the corpus contribute zero. Chunks matching no term are omitted.
func (ix *BM25Index) Score(queryTerms []string) map[int]float64 {
	scores := make(map[int]float64)
	for _, term := range queryTerms {
		df, ok := ix.docFreq[term]
		if !ok {
			continue
		}
		idf := math.Log(1 + (float64(ix.numDocs)-float64(df)+0.5)/(float64(df)+0.5))
		for i, tf := range ix.termFreqs {
			freq := float64(tf[term])
			if freq == 0 {
				continue
			}
			norm := ix.k1 * (1 - ix.b + ix.b*ix.docLens[i]/ix.avgDocLen)
			scores[i] += idf * (freq * (ix.k1 + 1)) / (freq + norm)
		}
	}
	return scores
}
