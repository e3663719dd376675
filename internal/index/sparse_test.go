package index_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa-retriever/internal/domain"
	"docqa-retriever/internal/index"
)

func chunksFrom(texts ...string) []domain.Chunk {
	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{Index: i, Text: text}
	}
	return chunks
}

func TestTerms_CaseFoldedTokens(t *testing.T) {
	terms := index.Terms("The QUICK brown Fox, it's 42 degrees!")
	assert.Equal(t, []string{"the", "quick", "brown", "fox", "it's", "42", "degrees"}, terms)
}

func TestBM25_UnknownTermsScoreZero(t *testing.T) {
	ix := index.BuildBM25(chunksFrom("alpha beta", "beta gamma"))
	scores := ix.Score([]string{"zeppelin", "quark"})
	assert.Empty(t, scores, "terms absent from the corpus must contribute zero, not error")
}

func TestBM25_MatchingChunkRanksHigher(t *testing.T) {
	ix := index.BuildBM25(chunksFrom(
		"the cat sat on the mat",
		"a cat chases dogs in the park",
		"quantum entanglement of photons",
	))
	scores := ix.Score(index.Terms("cat mat"))
	require.Contains(t, scores, 0)
	assert.NotContains(t, scores, 2)
	assert.Greater(t, scores[0], scores[1])
}

func TestBM25_TermFrequencySaturation(t *testing.T) {
	// Same length, increasing occurrences of the query term. The gain
	// per extra occurrence must shrink.
	ix := index.BuildBM25(chunksFrom(
		"cat a b c d e f g",
		"cat cat b c d e f g",
		"cat cat cat c d e f g",
	))
	scores := ix.Score([]string{"cat"})
	require.Len(t, scores, 3)
	gain1 := scores[1] - scores[0]
	gain2 := scores[2] - scores[1]
	assert.Greater(t, gain1, 0.0)
	assert.Greater(t, gain2, 0.0)
	assert.Less(t, gain2, gain1, "repeated occurrences must have diminishing returns")
}

func TestBM25_LengthNormalization(t *testing.T) {
	// One occurrence each, but chunk 1 is much longer than the corpus
	// average and must be penalized.
	long := "cat " + strings.Repeat("filler ", 60)
	ix := index.BuildBM25(chunksFrom("cat and mouse", long, "plain text here"))
	scores := ix.Score([]string{"cat"})
	require.Contains(t, scores, 0)
	require.Contains(t, scores, 1)
	assert.Greater(t, scores[0], scores[1])
}

func TestBM25_CaseFoldingMatchesChunker(t *testing.T) {
	ix := index.BuildBM25(chunksFrom("The Treaty Of Westphalia"))
	scores := ix.Score(index.Terms("TREATY westphalia"))
	assert.Contains(t, scores, 0)
	assert.Greater(t, scores[0], 0.0)
}
