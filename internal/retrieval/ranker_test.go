package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankSortsBySimilarity(t *testing.T) {
	ranked := Rank(
		[]string{"far", "near", "middle"},
		[]float32{0.3, 0.05, 0.2},
		nil,
		0.5,
	)

	require.Len(t, ranked.Chunks, 3)
	assert.Equal(t, "near", ranked.Chunks[0].Text)
	assert.Equal(t, "middle", ranked.Chunks[1].Text)
	assert.Equal(t, "far", ranked.Chunks[2].Text)
	assert.InDelta(t, 0.95, ranked.Chunks[0].Similarity, 1e-4)
}

func TestRankPrunesBelowThreshold(t *testing.T) {
	ranked := Rank(
		[]string{"relevant", "irrelevant"},
		[]float32{0.1, 0.6},
		nil,
		0.65,
	)

	require.Len(t, ranked.Chunks, 1)
	assert.Equal(t, "relevant", ranked.Chunks[0].Text)
	assert.NotContains(t, ranked.Context, "irrelevant")
}

func TestRankDedupIdenticalText(t *testing.T) {
	ranked := Rank(
		[]string{"same text", "  same text  ", "other"},
		[]float32{0.05, 0.1, 0.15},
		nil,
		0.5,
	)

	require.Len(t, ranked.Chunks, 2)
	assert.Equal(t, "same text", ranked.Chunks[0].Text)
	assert.Equal(t, "other", ranked.Chunks[1].Text)
}

func TestRankDedupOverlapPrefix(t *testing.T) {
	// The higher-similarity chunk is longer than the prefix window
	// and its opening characters open the lower-similarity chunk too,
	// which is the signature of two chunks sharing an overlap region.
	base := strings.Repeat("overlap region text ", 4) // 80 chars
	earlier := base + "and the rest of the first chunk"
	later := base[:50] + " continued differently in the second chunk"

	ranked := Rank(
		[]string{earlier, later},
		[]float32{0.05, 0.1},
		nil,
		0.5,
	)

	require.Len(t, ranked.Chunks, 1)
	assert.Equal(t, earlier, ranked.Chunks[0].Text)
}

func TestRankDedupSharedOpeningDivergentTail(t *testing.T) {
	// Two chunks restating the same sentence with different endings
	// collapse to the higher-similarity one.
	first := "The quick brown fox jumps over the lazy dog and keeps running"
	second := "The quick brown fox jumps over the lazy dog and stops"

	ranked := Rank(
		[]string{first, second},
		[]float32{0.05, 0.1},
		nil,
		0.5,
	)

	require.Len(t, ranked.Chunks, 1)
	assert.Equal(t, first, ranked.Chunks[0].Text)
}

func TestRankShortChunksNotPrefixDeduped(t *testing.T) {
	// A kept chunk at or under the prefix window never triggers the
	// prefix rule.
	ranked := Rank(
		[]string{"short", "short but then this one keeps going much longer"},
		[]float32{0.05, 0.1},
		nil,
		0.5,
	)

	assert.Len(t, ranked.Chunks, 2)
}

func TestRankAssemblesContext(t *testing.T) {
	ranked := Rank(
		[]string{"first excerpt", "second excerpt"},
		[]float32{0.05, 0.1},
		[]map[string]string{{"source": "a.md"}, {"source": "b.md"}},
		0.5,
	)

	assert.True(t, strings.HasPrefix(ranked.Context, ContextBanner))
	assert.Contains(t, ranked.Context, "first excerpt\n\nsecond excerpt")
	assert.Equal(t, "a.md", ranked.Chunks[0].Metadata["source"])
}

func TestRankEmptySurvivors(t *testing.T) {
	ranked := Rank(
		[]string{"too far away", "   "},
		[]float32{0.9, 0.1},
		nil,
		0.65,
	)

	assert.Empty(t, ranked.Chunks)
	assert.Equal(t, "", ranked.Context)
}
