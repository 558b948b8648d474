package retrieval

import (
	"sort"
	"strings"
)

// ContextBanner prefixes every non-empty assembled context.
const ContextBanner = "The following document excerpts may be relevant to the question:"

// prefixDedupLen is the prefix window used to collapse chunks that
// overlap through the chunker's overlap region or restate the same
// opening sentence with a different tail.
const prefixDedupLen = 40

// RankedChunk is one surviving chunk after threshold pruning and
// deduplication.
type RankedChunk struct {
	Text       string
	Similarity float32
	Metadata   map[string]string
}

// RankedContext is the assembled retrieval result.
type RankedContext struct {
	Chunks []RankedChunk
	// Context is the banner plus surviving chunk texts joined by
	// blank lines, or "" when nothing survived.
	Context string
}

// Rank converts distances to similarities, prunes below threshold,
// sorts by similarity descending, deduplicates near-identical chunks
// and assembles the context string. The three slices are parallel.
func Rank(texts []string, distances []float32, metadatas []map[string]string, threshold float32) RankedContext {
	type scored struct {
		text       string
		similarity float32
		metadata   map[string]string
	}

	var candidates []scored
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		similarity := 1 - distances[i]
		if similarity < threshold {
			continue
		}
		var metadata map[string]string
		if i < len(metadatas) {
			metadata = metadatas[i]
		}
		candidates = append(candidates, scored{text, similarity, metadata})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].similarity > candidates[j].similarity
	})

	var survivors []RankedChunk
	for _, c := range candidates {
		if isDuplicate(c.text, survivors) {
			continue
		}
		survivors = append(survivors, RankedChunk{
			Text:       c.text,
			Similarity: c.similarity,
			Metadata:   c.metadata,
		})
	}

	return RankedContext{
		Chunks:  survivors,
		Context: assemble(survivors),
	}
}

// isDuplicate drops a chunk when an already-kept higher-similarity
// chunk has the identical trimmed text, or when a kept chunk longer
// than the prefix window opens with the same prefixDedupLen
// characters as this chunk. The prefix rule collapses consecutive
// chunks that repeat each other's overlap region.
func isDuplicate(text string, kept []RankedChunk) bool {
	trimmed := strings.TrimSpace(text)
	for _, k := range kept {
		keptTrimmed := strings.TrimSpace(k.Text)
		if trimmed == keptTrimmed {
			return true
		}
		if len(keptTrimmed) > prefixDedupLen && strings.HasPrefix(trimmed, keptTrimmed[:prefixDedupLen]) {
			return true
		}
	}
	return false
}

func assemble(chunks []RankedChunk) string {
	if len(chunks) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(ContextBanner)
	for _, c := range chunks {
		b.WriteString("\n\n")
		b.WriteString(c.Text)
	}
	return b.String()
}
