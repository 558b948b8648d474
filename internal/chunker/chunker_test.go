package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips null bytes and control characters",
			in:   "hello\x00 world\x07",
			want: "hello world",
		},
		{
			name: "collapses horizontal whitespace",
			in:   "a  \t  b",
			want: "a b",
		},
		{
			name: "collapses blank line runs",
			in:   "a\n\n\n\n\nb",
			want: "a\n\nb",
		},
		{
			name: "normalizes crlf line endings",
			in:   "para one\r\n\r\npara two\r\n",
			want: "para one\n\npara two",
		},
		{
			name: "normalizes bare carriage returns",
			in:   "line one\rline two",
			want: "line one\nline two",
		},
		{
			name: "trims surrounding whitespace",
			in:   "  \n text \n ",
			want: "text",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestSplitEmpty(t *testing.T) {
	s := New()
	assert.Nil(t, s.Split(""))
	assert.Nil(t, s.Split("   \n\t  "))
}

func TestSplitShortContent(t *testing.T) {
	s := New(WithChunkSize(500), WithOverlap(100))

	chunks := s.Split("a short paragraph")
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short paragraph", chunks[0])
}

func TestSplitRespectsParagraphs(t *testing.T) {
	para1 := strings.Repeat("alpha ", 20)  // ~120 chars
	para2 := strings.Repeat("beta ", 20)   // ~100 chars
	para3 := strings.Repeat("gamma ", 20)  // ~120 chars
	text := para1 + "\n\n" + para2 + "\n\n" + para3

	s := New(WithChunkSize(150), WithOverlap(0))
	chunks := s.Split(text)

	require.Greater(t, len(chunks), 1)
	// Paragraph boundaries survive: no chunk mixes alpha and gamma.
	for _, c := range chunks {
		if strings.Contains(c, "alpha") {
			assert.NotContains(t, c, "gamma")
		}
	}
}

func TestSplitChunkSizeBound(t *testing.T) {
	text := strings.Repeat("one two three four five. ", 200)

	s := New(WithChunkSize(300), WithOverlap(50))
	chunks := s.Split(text)

	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		// Overlap may push a chunk past the target by at most the
		// overlap length.
		assert.LessOrEqualf(t, len(c), 300+50, "chunk %d too long", i)
		assert.NotEmpty(t, c)
	}
}

func TestSplitNoSeparators(t *testing.T) {
	// Content with no separators at all falls back to hard cuts.
	text := strings.Repeat("x", 1000)

	s := New(WithChunkSize(300), WithOverlap(0))
	chunks := s.Split(text)

	require.Len(t, chunks, 4)
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestSplitOverlap(t *testing.T) {
	text := strings.Repeat("unique words appear here now. ", 60)

	const overlap = 40
	s := New(WithChunkSize(200), WithOverlap(overlap))
	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	merged := reconstruct(chunks, overlap)
	for i := 1; i < len(chunks); i++ {
		want := merged[i-1]
		if len(want) > overlap {
			want = want[len(want)-overlap:]
		}
		assert.Truef(t, strings.HasPrefix(chunks[i], want),
			"chunk %d does not repeat the tail of chunk %d", i, i-1)
	}
}

// Round-trip: rejoining chunks minus overlap duplication reconstructs
// the cleaned input exactly.
func TestSplitRoundTrip(t *testing.T) {
	text := "First   sentence here.  Second one!\n\nA new\tparagraph with more text. " +
		strings.Repeat("Filler sentence with several words in it. ", 40)

	const overlap = 60
	s := New(WithChunkSize(250), WithOverlap(overlap))
	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	merged := reconstruct(chunks, overlap)
	assert.Equal(t, Clean(text), strings.Join(merged, ""))
}

// reconstruct strips the overlap prefixes back off, recovering the
// pre-overlap chunk sequence.
func reconstruct(chunks []string, overlap int) []string {
	merged := make([]string, len(chunks))
	merged[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		k := overlap
		if len(merged[i-1]) < k {
			k = len(merged[i-1])
		}
		merged[i] = chunks[i][k:]
	}
	return merged
}

func TestNewClampsOverlap(t *testing.T) {
	s := New(WithChunkSize(100), WithOverlap(100))
	assert.Equal(t, 25, s.overlap)
}
