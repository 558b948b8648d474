// Package chunker splits normalized text into overlapping passages,
// the atomic unit embedded and retrieved by the rest of the pipeline.
package chunker

import (
	"regexp"
	"strings"
)

// DefaultChunkSize is the default target chunk length in characters.
const DefaultChunkSize = 800

// DefaultOverlap is the default number of characters repeated at the
// start of each following chunk.
const DefaultOverlap = 150

// defaultSeparators is the priority order for recursive splitting:
// paragraph break, line break, sentence-ending punctuation, space.
var defaultSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", " "}

var (
	controlChars = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")
	whitespace   = regexp.MustCompile(`[ \t]+`)
	blankLines   = regexp.MustCompile(`\n{3,}`)
)

// Clean normalizes line endings to LF, strips control characters and
// null bytes and collapses runs of horizontal whitespace. Applied to
// content before splitting so stored chunk text is stable across
// re-uploads of equivalent content.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = controlChars.ReplaceAllString(text, "")
	text = whitespace.ReplaceAllString(text, " ")
	text = blankLines.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Splitter performs recursive separator-based splitting.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithChunkSize sets the target chunk size in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between adjacent chunks in characters.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator priority list.
func WithSeparators(seps []string) Option {
	return func(s *Splitter) {
		if len(seps) > 0 {
			s.separators = seps
		}
	}
}

// New creates a Splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultOverlap,
		separators: defaultSeparators,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Overlap must leave room for fresh content in every chunk.
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}
	return s
}

// Split cleans the text and produces ordered overlapping chunks.
// Content shorter than the chunk size yields exactly one chunk; empty
// content yields zero chunks, which callers treat as nothing to embed.
func (s *Splitter) Split(text string) []string {
	cleaned := Clean(text)
	if cleaned == "" {
		return nil
	}
	if len(cleaned) <= s.chunkSize {
		return []string{cleaned}
	}

	pieces := s.split(cleaned, 0)
	merged := s.merge(pieces)
	return s.applyOverlap(merged)
}

// split recursively divides text on separators[level], sending any
// piece still longer than chunkSize down to the next separator level.
// Past the last separator the piece is hard-cut at chunkSize.
func (s *Splitter) split(text string, level int) []string {
	if len(text) <= s.chunkSize {
		return []string{text}
	}
	if level >= len(s.separators) {
		var out []string
		for len(text) > s.chunkSize {
			out = append(out, text[:s.chunkSize])
			text = text[s.chunkSize:]
		}
		if text != "" {
			out = append(out, text)
		}
		return out
	}

	sep := s.separators[level]
	parts := strings.SplitAfter(text, sep)

	var out []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		if len(part) > s.chunkSize {
			out = append(out, s.split(part, level+1)...)
		} else {
			out = append(out, part)
		}
	}
	return out
}

// merge greedily joins adjacent small pieces up to the chunk size.
// Pieces keep their trailing separators so that concatenating the
// merged chunks reproduces the cleaned input exactly.
func (s *Splitter) merge(pieces []string) []string {
	var out []string
	var current strings.Builder

	for _, piece := range pieces {
		if current.Len() > 0 && current.Len()+len(piece) > s.chunkSize {
			out = append(out, current.String())
			current.Reset()
		}
		current.WriteString(piece)
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}

// applyOverlap prepends the trailing overlap characters of each chunk
// to the start of the next one.
func (s *Splitter) applyOverlap(chunks []string) []string {
	if s.overlap == 0 || len(chunks) < 2 {
		return chunks
	}

	out := make([]string, len(chunks))
	out[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		tail := prev
		if len(prev) > s.overlap {
			tail = prev[len(prev)-s.overlap:]
		}
		out[i] = tail + chunks[i]
	}
	return out
}
