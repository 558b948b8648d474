package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sync"
)

// FakeEmbedder is a deterministic, offline embedder. A text always
// maps to the same unit vector, either a fixture registered with Set
// or one derived from the text's hash. It also counts calls so tests
// can assert that the embedding cache actually short-circuits work.
type FakeEmbedder struct {
	dim int

	// Err, when set, is returned by every embed call.
	Err error

	mu            sync.Mutex
	fixtures      map[string][]float32
	DocumentCalls int
	QueryCalls    int
}

// NewFakeEmbedder creates a FakeEmbedder producing vectors of dim.
func NewFakeEmbedder(dim int) *FakeEmbedder {
	return &FakeEmbedder{
		dim:      dim,
		fixtures: make(map[string][]float32),
	}
}

// Set registers a fixed vector for a text. The vector is normalized
// on the way in.
func (f *FakeEmbedder) Set(text string, vector []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fixtures[text] = normalize(vector)
}

func (f *FakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DocumentCalls++
	if f.Err != nil {
		return nil, f.Err
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = f.vectorFor(text)
	}
	return vectors, nil
}

func (f *FakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.QueryCalls++
	if f.Err != nil {
		return nil, f.Err
	}
	return f.vectorFor(text), nil
}

func (f *FakeEmbedder) Dimension() int { return f.dim }

// vectorFor must be called with mu held.
func (f *FakeEmbedder) vectorFor(text string) []float32 {
	if v, ok := f.fixtures[text]; ok {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}

	sum := sha256.Sum256([]byte(text))
	vector := make([]float32, f.dim)
	for i := range vector {
		word := binary.BigEndian.Uint32(sum[(i*4)%28 : (i*4)%28+4])
		vector[i] = float32(word%1000)/500 - 1
	}
	return normalize(vector)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		out := make([]float32, len(v))
		if len(out) > 0 {
			out[0] = 1
		}
		return out
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
