// Package embed turns chunk text into vectors. Two implementations are
// provided: a dependency-free deterministic hash embedder for tests
// and offline use, and an HTTP client for a local Ollama server. Both
// satisfy the same Embedder contract so the pipeline's embed stage
// never needs to know which one is active.
package embed

import (
	"context"
	"math"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Available(ctx context.Context) bool
	Close() error
}

func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) / magnitude)
	}
	return out
}
