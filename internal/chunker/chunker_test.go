package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemanticProducesOneChunkForSmallFile(t *testing.T) {
	// Scenario S1: "alpha beta gamma\n\ndelta epsilon" with
	// {target_size: 1024, min_size: 10, overlap: 0, semantic: true}
	// fits comfortably in one semantic chunk.
	c := New(Settings{TargetSize: 1024, MinSize: 10, Overlap: 0, Semantic: true})
	chunks := c.Chunk([]Page{{Text: "alpha beta gamma\n\ndelta epsilon"}})
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, "alpha beta gamma\n\ndelta epsilon", chunks[0].Content)
}

func TestSemanticSplitsWhenParagraphsExceedTargetSize(t *testing.T) {
	c := New(Settings{TargetSize: 20, MinSize: 1, Overlap: 0, Semantic: true})
	chunks := c.Chunk([]Page{{Text: "alpha beta gamma\n\ndelta epsilon zeta"}})
	require.Len(t, chunks, 2)
	assert.Equal(t, "alpha beta gamma", chunks[0].Content)
	assert.Equal(t, "delta epsilon zeta", chunks[1].Content)
}

func TestSemanticDropsChunksBelowMinSize(t *testing.T) {
	c := New(Settings{TargetSize: 1024, MinSize: 50, Overlap: 0, Semantic: true})
	chunks := c.Chunk([]Page{{Text: "short"}})
	assert.Empty(t, chunks)
}

func TestSemanticFallsBackToFixedWhenParagraphsAreEmpty(t *testing.T) {
	c := New(Settings{TargetSize: 5, MinSize: 1, Overlap: 0, Semantic: true})
	// Whitespace-only text has no non-empty paragraph, so the semantic
	// pass yields nothing and the fixed pass is tried as a fallback;
	// it also yields nothing, since trimmed windows are empty too.
	chunks := c.Chunk([]Page{{Text: "\n\n\n\n"}})
	assert.Empty(t, chunks)
}

func TestSemanticKeepsOversizedSingleParagraphWhole(t *testing.T) {
	// A single paragraph longer than target_size is not split further
	// by the semantic strategy - it becomes its own chunk, matching
	// the greedy-pack-then-emit algorithm.
	c := New(Settings{TargetSize: 5, MinSize: 1, Overlap: 0, Semantic: true})
	chunks := c.Chunk([]Page{{Text: strings.Repeat("x", 12)}})
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0].Content, 12)
}

func TestFixedSlidingWindowWithOverlap(t *testing.T) {
	c := New(Settings{TargetSize: 10, MinSize: 1, Overlap: 3, Semantic: false})
	text := strings.Repeat("a", 25)
	chunks := c.Chunk([]Page{{Text: text}})
	require.True(t, len(chunks) >= 3)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Content), 10)
	}
}

func TestChunkIndexIsSequentialAcrossPages(t *testing.T) {
	c := New(Settings{TargetSize: 1024, MinSize: 1, Overlap: 0, Semantic: true})
	p1, p2 := 1, 2
	chunks := c.Chunk([]Page{
		{Text: "first page content", Page: &p1},
		{Text: "second page content", Page: &p2},
	})
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, 1, chunks[1].ChunkIndex)
	assert.Equal(t, &p1, chunks[0].Page)
	assert.Equal(t, &p2, chunks[1].Page)
}
