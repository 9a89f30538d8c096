package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katanaquant/ragengine/internal/domain"
)

func result(id int64, score float64) domain.SearchResult {
	return domain.SearchResult{ChunkID: id, Content: "c", FilePath: "f", Score: score}
}

func TestFuseRanksChunksInBothListsHigher(t *testing.T) {
	vector := []domain.SearchResult{result(3, 0.95), result(1, 0.90), result(4, 0.85)}
	keyword := []domain.SearchResult{result(1, 2.5), result(2, 2.0), result(3, 1.5)}

	fused := fuse(vector, keyword, DefaultK0, 10)

	require.Len(t, fused, 4)
	// chunk 1 appears rank 2 in vector, rank 1 in keyword: 1/62 + 1/61
	want1 := 1.0/62 + 1.0/61
	assert.InDelta(t, want1, fused[0].Score, 1e-9)
	assert.Equal(t, int64(1), fused[0].ChunkID)
}

func TestFuseMissingFromOneListContributesZero(t *testing.T) {
	vector := []domain.SearchResult{result(1, 0.9)}
	keyword := []domain.SearchResult{}

	fused := fuse(vector, keyword, DefaultK0, 10)

	require.Len(t, fused, 1)
	assert.InDelta(t, 1.0/61, fused[0].Score, 1e-9)
}

func TestFuseBreaksTiesByChunkIDAscending(t *testing.T) {
	vector := []domain.SearchResult{result(5, 0.9)}
	keyword := []domain.SearchResult{result(2, 3.0)}

	fused := fuse(vector, keyword, DefaultK0, 10)

	// chunk 5 is rank 1 in vector only and chunk 2 is rank 1 in keyword
	// only, so both score 1/61 and the lower chunk ID comes first.
	require.Len(t, fused, 2)
	assert.Equal(t, int64(2), fused[0].ChunkID)
}

func TestFuseAppliesExplicitTieBreak(t *testing.T) {
	a := domain.SearchResult{ChunkID: 5, Score: 0}
	b := domain.SearchResult{ChunkID: 2, Score: 0}
	fused := []domain.SearchResult{a, b}
	sortByScoreDesc(fused)
	assert.Equal(t, int64(2), fused[0].ChunkID)
}

func TestFuseRespectsTopK(t *testing.T) {
	vector := []domain.SearchResult{result(1, 0.9), result(2, 0.8), result(3, 0.7)}
	fused := fuse(vector, nil, DefaultK0, 2)
	assert.Len(t, fused, 2)
}

func TestFuseDefaultsNonPositiveK0(t *testing.T) {
	vector := []domain.SearchResult{result(1, 0.9)}
	fused := fuse(vector, nil, 0, 10)
	assert.InDelta(t, 1.0/(DefaultK0+1), fused[0].Score, 1e-9)
}
