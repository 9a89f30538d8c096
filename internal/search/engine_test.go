package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katanaquant/ragengine/internal/domain"
	"github.com/katanaquant/ragengine/internal/store"
)

// fakeBackend embeds store.Backend so only the methods HybridSearcher
// actually calls need overriding.
type fakeBackend struct {
	store.Backend
	vector   []domain.SearchResult
	keyword  []domain.SearchResult
	vecErr   error
	wordErr  error
	vecCalls int
}

func (f *fakeBackend) VectorSearch(_ context.Context, _ []float32, topK int) ([]domain.SearchResult, error) {
	f.vecCalls++
	if f.vecErr != nil {
		return nil, f.vecErr
	}
	if len(f.vector) > topK {
		return f.vector[:topK], nil
	}
	return f.vector, nil
}

func (f *fakeBackend) LexicalSearch(_ context.Context, _ string, topK int) ([]domain.SearchResult, error) {
	if f.wordErr != nil {
		return nil, f.wordErr
	}
	if len(f.keyword) > topK {
		return f.keyword[:topK], nil
	}
	return f.keyword, nil
}

func TestSearchFusesVectorAndKeywordWhenHybrid(t *testing.T) {
	backend := &fakeBackend{
		vector:  []domain.SearchResult{result(1, 0.9), result(2, 0.8)},
		keyword: []domain.SearchResult{result(2, 3.0), result(1, 2.0)},
	}
	hs := New(backend, DefaultK0, nil, nil)

	results, err := hs.Search(context.Background(), "query", []float32{1, 0}, 5, 0, true)

	require.NoError(t, err)
	require.Len(t, results, 2)
	// chunk 2 is rank1 keyword + rank2 vector; chunk 1 is rank1 vector + rank2 keyword. Tied score, lower ID wins.
	assert.Equal(t, int64(1), results[0].ChunkID)
}

func TestSearchSkipsKeywordLegWhenNotHybrid(t *testing.T) {
	backend := &fakeBackend{
		vector:  []domain.SearchResult{result(1, 0.9), result(2, 0.8)},
		keyword: []domain.SearchResult{result(3, 9.0)},
	}
	hs := New(backend, DefaultK0, nil, nil)

	results, err := hs.Search(context.Background(), "query", []float32{1, 0}, 1, 0, false)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ChunkID)
}

func TestSearchAppliesThresholdToVectorLeg(t *testing.T) {
	backend := &fakeBackend{
		vector: []domain.SearchResult{result(1, 0.9), result(2, 0.4)},
	}
	hs := New(backend, DefaultK0, nil, nil)

	results, err := hs.Search(context.Background(), "", nil, 5, 0.5, false)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ChunkID)
}

func TestSearchPropagatesVectorSearchError(t *testing.T) {
	backend := &fakeBackend{vecErr: assert.AnError}
	hs := New(backend, DefaultK0, nil, nil)

	_, err := hs.Search(context.Background(), "q", nil, 5, 0, true)

	assert.Error(t, err)
}

func TestSearchPropagatesLexicalSearchError(t *testing.T) {
	backend := &fakeBackend{wordErr: assert.AnError}
	hs := New(backend, DefaultK0, nil, nil)

	_, err := hs.Search(context.Background(), "q", nil, 5, 0, true)

	assert.Error(t, err)
}

type refreshingBackend struct {
	fakeBackend
	refreshed bool
	err       error
}

func (r *refreshingBackend) RefreshKeywordIndex(_ context.Context) error {
	r.refreshed = true
	return r.err
}

func TestRefreshKeywordIndexDelegatesWhenSupported(t *testing.T) {
	backend := &refreshingBackend{}
	hs := New(backend, DefaultK0, nil, nil)

	err := hs.RefreshKeywordIndex(context.Background())

	require.NoError(t, err)
	assert.True(t, backend.refreshed)
}

func TestRefreshKeywordIndexNoopWhenUnsupported(t *testing.T) {
	backend := &fakeBackend{}
	hs := New(backend, DefaultK0, nil, nil)

	err := hs.RefreshKeywordIndex(context.Background())

	assert.NoError(t, err)
}
