package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katanaquant/ragengine/internal/domain"
	"github.com/katanaquant/ragengine/internal/embed"
)

type stubSearcher struct {
	calls   int
	results []domain.SearchResult
}

func (s *stubSearcher) Search(ctx context.Context, queryText string, embedding []float32, topK int, threshold float64, useHybrid bool) ([]domain.SearchResult, error) {
	s.calls++
	return s.results, nil
}

func page(n int) *int { return &n }

func TestExecutorRunEmbedsSearchesAndFormats(t *testing.T) {
	searcher := &stubSearcher{results: []domain.SearchResult{
		{Content: "hello world", FilePath: "a.md", Page: page(2), Score: 0.9},
	}}
	exec, err := New(embed.NewStatic(), searcher, 16, nil)
	require.NoError(t, err)

	results, err := exec.Run(context.Background(), Request{Text: "hello", TopK: 5, UseHybrid: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "hello world", results[0].Content)
	assert.Equal(t, "a.md", results[0].Source)
	assert.Equal(t, 2, *results[0].Page)
	assert.Equal(t, 1, searcher.calls)
}

func TestExecutorCachesIdenticalRequests(t *testing.T) {
	searcher := &stubSearcher{results: []domain.SearchResult{{Content: "x", FilePath: "a.md", Score: 0.5}}}
	exec, err := New(embed.NewStatic(), searcher, 16, nil)
	require.NoError(t, err)

	req := Request{Text: "hello", TopK: 5}
	_, err = exec.Run(context.Background(), req)
	require.NoError(t, err)
	_, err = exec.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, searcher.calls)
	assert.Equal(t, 1, exec.CacheLen())
}

func TestExecutorDistinctRequestsBypassCache(t *testing.T) {
	searcher := &stubSearcher{results: []domain.SearchResult{{Content: "x", FilePath: "a.md", Score: 0.5}}}
	exec, err := New(embed.NewStatic(), searcher, 16, nil)
	require.NoError(t, err)

	_, err = exec.Run(context.Background(), Request{Text: "hello", TopK: 5})
	require.NoError(t, err)
	_, err = exec.Run(context.Background(), Request{Text: "hello", TopK: 10})
	require.NoError(t, err)

	assert.Equal(t, 2, searcher.calls)
}

func TestExecutorInvalidateAllClearsCache(t *testing.T) {
	searcher := &stubSearcher{results: []domain.SearchResult{{Content: "x", FilePath: "a.md", Score: 0.5}}}
	exec, err := New(embed.NewStatic(), searcher, 16, nil)
	require.NoError(t, err)

	req := Request{Text: "hello", TopK: 5}
	_, err = exec.Run(context.Background(), req)
	require.NoError(t, err)
	exec.InvalidateAll()
	_, err = exec.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 2, searcher.calls)
	assert.Equal(t, 1, exec.CacheLen())
}

func TestExecutorDefaultsTopKWhenNonPositive(t *testing.T) {
	searcher := &stubSearcher{}
	exec, err := New(embed.NewStatic(), searcher, 16, nil)
	require.NoError(t, err)

	_, err = exec.Run(context.Background(), Request{Text: "hello", TopK: 0})
	require.NoError(t, err)
}
