package hnsw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndSearchReturnsNearestFirst(t *testing.T) {
	idx := New(4, DefaultSettings())
	require.NoError(t, idx.Add("a", []float32{1, 0, 0, 0}))
	require.NoError(t, idx.Add("b", []float32{0, 1, 0, 0}))
	require.NoError(t, idx.Add("c", []float32{0.9, 0.1, 0, 0}))

	results, err := idx.Search([]float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "a", results[0].ID)
}

func TestAddRejectsWrongDimension(t *testing.T) {
	idx := New(4, DefaultSettings())
	err := idx.Add("a", []float32{1, 0})
	assert.Error(t, err)
}

func TestDeleteRemovesFromCountAndContains(t *testing.T) {
	idx := New(3, DefaultSettings())
	require.NoError(t, idx.Add("a", []float32{1, 0, 0}))
	assert.Equal(t, 1, idx.Count())
	assert.True(t, idx.Contains("a"))

	idx.Delete("a")
	assert.Equal(t, 0, idx.Count())
	assert.False(t, idx.Contains("a"))
}

func TestReAddingSameIDReplacesVector(t *testing.T) {
	idx := New(3, DefaultSettings())
	require.NoError(t, idx.Add("a", []float32{1, 0, 0}))
	require.NoError(t, idx.Add("a", []float32{0, 1, 0}))
	assert.Equal(t, 1, idx.Count())
}

func TestAllIDsExcludesDeletedEntries(t *testing.T) {
	idx := New(3, DefaultSettings())
	require.NoError(t, idx.Add("a", []float32{1, 0, 0}))
	require.NoError(t, idx.Add("b", []float32{0, 1, 0}))
	idx.Delete("a")

	assert.ElementsMatch(t, []string{"b"}, idx.AllIDs())
}
