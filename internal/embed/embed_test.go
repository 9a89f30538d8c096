package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticIsDeterministic(t *testing.T) {
	e := NewStatic()
	a, err := e.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestStaticDiffersForDifferentText(t *testing.T) {
	e := NewStatic()
	a, _ := e.Embed(context.Background(), "alpha beta")
	b, _ := e.Embed(context.Background(), "completely different text")
	assert.NotEqual(t, a, b)
}

func TestStaticEmptyTextReturnsZeroVector(t *testing.T) {
	e := NewStatic()
	v, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	for _, x := range v {
		assert.Equal(t, float32(0), x)
	}
}

func TestStaticEmbedBatchMatchesIndividualEmbed(t *testing.T) {
	e := NewStatic()
	texts := []string{"one", "two", "three"}
	batch, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	for i, text := range texts {
		single, err := e.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

func TestStaticCloseMakesAvailableFalse(t *testing.T) {
	e := NewStatic()
	require.True(t, e.Available(context.Background()))
	require.NoError(t, e.Close())
	assert.False(t, e.Available(context.Background()))
	_, err := e.Embed(context.Background(), "x")
	assert.Error(t, err)
}

func TestCachedAvoidsReEmbeddingSameText(t *testing.T) {
	inner := &countingEmbedder{Static: NewStatic()}
	cached, err := NewCached(inner, 16)
	require.NoError(t, err)

	_, err = cached.Embed(context.Background(), "repeated text")
	require.NoError(t, err)
	_, err = cached.Embed(context.Background(), "repeated text")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
}

func TestFactoryDefaultsToStatic(t *testing.T) {
	e, err := New(context.Background(), Settings{})
	require.NoError(t, err)
	assert.Equal(t, "static", e.ModelName())
}

func TestFactoryRejectsUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Settings{Provider: "magic"})
	assert.Error(t, err)
}

type countingEmbedder struct {
	*Static
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.Static.Embed(ctx, text)
}
