package embed

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached wraps an Embedder with an LRU cache keyed by exact text,
// avoiding repeat network/hash work for chunks that reappear across
// re-indexing runs (e.g. unchanged files re-extracted after a move).
type Cached struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

var _ Embedder = (*Cached)(nil)

// NewCached wraps inner with an LRU of the given capacity.
func NewCached(inner Embedder, size int) (*Cached, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v, nil
	}
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, v)
	return v, nil
}

func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if v, ok := c.cache.Get(text); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	embedded, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for i, v := range embedded {
		out[missIdx[i]] = v
		c.cache.Add(missTexts[i], v)
	}
	return out, nil
}

func (c *Cached) Dimensions() int               { return c.inner.Dimensions() }
func (c *Cached) ModelName() string             { return c.inner.ModelName() }
func (c *Cached) Available(ctx context.Context) bool { return c.inner.Available(ctx) }

func (c *Cached) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}
