package embed

import (
	"context"
	"fmt"
)

// Settings selects and configures an Embedder.
type Settings struct {
	Provider  string // "static" or "ollama"
	Ollama    OllamaConfig
	CacheSize int
}

// New builds the configured Embedder, wrapping it with an LRU cache
// when CacheSize > 0.
func New(ctx context.Context, settings Settings) (Embedder, error) {
	var base Embedder
	switch settings.Provider {
	case "", "static":
		base = NewStatic()
	case "ollama":
		o, err := NewOllama(ctx, settings.Ollama)
		if err != nil {
			return nil, err
		}
		base = o
	default:
		return nil, fmt.Errorf("embed: unknown provider %q", settings.Provider)
	}

	if settings.CacheSize <= 0 {
		return base, nil
	}
	return NewCached(base, settings.CacheSize)
}
