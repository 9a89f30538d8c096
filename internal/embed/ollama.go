package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultOllamaHost = "http://localhost:11434"
	defaultBatchSize  = 32
	defaultTimeout    = 60 * time.Second
	defaultMaxRetries = 3
)

// OllamaConfig configures an Ollama-backed embedder.
type OllamaConfig struct {
	Host       string
	Model      string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration
	MaxRetries int
	// SkipHealthCheck is set by tests to avoid dialing a real server.
	SkipHealthCheck bool
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Ollama generates embeddings via a local Ollama server's /api/embed
// endpoint, with exponential-backoff retry on transient failures.
type Ollama struct {
	client *http.Client
	cfg    OllamaConfig

	mu     sync.RWMutex
	closed bool
	dims   int
}

var _ Embedder = (*Ollama)(nil)

// NewOllama connects to cfg.Host and, unless SkipHealthCheck is set,
// probes dimensions with a single test embedding.
func NewOllama(ctx context.Context, cfg OllamaConfig) (*Ollama, error) {
	if cfg.Host == "" {
		cfg.Host = defaultOllamaHost
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embed: ollama config requires a model name")
	}

	e := &Ollama{
		client: &http.Client{Transport: &http.Transport{MaxIdleConnsPerHost: 4}},
		cfg:    cfg,
		dims:   cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		dims, err := e.detectDimensions(checkCtx)
		if err != nil {
			return nil, fmt.Errorf("embed: ollama health check: %w", err)
		}
		e.dims = dims
	}
	return e, nil
}

func (e *Ollama) detectDimensions(ctx context.Context) (int, error) {
	embeddings, err := e.doEmbed(ctx, []string{"dimension probe"})
	if err != nil {
		return 0, err
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return 0, fmt.Errorf("empty embedding returned")
	}
	return len(embeddings[0]), nil
}

func (e *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	if trimmed := strings.TrimSpace(text); trimmed == "" {
		return make([]float32, e.Dimensions()), nil
	}
	out, err := e.doEmbedWithRetry(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (e *Ollama) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embed: ollama embedder is closed")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	var pending []int
	var pendingTexts []string
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = make([]float32, e.Dimensions())
			continue
		}
		pending = append(pending, i)
		pendingTexts = append(pendingTexts, text)
	}

	for start := 0; start < len(pendingTexts); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(pendingTexts))
		embeddings, err := e.doEmbedWithRetry(ctx, pendingTexts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed: batch %d-%d: %w", start, end, err)
		}
		for i, emb := range embeddings {
			results[pending[start+i]] = emb
		}
	}
	return results, nil
}

func (e *Ollama) doEmbedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100<<attempt) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		timeoutCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		embeddings, err := e.doEmbed(timeoutCtx, texts)
		cancel()
		if err == nil {
			return embeddings, nil
		}
		lastErr = err
		slog.Debug("ollama embed attempt failed", slog.Int("attempt", attempt+1), slog.String("error", err.Error()))
	}
	return nil, fmt.Errorf("embed: all %d attempts failed: %w", e.cfg.MaxRetries, lastErr)
}

func (e *Ollama) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.cfg.Model, Input: texts})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result.Embeddings, nil
}

func (e *Ollama) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

func (e *Ollama) ModelName() string { return e.cfg.Model }

func (e *Ollama) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.Host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

func (e *Ollama) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.client.CloseIdleConnections()
	return nil
}
