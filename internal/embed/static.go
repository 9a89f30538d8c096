package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

const (
	staticDimensions = 256
	tokenWeight      = 0.7
	ngramWeight      = 0.3
	ngramSize        = 3
)

var (
	tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

	stopWords = map[string]bool{
		"func": true, "function": true, "def": true, "class": true,
		"return": true, "import": true, "const": true, "var": true,
		"let": true, "int": true, "string": true, "bool": true,
		"void": true, "true": true, "false": true, "nil": true,
		"null": true, "this": true, "self": true, "new": true,
	}
)

// Static is a hash-based embedder: deterministic, offline, and fast,
// at the cost of semantic quality. It is the default provider so the
// engine works without any external model server.
type Static struct {
	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*Static)(nil)

func NewStatic() *Static { return &Static{} }

func (e *Static) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embed: static embedder is closed")
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, staticDimensions), nil
	}
	return normalizeVector(hashVector(trimmed)), nil
}

func hashVector(text string) []float32 {
	vector := make([]float32, staticDimensions)

	for _, token := range filterStopWords(tokenize(text)) {
		vector[hashToIndex(token, staticDimensions)] += tokenWeight
	}
	for _, ngram := range extractNgrams(normalizeForNgrams(text), ngramSize) {
		vector[hashToIndex(ngram, staticDimensions)] += ngramWeight
	}
	return vector
}

func tokenize(text string) []string {
	var tokens []string
	for _, word := range tokenRegex.FindAllString(text, -1) {
		for _, t := range splitCodeToken(word) {
			if lower := strings.ToLower(t); lower != "" {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

func splitCodeToken(token string) []string {
	if strings.Contains(token, "_") {
		var out []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				out = append(out, splitCamelCase(part)...)
			}
		}
		return out
	}
	return splitCamelCase(token)
}

func splitCamelCase(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	var current strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if (prevLower || nextLower) && current.Len() > 0 {
				out = append(out, current.String())
				current.Reset()
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}

func filterStopWords(tokens []string) []string {
	var out []string
	for _, t := range tokens {
		if !stopWords[t] {
			out = append(out, t)
		}
	}
	return out
}

func normalizeForNgrams(text string) string {
	var out strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out.WriteRune(r)
		}
	}
	return out.String()
}

func extractNgrams(text string, n int) []string {
	if len(text) < n {
		return nil
	}
	out := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		out = append(out, text[i:i+n])
	}
	return out
}

func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

func (e *Static) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed: batch item %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (e *Static) Dimensions() int { return staticDimensions }
func (e *Static) ModelName() string { return "static" }

func (e *Static) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

func (e *Static) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
