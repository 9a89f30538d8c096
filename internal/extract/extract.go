// Package extract turns a file on disk into an ordered list of text
// pages for the chunker, dispatching by file extension through a
// Router. Only Markdown and source-code files get a format-aware
// extractor; every other extension falls through to a plain-text
// extractor so the pipeline never rejects a file solely because no
// specialised extractor exists for it.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/katanaquant/ragengine/internal/chunker"
)

// Result is what an Extractor produces: ordered pages plus the method
// tag recorded against the document for observability.
type Result struct {
	Pages  []chunker.Page
	Method string
}

// Extractor turns raw file bytes into pages.
type Extractor interface {
	Extract(ctx context.Context, path string, content []byte) (Result, error)
	SupportedExtensions() []string
}

// Router dispatches to the Extractor registered for a file's
// extension, falling back to a plain-text extractor.
type Router struct {
	byExt   map[string]Extractor
	generic Extractor
}

// NewRouter builds a Router with the given extractors registered by
// their SupportedExtensions, plus a generic plain-text fallback.
func NewRouter(extractors ...Extractor) *Router {
	r := &Router{
		byExt:   make(map[string]Extractor),
		generic: PlainText{},
	}
	for _, e := range extractors {
		for _, ext := range e.SupportedExtensions() {
			r.byExt[strings.ToLower(ext)] = e
		}
	}
	return r
}

// Extract reads path and dispatches on its extension.
func (r *Router) Extract(ctx context.Context, path string) (Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("extract: read %s: %w", path, err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if e, ok := r.byExt[ext]; ok {
		return e.Extract(ctx, path, content)
	}
	return r.generic.Extract(ctx, path, content)
}

// PlainText treats the whole file as a single page. It is the Router's
// fallback and also serves .txt and unrecognised extensions directly.
type PlainText struct{}

func (PlainText) SupportedExtensions() []string { return []string{".txt"} }

func (PlainText) Extract(_ context.Context, _ string, content []byte) (Result, error) {
	text := string(content)
	if strings.TrimSpace(text) == "" {
		return Result{Method: "plain"}, nil
	}
	return Result{Pages: []chunker.Page{{Text: text}}, Method: "plain"}, nil
}
