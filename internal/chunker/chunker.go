// Package chunker splits extracted page text into size-bounded Chunks
// using either a semantic (paragraph-greedy) or fixed (sliding
// window) strategy, selected once per process from configuration.
package chunker

import (
	"strings"

	"github.com/katanaquant/ragengine/internal/domain"
)

// Settings configures chunk production. Semantic selects the
// paragraph-aware strategy; when false, or when the semantic pass
// produces nothing, Fixed is used.
type Settings struct {
	TargetSize int
	MinSize    int
	Overlap    int
	Semantic   bool
}

// Page is one unit of extracted text, optionally tagged with a page
// number from the source document.
type Page struct {
	Text string
	Page *int
}

// Chunker produces ordered chunks from a document's extracted pages.
type Chunker struct {
	settings Settings
}

// New returns a Chunker configured with settings.
func New(settings Settings) *Chunker {
	return &Chunker{settings: settings}
}

// Chunk splits pages into an ordered slice of domain.Chunk, with
// ChunkIndex assigned sequentially across all pages of the document.
// DocumentID is left zero; the caller assigns it once the document
// row exists.
func (c *Chunker) Chunk(pages []Page) []domain.Chunk {
	var out []domain.Chunk
	index := 0
	for _, page := range pages {
		var pieces []string
		if c.settings.Semantic {
			pieces = c.semantic(page.Text)
		}
		if len(pieces) == 0 {
			pieces = c.fixed(page.Text)
		}
		for _, content := range pieces {
			out = append(out, domain.Chunk{
				Content:    content,
				Page:       page.Page,
				ChunkIndex: index,
			})
			index++
		}
	}
	return out
}

// semantic splits text on blank-line paragraphs and greedily packs
// them into chunks no longer than TargetSize, emitting the current
// accumulation whenever the next paragraph would overflow it.
func (c *Chunker) semantic(text string) []string {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		trimmed := strings.TrimSpace(current.String())
		if len(trimmed) >= c.settings.MinSize {
			chunks = append(chunks, trimmed)
		}
		current.Reset()
	}

	for _, p := range paragraphs {
		if current.Len() > 0 && current.Len()+2+len(p) > c.settings.TargetSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	flush()

	return chunks
}

// fixed is a sliding window of TargetSize characters with Overlap
// characters of carryover between consecutive windows.
func (c *Chunker) fixed(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := c.settings.TargetSize - c.settings.Overlap
	if step <= 0 {
		step = c.settings.TargetSize
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.settings.TargetSize
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if len(piece) >= c.settings.MinSize {
			chunks = append(chunks, piece)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// splitParagraphs splits on one-or-more blank lines, trimming and
// dropping empty paragraphs.
func splitParagraphs(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
	var paragraphs []string
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}
