package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/katanaquant/ragengine/internal/chunker"
)

// Markdown splits a document on top-level (#/##) headers, emitting one
// page per section so the chunker's semantic pass operates on
// topically coherent text instead of the raw byte stream. Frontmatter
// is stripped rather than emitted as a page.
type Markdown struct{}

func (Markdown) SupportedExtensions() []string { return []string{".md", ".markdown", ".mdx"} }

var (
	frontmatterPattern = regexp.MustCompile(`(?s)^---\n.+?\n---\n*`)
	headerPattern      = regexp.MustCompile(`(?m)^#{1,2}\s+.+$`)
)

func (Markdown) Extract(_ context.Context, _ string, content []byte) (Result, error) {
	text := frontmatterPattern.ReplaceAllString(string(content), "")
	if strings.TrimSpace(text) == "" {
		return Result{Method: "markdown"}, nil
	}

	locs := headerPattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return Result{
			Pages:  []chunker.Page{{Text: strings.TrimSpace(text)}},
			Method: "markdown",
		}, nil
	}

	var pages []chunker.Page
	if locs[0][0] > 0 {
		if pre := strings.TrimSpace(text[:locs[0][0]]); pre != "" {
			pages = append(pages, chunker.Page{Text: pre})
		}
	}
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		section := strings.TrimSpace(text[loc[0]:end])
		if section != "" {
			pages = append(pages, chunker.Page{Text: section})
		}
	}
	return Result{Pages: pages, Method: "markdown"}, nil
}
