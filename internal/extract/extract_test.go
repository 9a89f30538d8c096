package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRouterFallsBackToPlainTextForUnknownExtension(t *testing.T) {
	r := NewRouter(Markdown{}, NewCode())
	path := writeTemp(t, "notes.rst", "hello world")
	res, err := r.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "plain", res.Method)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, "hello world", res.Pages[0].Text)
}

func TestRouterDispatchesMarkdownByExtension(t *testing.T) {
	r := NewRouter(Markdown{})
	path := writeTemp(t, "doc.md", "# Title\n\nbody text\n\n## Sub\n\nmore text")
	res, err := r.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "markdown", res.Method)
	require.Len(t, res.Pages, 2)
}

func TestMarkdownStripsFrontmatter(t *testing.T) {
	content := "---\ntitle: x\n---\n\n# Heading\n\nbody\n"
	res, err := Markdown{}.Extract(context.Background(), "x.md", []byte(content))
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	assert.NotContains(t, res.Pages[0].Text, "title: x")
}

func TestMarkdownWithNoHeadersIsOnePage(t *testing.T) {
	res, err := Markdown{}.Extract(context.Background(), "x.md", []byte("just a paragraph, no headers"))
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
}

func TestCodeExtractsGoFunctionsAsSeparatePages(t *testing.T) {
	src := `package main

func First() int {
	return 1
}

func Second() int {
	return 2
}
`
	res, err := NewCode().Extract(context.Background(), "x.go", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, "code", res.Method)
	var sawFirst, sawSecond bool
	for _, p := range res.Pages {
		if strings.Contains(p.Text, "func First") {
			sawFirst = true
		}
		if strings.Contains(p.Text, "func Second") {
			sawSecond = true
		}
	}
	assert.True(t, sawFirst)
	assert.True(t, sawSecond)
}

func TestCodeFallsBackToPlainTextForUnsupportedExtension(t *testing.T) {
	res, err := NewCode().Extract(context.Background(), "x.rb", []byte("puts 'hi'"))
	require.NoError(t, err)
	assert.Equal(t, "plain", res.Method)
}
