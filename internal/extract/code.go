package extract

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/katanaquant/ragengine/internal/chunker"
)

// symbolTypes enumerates the tree-sitter node types per language whose
// top-level occurrence marks a unit worth extracting as its own page:
// a function, method, type or class declaration.
type symbolTypes struct {
	language   *sitter.Language
	nodeTypes  map[string]struct{}
	extensions []string
}

func newSymbolTypes(lang *sitter.Language, types []string, exts []string) symbolTypes {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return symbolTypes{language: lang, nodeTypes: set, extensions: exts}
}

// Code extracts top-level function/method/type/class declarations from
// source files via tree-sitter, emitting one page per symbol plus one
// page for each stretch of top-level code not captured by a symbol
// (e.g. package-level statements, imports) before, between or after
// the symbols. A Code value is safe for
// concurrent use; sitter.Parser is not, so each Extract call owns its
// own parser instance.
type Code struct {
	byExt map[string]symbolTypes
}

// NewCode builds a Code extractor covering Go, Python, JavaScript and
// TypeScript.
func NewCode() *Code {
	c := &Code{byExt: make(map[string]symbolTypes)}
	goTypes := newSymbolTypes(golang.GetLanguage(),
		[]string{"function_declaration", "method_declaration", "type_declaration"},
		[]string{".go"})
	pyTypes := newSymbolTypes(python.GetLanguage(),
		[]string{"function_definition", "class_definition"},
		[]string{".py"})
	jsTypes := newSymbolTypes(javascript.GetLanguage(),
		[]string{"function_declaration", "class_declaration", "method_definition"},
		[]string{".js", ".mjs", ".jsx"})
	tsTypes := newSymbolTypes(typescript.GetLanguage(),
		[]string{"function_declaration", "class_declaration", "interface_declaration", "method_definition"},
		[]string{".ts"})
	for _, st := range []symbolTypes{goTypes, pyTypes, jsTypes, tsTypes} {
		for _, ext := range st.extensions {
			c.byExt[ext] = st
		}
	}
	return c
}

func (c *Code) SupportedExtensions() []string {
	exts := make([]string, 0, len(c.byExt))
	for ext := range c.byExt {
		exts = append(exts, ext)
	}
	return exts
}

func (c *Code) Extract(ctx context.Context, path string, content []byte) (Result, error) {
	ext := extOf(path)
	st, ok := c.byExt[ext]
	if !ok {
		return PlainText{}.Extract(ctx, path, content)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(st.language)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil || tree == nil {
		return Result{}, fmt.Errorf("extract: parse %s: %w", path, err)
	}
	root := tree.RootNode()

	var pages []chunker.Page
	var lastEnd uint32
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child == nil {
			continue
		}
		if _, isSymbol := st.nodeTypes[child.Type()]; !isSymbol {
			continue
		}
		if gap := strings.TrimSpace(string(content[lastEnd:child.StartByte()])); gap != "" {
			pages = append(pages, chunker.Page{Text: gap})
		}
		text := string(content[child.StartByte():child.EndByte()])
		if strings.TrimSpace(text) != "" {
			pages = append(pages, chunker.Page{Text: text})
		}
		lastEnd = child.EndByte()
	}
	if tail := strings.TrimSpace(string(content[lastEnd:])); tail != "" {
		pages = append(pages, chunker.Page{Text: tail})
	}

	if len(pages) == 0 {
		return PlainText{}.Extract(ctx, path, content)
	}
	return Result{Pages: pages, Method: "code"}, nil
}

func extOf(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(path[i:])
}
