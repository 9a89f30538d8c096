// Package bm25 provides the lexical-index tokenization used by the
// SQLite backend's FTS5 path. The Postgres backend builds its lexical
// index with to_tsvector/plainto_tsquery and calls Tokenize only to
// detect a query with no searchable terms. Tokenization is
// deliberately a pure function independent of the storage engine it
// feeds.
package bm25

import (
	"regexp"
	"strings"
	"unicode"
)

var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// Tokenize splits text with code-aware rules: camelCase, PascalCase
// and snake_case identifiers are split into sub-words, everything is
// lowercased, and tokens shorter than two characters are dropped.
func Tokenize(text string) []string {
	var tokens []string
	for _, word := range tokenRegex.FindAllString(text, -1) {
		for _, t := range splitCodeToken(word) {
			lower := strings.ToLower(t)
			if len(lower) >= 2 {
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

// Join re-assembles tokens into an FTS5 MATCH query string, quoting
// each token so punctuation surviving tokenization can't be
// interpreted as FTS5 query syntax.
func Join(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}
