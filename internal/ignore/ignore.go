// Package ignore provides gitignore-syntax pattern matching used by the
// watcher to keep non-knowledge files (VCS metadata, build output, the
// engine's own data directory) out of the indexing queue.
package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// Matcher holds compiled patterns and answers whether a path should be
// skipped. Safe for concurrent use; the watcher shares one Matcher
// across its fsnotify and polling backends.
type Matcher struct {
	mu    sync.RWMutex
	rules []rule
}

type rule struct {
	regex    *regexp.Regexp
	negation bool
	dirOnly  bool
	anchored bool
	base     string
}

// New returns a Matcher seeded with DefaultPatterns.
func New() *Matcher {
	m := &Matcher{}
	for _, p := range DefaultPatterns {
		m.AddPattern(p)
	}
	return m
}

// DefaultPatterns are always ignored regardless of any .gitignore file,
// since they are never knowledge-base content.
var DefaultPatterns = []string{
	".git/",
	".ragengine/",
	"node_modules/",
	"__pycache__/",
	"*.pyc",
	".DS_Store",
}

// AddPattern compiles and stores one gitignore-syntax pattern.
func (m *Matcher) AddPattern(pattern string) {
	m.AddPatternWithBase(pattern, "")
}

// AddPatternWithBase compiles a pattern that only applies under base
// (used for a nested .gitignore found below the watch root).
func (m *Matcher) AddPatternWithBase(pattern, base string) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || (strings.HasPrefix(pattern, "#") && !strings.HasPrefix(pattern, `\#`)) {
		return
	}

	r := rule{base: base}
	if strings.HasPrefix(pattern, `\!`) {
		pattern = strings.TrimPrefix(pattern, `\`)
	} else if strings.HasPrefix(pattern, "!") {
		r.negation = true
		pattern = strings.TrimPrefix(pattern, "!")
	}

	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		r.anchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	}
	if strings.Contains(pattern, "/") && !strings.HasPrefix(pattern, "**/") && !strings.HasPrefix(pattern, "*") {
		r.anchored = true
	}

	r.regex = regexp.MustCompile("^" + patternToRegex(pattern) + "$")

	m.mu.Lock()
	m.rules = append(m.rules, r)
	m.mu.Unlock()
}

// AddFromFile loads patterns from a gitignore-syntax file, scoping them
// to base (the directory the file was found in, relative to the watch
// root).
func (m *Matcher) AddFromFile(path, base string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open ignore file: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m.AddPatternWithBase(scanner.Text(), base)
	}
	return scanner.Err()
}

// Match reports whether path (relative to the watch root, forward
// slashes) should be ignored.
func (m *Matcher) Match(path string, isDir bool) bool {
	path = filepath.ToSlash(path)

	m.mu.RLock()
	defer m.mu.RUnlock()

	ignored := false
	for _, r := range m.rules {
		if m.matchRule(path, isDir, r) {
			ignored = !r.negation
		}
	}
	return ignored
}

func (m *Matcher) matchRule(path string, isDir bool, r rule) bool {
	if r.base != "" {
		if !strings.HasPrefix(path, r.base+"/") && path != r.base {
			return false
		}
		if path == r.base {
			path = filepath.Base(path)
		} else {
			path = strings.TrimPrefix(path, r.base+"/")
		}
	}

	parts := strings.Split(path, "/")
	basename := parts[len(parts)-1]

	if r.anchored {
		if r.regex.MatchString(path) {
			if r.dirOnly {
				return isDir
			}
			return true
		}
		if r.dirOnly {
			for i := range parts[:len(parts)-1] {
				if r.regex.MatchString(strings.Join(parts[:i+1], "/")) {
					return true
				}
			}
		}
		return false
	}

	if r.dirOnly {
		for i, part := range parts {
			if r.regex.MatchString(part) {
				if i == len(parts)-1 {
					return isDir
				}
				return true
			}
		}
		return false
	}

	if r.regex.MatchString(basename) || r.regex.MatchString(path) {
		return true
	}
	for _, part := range parts {
		if r.regex.MatchString(part) {
			return true
		}
	}
	return false
}

// patternToRegex translates one gitignore-syntax pattern into the
// regex body that implements it (caller anchors with ^...$).
func patternToRegex(pattern string) string {
	var out strings.Builder
	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				if i+2 < len(pattern) && pattern[i+2] == '/' {
					out.WriteString("(?:.*/)?")
					i += 3
					continue
				} else if i == 0 || pattern[i-1] == '/' {
					out.WriteString(".*")
					i += 2
					continue
				}
			}
			out.WriteString("[^/]*")
			i++
		case '?':
			out.WriteString("[^/]")
			i++
		case '[':
			j := i + 1
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j < len(pattern) {
				out.WriteString(pattern[i : j+1])
				i = j + 1
			} else {
				out.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}
		case '\\':
			if i+1 < len(pattern) {
				out.WriteString(regexp.QuoteMeta(string(pattern[i+1])))
				i += 2
			} else {
				out.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}
		case '.', '+', '^', '$', '(', ')', '{', '}', '|':
			out.WriteString(regexp.QuoteMeta(string(c)))
			i++
		default:
			out.WriteString(string(c))
			i++
		}
	}
	return out.String()
}
