// Package validate screens a file before it is ever queued for
// indexing: wrong-type, oversized, or executable files are rejected
// here, cheaply, rather than after extraction/embedding has already
// spent work on them. The pipeline's chunk stage runs every admitted
// item through Validate before it looks at the item's content hash.
package validate

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Severity distinguishes a soft warning (logged, still indexed) from
// a hard rejection.
type Severity string

const (
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Result mirrors the exact shape the pipeline's chunk stage expects
// back from a Validator.
type Result struct {
	IsValid          bool
	Severity         Severity
	Reason           string
	ValidationCheck  string
}

// Settings bounds what validate.Validate will accept.
type Settings struct {
	MaxSizeBytes      int64
	AllowedExtensions map[string]struct{}
}

// DefaultSettings covers the text and source-code extensions the
// bundled extractors understand.
func DefaultSettings() Settings {
	exts := []string{
		".txt", ".md", ".markdown", ".mdx",
		".go", ".py", ".js", ".mjs", ".jsx", ".ts", ".tsx",
	}
	allowed := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		allowed[e] = struct{}{}
	}
	return Settings{MaxSizeBytes: 500 * 1024 * 1024, AllowedExtensions: allowed}
}

// Validator applies existence, size, extension and executable-content
// checks in that order, stopping at the first failure.
type Validator struct {
	settings Settings
}

func New(settings Settings) *Validator {
	return &Validator{settings: settings}
}

func (v *Validator) Validate(path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		return reject("file_existence", fmt.Sprintf("cannot stat file: %v", err))
	}
	if info.Size() == 0 {
		return reject("file_existence", "file is empty")
	}
	if info.Size() > v.settings.MaxSizeBytes {
		return reject("file_size", fmt.Sprintf("file size %d exceeds limit %d", info.Size(), v.settings.MaxSizeBytes))
	}

	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := v.settings.AllowedExtensions[ext]; !ok {
		return reject("extension", fmt.Sprintf("extension %q is not supported", ext))
	}

	f, err := os.Open(path)
	if err != nil {
		return reject("file_existence", fmt.Sprintf("cannot open file: %v", err))
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := bufio.NewReader(f).Read(head)
	sig := string(head[:n])
	for _, m := range []struct{ prefix, kind string }{
		{"\x7fELF", "ELF"},
		{"MZ", "PE"},
		{"\xfe\xed\xfa\xce", "Mach-O"},
		{"\xfe\xed\xfa\xcf", "Mach-O"},
		{"\xce\xfa\xed\xfe", "Mach-O"},
		{"\xcf\xfa\xed\xfe", "Mach-O"},
	} {
		if strings.HasPrefix(sig, m.prefix) {
			return reject("executable_check", fmt.Sprintf("file content detected as executable (%s)", m.kind))
		}
	}

	return Result{IsValid: true, ValidationCheck: "ok"}
}

func reject(check, reason string) Result {
	return Result{
		IsValid:         false,
		Severity:        SeverityCritical,
		Reason:          reason,
		ValidationCheck: check,
	}
}
