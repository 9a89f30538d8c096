// Package sanitize implements the startup Sanitizer: three phases run
// once, after schema creation and before any new work is admitted,
// to reconcile on-disk reality with what the store and progress
// tables believe happened.
package sanitize

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/katanaquant/ragengine/internal/domain"
	"github.com/katanaquant/ragengine/internal/queue"
	"github.com/katanaquant/ragengine/internal/store"
)

// Settings toggles the optional phases.
type Settings struct {
	// OrphanRepairEnabled runs phase 2 (orphan detection). Disabled by
	// default on very large knowledge bases where a full documents
	// scan at every startup is too costly.
	OrphanRepairEnabled bool
}

// Sanitizer reconciles processing_progress against the documents
// table and the filesystem before the queue starts accepting new
// admissions.
type Sanitizer struct {
	backend  store.Backend
	queue    *queue.Queue
	settings Settings
	logger   *slog.Logger
}

// New builds a Sanitizer. logger defaults to slog.Default() if nil.
func New(backend store.Backend, q *queue.Queue, settings Settings, logger *slog.Logger) *Sanitizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sanitizer{backend: backend, queue: q, settings: settings, logger: logger}
}

// Result summarizes what each phase did, for a startup log line.
type Result struct {
	Resumed       int
	OrphansQueued int
	OrphansExempt int
}

// Run executes all phases in order and returns a summary. It never
// returns an error for a single bad row; only a backend failure that
// prevents the whole scan aborts early.
func (s *Sanitizer) Run(ctx context.Context) (Result, error) {
	var result Result

	resumed, err := s.resumeIncomplete(ctx)
	if err != nil {
		return result, err
	}
	result.Resumed = resumed

	if s.settings.OrphanRepairEnabled {
		queued, exempt, err := s.repairOrphans(ctx)
		if err != nil {
			return result, err
		}
		result.OrphansQueued = queued
		result.OrphansExempt = exempt
	}

	return result, nil
}

// resumeIncomplete is phase 1: any row still marked in_progress from
// a previous run that crashed mid-file gets re-queued at HIGH
// priority so it is picked up again ahead of ordinary traffic.
func (s *Sanitizer) resumeIncomplete(ctx context.Context) (int, error) {
	incomplete, err := s.backend.GetIncompleteFiles(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, p := range incomplete {
		if _, err := os.Stat(p.FilePath); err != nil {
			s.logger.Debug("incomplete file no longer exists, skipping resume", "path", p.FilePath)
			continue
		}
		s.queue.Add(p.FilePath, domain.PriorityHigh, false)
		count++
	}
	return count, nil
}

// repairOrphans is phase 2 (and, for the EPUB case, phase 3): a
// processing_progress row marked completed with no corresponding
// documents row is an orphan, unless it is a converted EPUB exempt
// under phase 3, in which case its progress row is removed instead
// of re-queued.
func (s *Sanitizer) repairOrphans(ctx context.Context) (queued int, exempt int, err error) {
	all, err := s.backend.PreloadAllProgress(ctx)
	if err != nil {
		return 0, 0, err
	}

	documents, err := s.backend.QueryDocumentsWithChunks(ctx)
	if err != nil {
		return 0, 0, err
	}
	indexed := make(map[string]struct{}, len(documents))
	for _, d := range documents {
		indexed[d.FilePath] = struct{}{}
	}

	for path, p := range all {
		if p.Status != domain.StatusCompleted {
			continue
		}
		if _, ok := indexed[path]; ok {
			continue
		}

		if isConvertedEPUB(path) {
			s.logger.Debug("orphan is a converted EPUB, dropping progress row", "path", path)
			if err := s.backend.DeleteProgress(ctx, path); err != nil {
				return queued, exempt, err
			}
			exempt++
			continue
		}

		s.queue.Add(path, domain.PriorityHigh, false)
		queued++
	}
	return queued, exempt, nil
}

// isConvertedEPUB reports whether path is part of an EPUB-to-PDF
// conversion pair: the EPUB living in an "original/" sibling
// directory with a PDF of the same basename next to that directory.
// This mirrors the converter's own layout regardless of whether path
// still points at the pre-move location or the post-move one.
func isConvertedEPUB(path string) bool {
	if strings.ToLower(filepath.Ext(path)) != ".epub" {
		return false
	}

	dir := filepath.Dir(path)
	base := filepath.Base(dir)
	parent := dir
	if base == "original" {
		parent = filepath.Dir(dir)
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	originalEPUB := filepath.Join(parent, "original", stem+".epub")
	pdf := filepath.Join(parent, stem+".pdf")

	if _, err := os.Stat(originalEPUB); err != nil {
		return false
	}
	if _, err := os.Stat(pdf); err != nil {
		return false
	}
	return true
}
