package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/katanaquant/ragengine/internal/domain"
	"github.com/katanaquant/ragengine/internal/store"
)

// StartProcessing records a new in_progress row, or resets an
// existing one for the same path to a fresh in_progress state (a
// file being reprocessed after edit).
func (s *Store) StartProcessing(ctx context.Context, path, hash string, totalChunks int) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processing_progress(file_path, file_hash, total_chunks, chunks_processed, last_chunk_end, status, started_at, last_updated)
		VALUES (?, ?, ?, 0, 0, 'in_progress', ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			file_hash=excluded.file_hash, total_chunks=excluded.total_chunks,
			chunks_processed=0, last_chunk_end=0, status='in_progress',
			error_message=NULL, started_at=excluded.started_at, last_updated=excluded.last_updated,
			completed_at=NULL`,
		path, hash, totalChunks, now, now)
	if err != nil {
		return fmt.Errorf("sqlite: start_processing: %w", err)
	}
	s.invalidateProgressCache(path)
	return nil
}

func (s *Store) UpdateProgress(ctx context.Context, path string, chunksProcessed, lastChunkEnd int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE processing_progress SET chunks_processed = ?, last_chunk_end = ?, last_updated = ?
		WHERE file_path = ?`, chunksProcessed, lastChunkEnd, time.Now().UTC(), path)
	if err != nil {
		return fmt.Errorf("sqlite: update_progress: %w", err)
	}
	s.invalidateProgressCache(path)
	return nil
}

func (s *Store) MarkCompleted(ctx context.Context, path string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE processing_progress SET status = 'completed', last_updated = ?, completed_at = ?
		WHERE file_path = ?`, now, now, path)
	if err != nil {
		return fmt.Errorf("sqlite: mark_completed: %w", err)
	}
	s.invalidateProgressCache(path)
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, path, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE processing_progress SET status = 'failed', error_message = ?, last_updated = ?
		WHERE file_path = ?`, reason, time.Now().UTC(), path)
	if err != nil {
		return fmt.Errorf("sqlite: mark_failed: %w", err)
	}
	s.invalidateProgressCache(path)
	return nil
}

func (s *Store) MarkRejected(ctx context.Context, path, reason string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processing_progress(file_path, file_hash, total_chunks, status, error_message, started_at, last_updated)
		VALUES (?, '', 0, 'rejected', ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			status='rejected', error_message=excluded.error_message, last_updated=excluded.last_updated`,
		path, reason, now, now)
	if err != nil {
		return fmt.Errorf("sqlite: mark_rejected: %w", err)
	}
	s.invalidateProgressCache(path)
	return nil
}

func (s *Store) GetProgress(ctx context.Context, path string) (domain.Progress, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT file_path, file_hash, total_chunks, chunks_processed, last_chunk_end, status,
		       COALESCE(error_message, ''), started_at, last_updated, completed_at
		FROM processing_progress WHERE file_path = ?`, path)
	p, err := scanProgress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return p, store.ErrNotFound
	}
	return p, err
}

func (s *Store) GetIncompleteFiles(ctx context.Context) ([]domain.Progress, error) {
	return s.queryProgressByStatus(ctx, domain.StatusInProgress)
}

func (s *Store) GetRejectedFiles(ctx context.Context) ([]domain.Progress, error) {
	return s.queryProgressByStatus(ctx, domain.StatusRejected)
}

func (s *Store) queryProgressByStatus(ctx context.Context, status domain.ProgressStatus) ([]domain.Progress, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_path, file_hash, total_chunks, chunks_processed, last_chunk_end, status,
		       COALESCE(error_message, ''), started_at, last_updated, completed_at
		FROM processing_progress WHERE status = ?`, string(status))
	if err != nil {
		return nil, fmt.Errorf("sqlite: query progress by status: %w", err)
	}
	defer rows.Close()

	var out []domain.Progress
	for rows.Next() {
		p, err := scanProgressRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PreloadAllProgress populates the in-memory cache consulted during
// bulk scans so every file's progress lookup avoids a DB round trip.
func (s *Store) PreloadAllProgress(ctx context.Context) (map[string]domain.Progress, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_path, file_hash, total_chunks, chunks_processed, last_chunk_end, status,
		       COALESCE(error_message, ''), started_at, last_updated, completed_at
		FROM processing_progress`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: preload progress: %w", err)
	}
	defer rows.Close()

	cache := make(map[string]domain.Progress)
	for rows.Next() {
		p, err := scanProgressRows(rows)
		if err != nil {
			return nil, err
		}
		cache[p.FilePath] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.progressMu.Lock()
	s.progressCache = cache
	s.progressMu.Unlock()
	return cache, nil
}

// DeleteProgress removes a file's progress row entirely, used by the
// sanitizer when a converted-EPUB orphan is exempt from re-queueing.
func (s *Store) DeleteProgress(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM processing_progress WHERE file_path = ?`, path)
	if err != nil {
		return fmt.Errorf("sqlite: delete progress: %w", err)
	}
	s.invalidateProgressCache(path)
	return nil
}

func (s *Store) ClearProgressCache() {
	s.progressMu.Lock()
	s.progressCache = make(map[string]domain.Progress)
	s.progressMu.Unlock()
}

func (s *Store) invalidateProgressCache(path string) {
	s.progressMu.Lock()
	delete(s.progressCache, path)
	s.progressMu.Unlock()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgress(row *sql.Row) (domain.Progress, error) {
	return scanProgressRows(row)
}

func scanProgressRows(r rowScanner) (domain.Progress, error) {
	var p domain.Progress
	var status string
	var completedAt sql.NullTime
	err := r.Scan(&p.FilePath, &p.FileHash, &p.TotalChunks, &p.ChunksProcessed, &p.LastChunkEnd,
		&status, &p.ErrorMessage, &p.StartedAt, &p.LastUpdated, &completedAt)
	if err != nil {
		return p, err
	}
	p.Status = domain.ProgressStatus(status)
	if completedAt.Valid {
		p.CompletedAt = &completedAt.Time
	}
	return p, nil
}
