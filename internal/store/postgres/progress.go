package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/katanaquant/ragengine/internal/domain"
	"github.com/katanaquant/ragengine/internal/store"
)

func (s *Store) StartProcessing(ctx context.Context, path, hash string, totalChunks int) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO processing_progress(file_path, file_hash, total_chunks, chunks_processed, last_chunk_end, status, started_at, last_updated)
		VALUES ($1, $2, $3, 0, 0, 'in_progress', $4, $4)
		ON CONFLICT (file_path) DO UPDATE SET
			file_hash=EXCLUDED.file_hash, total_chunks=EXCLUDED.total_chunks,
			chunks_processed=0, last_chunk_end=0, status='in_progress',
			error_message=NULL, started_at=EXCLUDED.started_at, last_updated=EXCLUDED.last_updated,
			completed_at=NULL`,
		path, hash, totalChunks, now)
	if err != nil {
		return fmt.Errorf("postgres: start_processing: %w", err)
	}
	return nil
}

func (s *Store) UpdateProgress(ctx context.Context, path string, chunksProcessed, lastChunkEnd int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE processing_progress SET chunks_processed = $1, last_chunk_end = $2, last_updated = $3
		WHERE file_path = $4`, chunksProcessed, lastChunkEnd, time.Now().UTC(), path)
	if err != nil {
		return fmt.Errorf("postgres: update_progress: %w", err)
	}
	return nil
}

func (s *Store) MarkCompleted(ctx context.Context, path string) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		UPDATE processing_progress SET status = 'completed', last_updated = $1, completed_at = $1
		WHERE file_path = $2`, now, path)
	if err != nil {
		return fmt.Errorf("postgres: mark_completed: %w", err)
	}
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, path, reason string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE processing_progress SET status = 'failed', error_message = $1, last_updated = $2
		WHERE file_path = $3`, reason, time.Now().UTC(), path)
	if err != nil {
		return fmt.Errorf("postgres: mark_failed: %w", err)
	}
	return nil
}

func (s *Store) MarkRejected(ctx context.Context, path, reason string) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO processing_progress(file_path, file_hash, status, error_message, started_at, last_updated)
		VALUES ($1, '', 'rejected', $2, $3, $3)
		ON CONFLICT (file_path) DO UPDATE SET
			status='rejected', error_message=EXCLUDED.error_message, last_updated=EXCLUDED.last_updated`,
		path, reason, now)
	if err != nil {
		return fmt.Errorf("postgres: mark_rejected: %w", err)
	}
	return nil
}

func (s *Store) GetProgress(ctx context.Context, path string) (domain.Progress, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT file_path, file_hash, total_chunks, chunks_processed, last_chunk_end, status,
		       COALESCE(error_message, ''), started_at, last_updated, completed_at
		FROM processing_progress WHERE file_path = $1`, path)
	p, err := scanProgress(row)
	if errors.Is(err, pgx.ErrNoRows) {
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
	rows, err := s.pool.Query(ctx, `
		SELECT file_path, file_hash, total_chunks, chunks_processed, last_chunk_end, status,
		       COALESCE(error_message, ''), started_at, last_updated, completed_at
		FROM processing_progress WHERE status = $1`, string(status))
	if err != nil {
		return nil, fmt.Errorf("postgres: query progress by status: %w", err)
	}
	defer rows.Close()

	var out []domain.Progress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PreloadAllProgress exists to satisfy store.ProgressStore; unlike the
// embedded backend, a server backend has no in-process cache to warm,
// so every lookup already hits Postgres directly.
func (s *Store) PreloadAllProgress(ctx context.Context) (map[string]domain.Progress, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT file_path, file_hash, total_chunks, chunks_processed, last_chunk_end, status,
		       COALESCE(error_message, ''), started_at, last_updated, completed_at
		FROM processing_progress`)
	if err != nil {
		return nil, fmt.Errorf("postgres: preload progress: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Progress)
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out[p.FilePath] = p
	}
	return out, rows.Err()
}

// DeleteProgress removes a file's progress row entirely, used by the
// sanitizer when a converted-EPUB orphan is exempt from re-queueing.
func (s *Store) DeleteProgress(ctx context.Context, path string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM processing_progress WHERE file_path = $1`, path)
	if err != nil {
		return fmt.Errorf("postgres: delete progress: %w", err)
	}
	return nil
}

func (s *Store) ClearProgressCache() {}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgress(r rowScanner) (domain.Progress, error) {
	var p domain.Progress
	var status string
	var completedAt *time.Time
	err := r.Scan(&p.FilePath, &p.FileHash, &p.TotalChunks, &p.ChunksProcessed, &p.LastChunkEnd,
		&status, &p.ErrorMessage, &p.StartedAt, &p.LastUpdated, &completedAt)
	if err != nil {
		return p, err
	}
	p.Status = domain.ProgressStatus(status)
	p.CompletedAt = completedAt
	return p, nil
}
