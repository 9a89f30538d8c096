// Package sqlite is the embedded store.Backend: SQLite (via
// modernc.org/sqlite, pure Go, no CGO) for documents/chunks/progress/
// graph metadata, FTS5 for lexical search, and an in-process
// internal/store/hnsw index for vector search. A single mutex
// serializes add/delete/stats exactly as store.Backend requires.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/katanaquant/ragengine/internal/domain"
	"github.com/katanaquant/ragengine/internal/metrics"
	"github.com/katanaquant/ragengine/internal/ragerr"
	"github.com/katanaquant/ragengine/internal/store"
	"github.com/katanaquant/ragengine/internal/store/bm25"
	"github.com/katanaquant/ragengine/internal/store/hnsw"
)

// Settings configures the embedded backend. Collector and Tracer
// default to their no-op variants if nil.
type Settings struct {
	Path       string // empty means in-memory, for tests
	Dimensions int
	ANN        hnsw.Settings
	Collector  *metrics.Collector
	Tracer     *metrics.TracerProvider
}

// Store implements store.Backend against a single SQLite database.
type Store struct {
	mu      sync.Mutex
	db      *sql.DB
	vectors *hnsw.Index

	progressMu    sync.RWMutex
	progressCache map[string]domain.Progress

	collector *metrics.Collector
	tracer    *metrics.TracerProvider
}

var _ store.Backend = (*Store)(nil)

// Open creates (if needed) and migrates the database at settings.Path.
func Open(settings Settings) (*Store, error) {
	dsn := ":memory:"
	if settings.Path != "" {
		if err := os.MkdirAll(filepath.Dir(settings.Path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
		dsn = settings.Path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: pragma %q: %w", p, err)
		}
	}

	collector := settings.Collector
	if collector == nil {
		collector = metrics.NoopCollector()
	}
	tracer := settings.Tracer
	if tracer == nil {
		tracer = metrics.NoopTracerProvider()
	}

	s := &Store{
		db:            db,
		vectors:       hnsw.New(settings.Dimensions, settings.ANN),
		progressCache: make(map[string]domain.Progress),
		collector:     collector,
		tracer:        tracer,
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", ragerr.Wrap(ragerr.KindSchemaMigrationFailed, err))
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// IsDocumentIndexed checks for a document by hash, allowing a file to
// move on disk without forcing a reindex. If the hash is stored under
// a different path, a still-present stored path means the new path is
// a duplicate (content unchanged, skip it); a missing stored path
// means the file moved, so the stored row is relocated to the new
// path in place.
func (s *Store) IsDocumentIndexed(ctx context.Context, path, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var storedPath string
	err := s.db.QueryRowContext(ctx, `SELECT file_path FROM documents WHERE file_hash = ? LIMIT 1`, hash).Scan(&storedPath)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: is_document_indexed: %w", err)
	}
	if storedPath == path {
		return true, nil
	}

	if _, statErr := os.Stat(storedPath); statErr == nil {
		return true, nil
	}

	if err := s.relocateDocument(ctx, storedPath, path); err != nil {
		return false, fmt.Errorf("sqlite: relocate moved document: %w", err)
	}
	return true, nil
}

// relocateDocument updates a moved file's stored path in documents and
// processing_progress. If a row already exists at the destination
// (e.g. the destination was independently indexed first), the stale
// source row is dropped instead of renamed, per the "last write wins"
// rule for move collisions. Otherwise the rename routes through a
// temporary token so the UNIQUE(file_path) constraint on documents is
// never briefly violated.
func (s *Store) relocateDocument(ctx context.Context, oldPath, newPath string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var destExists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE file_path = ?`, newPath).Scan(&destExists); err != nil {
		return fmt.Errorf("check destination: %w", err)
	}

	if destExists > 0 {
		if err := s.deleteGraphNodeForPath(ctx, tx, oldPath); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE file_path = ?`, oldPath); err != nil {
			return fmt.Errorf("drop stale source row: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM processing_progress WHERE file_path = ?`, oldPath); err != nil {
			return fmt.Errorf("drop stale source progress: %w", err)
		}
		return tx.Commit()
	}

	tempPath := fmt.Sprintf("__temp_move_%s__", uuid.NewString())
	for _, stmt := range []string{
		`UPDATE documents SET file_path = ? WHERE file_path = ?`,
		`UPDATE processing_progress SET file_path = ? WHERE file_path = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, tempPath, oldPath); err != nil {
			return fmt.Errorf("move to temp path: %w", err)
		}
	}
	for _, stmt := range []string{
		`UPDATE documents SET file_path = ? WHERE file_path = ?`,
		`UPDATE processing_progress SET file_path = ? WHERE file_path = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, newPath, tempPath); err != nil {
			return fmt.Errorf("move to final path: %w", err)
		}
	}

	var oldNodeExists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM graph_nodes WHERE node_id = ?`, oldPath).Scan(&oldNodeExists); err != nil {
		return fmt.Errorf("check graph node: %w", err)
	}
	if oldNodeExists > 0 {
		if _, err := tx.ExecContext(ctx, `UPDATE graph_nodes SET node_id = ? WHERE node_id = ?`, newPath, oldPath); err != nil {
			return fmt.Errorf("relocate graph node: %w", err)
		}
	}

	return tx.Commit()
}

// AddDocument performs the five-step atomic replace transaction from
// the VectorStore facade contract.
func (s *Store) AddDocument(ctx context.Context, input store.AddDocumentInput) error {
	start := time.Now()
	ctx, span := s.tracer.StartStoreSpan(ctx, "add_document")
	defer span.End()

	err := s.addDocument(ctx, input)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		metrics.RecordSpanError(span, err)
	}
	s.collector.RecordStoreTx("add_document", outcome, time.Since(start))
	return err
}

func (s *Store) addDocument(ctx context.Context, input store.AddDocumentInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	oldChunkIDs, err := s.chunkIDsForPath(ctx, tx, input.FilePath)
	if err != nil {
		return err
	}

	if err := s.deleteGraphNodeForPath(ctx, tx, input.FilePath); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE file_path = ?`, input.FilePath); err != nil {
		return fmt.Errorf("sqlite: delete old document: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO documents(file_path, file_hash, indexed_at, extraction_method) VALUES (?, ?, ?, ?)`,
		input.FilePath, input.FileHash, time.Now().UTC(), input.ExtractionMethod)
	if err != nil {
		return fmt.Errorf("sqlite: insert document: %w", err)
	}
	docID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: document id: %w", err)
	}

	if len(input.Chunks) != len(input.Embeddings) {
		return fmt.Errorf("sqlite: chunk/embedding count mismatch: %d vs %d", len(input.Chunks), len(input.Embeddings))
	}

	chunkStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks(document_id, content, page, chunk_index) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare chunk insert: %w", err)
	}
	defer chunkStmt.Close()

	ftsStmt, err := tx.PrepareContext(ctx, `INSERT INTO fts_chunks(rowid, content) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare fts insert: %w", err)
	}
	defer ftsStmt.Close()

	newChunkIDs := make([]string, 0, len(input.Chunks))
	for i, chunk := range input.Chunks {
		var page sql.NullInt64
		if chunk.Page != nil {
			page = sql.NullInt64{Int64: int64(*chunk.Page), Valid: true}
		}
		res, err := chunkStmt.ExecContext(ctx, docID, chunk.Content, page, chunk.ChunkIndex)
		if err != nil {
			return fmt.Errorf("sqlite: insert chunk %d: %w", i, err)
		}
		chunkID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("sqlite: chunk id %d: %w", i, err)
		}
		if _, err := ftsStmt.ExecContext(ctx, chunkID, strings.Join(bm25.Tokenize(chunk.Content), " ")); err != nil {
			return fmt.Errorf("sqlite: insert fts row %d: %w", i, err)
		}
		newChunkIDs = append(newChunkIDs, chunkKey(chunkID))
	}

	if err := s.upsertGraphTx(ctx, tx, input); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}

	for _, id := range oldChunkIDs {
		s.vectors.Delete(id)
	}
	for i, id := range newChunkIDs {
		if err := s.vectors.Add(id, input.Embeddings[i]); err != nil {
			return fmt.Errorf("sqlite: add vector for chunk %s: %w", id, err)
		}
	}
	return nil
}

func chunkKey(id int64) string { return fmt.Sprintf("%d", id) }

func (s *Store) chunkIDsForPath(ctx context.Context, tx *sql.Tx, path string) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT c.id FROM chunks c JOIN documents d ON d.id = c.document_id WHERE d.file_path = ?`, path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: old chunk ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, chunkKey(id))
	}
	return ids, rows.Err()
}

func (s *Store) deleteGraphNodeForPath(ctx context.Context, tx *sql.Tx, path string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM graph_nodes WHERE node_id = ?`, path)
	if err != nil {
		return fmt.Errorf("sqlite: delete graph node: %w", err)
	}
	return nil
}

func (s *Store) upsertGraphTx(ctx context.Context, tx *sql.Tx, input store.AddDocumentInput) error {
	for _, node := range input.GraphNodes {
		meta, err := json.Marshal(node.Metadata)
		if err != nil {
			return fmt.Errorf("sqlite: marshal graph node metadata: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO graph_nodes(node_id, node_type, title, content, metadata) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(node_id) DO UPDATE SET node_type=excluded.node_type, title=excluded.title,
			 content=excluded.content, metadata=excluded.metadata`,
			node.NodeID, node.NodeType, node.Title, node.Content, string(meta))
		if err != nil {
			return fmt.Errorf("sqlite: upsert graph node: %w", err)
		}
	}
	for _, edge := range input.GraphEdges {
		meta, err := json.Marshal(edge.Metadata)
		if err != nil {
			return fmt.Errorf("sqlite: marshal graph edge metadata: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO graph_edges(source_id, target_id, edge_type, metadata) VALUES (?, ?, ?, ?)`,
			edge.SourceID, edge.TargetID, edge.EdgeType, string(meta))
		if err != nil {
			return fmt.Errorf("sqlite: insert graph edge: %w", err)
		}
	}
	return nil
}

// DeleteDocument removes a document, its FTS rows, (via ON DELETE
// CASCADE) its chunks and graph links, plus the corresponding vectors.
func (s *Store) DeleteDocument(ctx context.Context, path string) (store.DeleteResult, error) {
	start := time.Now()
	ctx, span := s.tracer.StartStoreSpan(ctx, "delete_document")
	defer span.End()

	result, err := s.deleteDocument(ctx, path)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		metrics.RecordSpanError(span, err)
	}
	s.collector.RecordStoreTx("delete_document", outcome, time.Since(start))
	return result, err
}

func (s *Store) deleteDocument(ctx context.Context, path string) (store.DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.DeleteResult{}, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	chunkIDs, err := s.chunkIDsForPath(ctx, tx, path)
	if err != nil {
		return store.DeleteResult{}, err
	}
	if len(chunkIDs) == 0 {
		var exists int
		_ = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE file_path = ?`, path).Scan(&exists)
		if exists == 0 {
			return store.DeleteResult{Found: false}, nil
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM fts_chunks WHERE rowid IN (SELECT c.id FROM chunks c JOIN documents d ON d.id = c.document_id WHERE d.file_path = ?)`, path); err != nil {
		return store.DeleteResult{}, fmt.Errorf("sqlite: delete fts rows: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE file_path = ?`, path)
	if err != nil {
		return store.DeleteResult{}, fmt.Errorf("sqlite: delete document: %w", err)
	}
	affected, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return store.DeleteResult{}, fmt.Errorf("sqlite: commit: %w", err)
	}

	for _, id := range chunkIDs {
		s.vectors.Delete(id)
	}

	return store.DeleteResult{
		Found:           affected > 0,
		DocumentDeleted: affected > 0,
		ChunksDeleted:   int64(len(chunkIDs)),
	}, nil
}

func (s *Store) GetStats(ctx context.Context) (domain.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats domain.Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&stats.IndexedDocuments); err != nil {
		return stats, fmt.Errorf("sqlite: stats documents: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&stats.TotalChunks); err != nil {
		return stats, fmt.Errorf("sqlite: stats chunks: %w", err)
	}
	return stats, nil
}

func (s *Store) QueryDocumentsWithChunks(ctx context.Context) ([]store.DocumentSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.file_path, d.indexed_at, COUNT(c.id)
		FROM documents d LEFT JOIN chunks c ON c.document_id = d.id
		GROUP BY d.id
		ORDER BY d.file_path`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query documents: %w", err)
	}
	defer rows.Close()

	var out []store.DocumentSummary
	for rows.Next() {
		var summary store.DocumentSummary
		if err := rows.Scan(&summary.FilePath, &summary.IndexedAt, &summary.ChunkCount); err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

func (s *Store) VectorSearch(ctx context.Context, embedding []float32, topK int) ([]domain.SearchResult, error) {
	results, err := s.vectors.Search(embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("sqlite: vector search: %w", err)
	}
	out := make([]domain.SearchResult, 0, len(results))
	for _, r := range results {
		sr, err := s.chunkByKey(ctx, r.ID)
		if err != nil {
			continue
		}
		sr.Score = 1 - float64(r.Distance)/2
		out = append(out, sr)
	}
	return out, nil
}

func (s *Store) LexicalSearch(ctx context.Context, queryText string, topK int) ([]domain.SearchResult, error) {
	match := bm25.Join(bm25.Tokenize(queryText))
	if match == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.content, d.file_path, c.page, bm25(fts_chunks) AS rank
		FROM fts_chunks f
		JOIN chunks c ON c.id = f.rowid
		JOIN documents d ON d.id = c.document_id
		WHERE fts_chunks MATCH ?
		ORDER BY rank
		LIMIT ?`, match, topK)
	if err != nil {
		return nil, fmt.Errorf("sqlite: lexical search: %w", err)
	}
	defer rows.Close()

	var out []domain.SearchResult
	for rows.Next() {
		var id int64
		var sr domain.SearchResult
		var page sql.NullInt64
		var rank float64
		if err := rows.Scan(&id, &sr.Content, &sr.FilePath, &page, &rank); err != nil {
			return nil, err
		}
		sr.ChunkID = id
		if page.Valid {
			p := int(page.Int64)
			sr.Page = &p
		}
		sr.Score = -rank // bm25() is negative; more negative is better.
		out = append(out, sr)
	}
	return out, rows.Err()
}

// RefreshKeywordIndex rebuilds the FTS5 b-tree structures from the
// shadow tables. FTS5 keeps content in sync automatically on every
// insert/delete, so this is only useful after bulk ingestion leaves
// the index fragmented, or on an explicit operator request.
func (s *Store) RefreshKeywordIndex(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO fts_chunks(fts_chunks) VALUES ('rebuild')`)
	if err != nil {
		return fmt.Errorf("sqlite: refresh keyword index: %w", err)
	}
	return nil
}

// PruneOrphanVectors removes every vector whose chunk row no longer
// exists. The ANN library's deletes are lazy (Delete only unlinks the
// ID, the graph node stays resident), so a backend that has seen many
// delete/re-add cycles accumulates dead nodes this walks off; there is
// no in-place graph rebuild in coder/hnsw, so this is the maintenance
// operation available for "rebuild the ANN index".
func (s *Store) PruneOrphanVectors(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chunks`)
	if err != nil {
		return 0, fmt.Errorf("sqlite: list chunk ids: %w", err)
	}
	live := make(map[string]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		live[chunkKey(id)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	rows.Close()

	var pruned int
	for _, id := range s.vectors.AllIDs() {
		if _, ok := live[id]; !ok {
			s.vectors.Delete(id)
			pruned++
		}
	}
	return pruned, nil
}

func (s *Store) chunkByKey(ctx context.Context, chunkID string) (domain.SearchResult, error) {
	id, err := strconv.ParseInt(chunkID, 10, 64)
	if err != nil {
		return domain.SearchResult{}, fmt.Errorf("sqlite: malformed chunk key %q: %w", chunkID, err)
	}

	var sr domain.SearchResult
	var page sql.NullInt64
	err = s.db.QueryRowContext(ctx, `
		SELECT c.id, c.content, d.file_path, c.page
		FROM chunks c JOIN documents d ON d.id = c.document_id
		WHERE c.id = ?`, id).Scan(&sr.ChunkID, &sr.Content, &sr.FilePath, &page)
	if err != nil {
		return sr, err
	}
	if page.Valid {
		p := int(page.Int64)
		sr.Page = &p
	}
	return sr, nil
}
