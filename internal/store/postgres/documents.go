package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/katanaquant/ragengine/internal/domain"
	"github.com/katanaquant/ragengine/internal/metrics"
	"github.com/katanaquant/ragengine/internal/store"
	"github.com/katanaquant/ragengine/internal/store/bm25"
)

// IsDocumentIndexed checks for a document by hash, allowing a file to
// move on disk without forcing a reindex. See the embedded backend's
// IsDocumentIndexed for the move/duplicate rules this mirrors.
func (s *Store) IsDocumentIndexed(ctx context.Context, path, hash string) (bool, error) {
	var storedPath string
	err := s.pool.QueryRow(ctx, `SELECT file_path FROM documents WHERE file_hash = $1 LIMIT 1`, hash).Scan(&storedPath)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("postgres: is_document_indexed: %w", err)
	}
	if storedPath == path {
		return true, nil
	}

	if _, statErr := os.Stat(storedPath); statErr == nil {
		return true, nil
	}

	if err := s.relocateDocument(ctx, storedPath, path); err != nil {
		return false, fmt.Errorf("postgres: relocate moved document: %w", err)
	}
	return true, nil
}

// relocateDocument mirrors the embedded backend's move handling: drop
// the stale source row if something already occupies the destination
// path, otherwise rename through a temporary token to avoid tripping
// the UNIQUE(file_path) constraint mid-move.
func (s *Store) relocateDocument(ctx context.Context, oldPath, newPath string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var destExists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM documents WHERE file_path = $1)`, newPath).Scan(&destExists); err != nil {
		return fmt.Errorf("check destination: %w", err)
	}

	if destExists {
		if _, err := tx.Exec(ctx, `DELETE FROM graph_nodes WHERE node_id = $1`, oldPath); err != nil {
			return fmt.Errorf("drop stale source graph node: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE file_path = $1`, oldPath); err != nil {
			return fmt.Errorf("drop stale source row: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM processing_progress WHERE file_path = $1`, oldPath); err != nil {
			return fmt.Errorf("drop stale source progress: %w", err)
		}
		return tx.Commit(ctx)
	}

	tempPath := fmt.Sprintf("__temp_move_%s__", uuid.NewString())
	for _, stmt := range []string{
		`UPDATE documents SET file_path = $1 WHERE file_path = $2`,
		`UPDATE processing_progress SET file_path = $1 WHERE file_path = $2`,
	} {
		if _, err := tx.Exec(ctx, stmt, tempPath, oldPath); err != nil {
			return fmt.Errorf("move to temp path: %w", err)
		}
	}
	for _, stmt := range []string{
		`UPDATE documents SET file_path = $1 WHERE file_path = $2`,
		`UPDATE processing_progress SET file_path = $1 WHERE file_path = $2`,
	} {
		if _, err := tx.Exec(ctx, stmt, newPath, tempPath); err != nil {
			return fmt.Errorf("move to final path: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE graph_nodes SET node_id = $1 WHERE node_id = $2`, newPath, oldPath); err != nil {
		return fmt.Errorf("relocate graph node: %w", err)
	}

	return tx.Commit(ctx)
}

// AddDocument performs the same five-step atomic replace as the
// embedded backend, inside a single Postgres transaction: pgvector
// rows live in the same relational transaction as everything else,
// so unlike the embedded backend's out-of-tx HNSW mutation there is
// no post-commit step here.
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
	if len(input.Chunks) != len(input.Embeddings) {
		return fmt.Errorf("postgres: chunk/embedding count mismatch: %d vs %d", len(input.Chunks), len(input.Embeddings))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM graph_nodes WHERE node_id = $1`, input.FilePath); err != nil {
		return fmt.Errorf("postgres: delete old graph node: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE file_path = $1`, input.FilePath); err != nil {
		return fmt.Errorf("postgres: delete old document: %w", err)
	}

	var docID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO documents(file_path, file_hash, extraction_method) VALUES ($1, $2, $3) RETURNING id`,
		input.FilePath, input.FileHash, input.ExtractionMethod).Scan(&docID)
	if err != nil {
		return fmt.Errorf("postgres: insert document: %w", err)
	}

	for i, chunk := range input.Chunks {
		var chunkID int64
		err := tx.QueryRow(ctx,
			`INSERT INTO chunks(document_id, content, page, chunk_index) VALUES ($1, $2, $3, $4) RETURNING id`,
			docID, chunk.Content, chunk.Page, chunk.ChunkIndex).Scan(&chunkID)
		if err != nil {
			return fmt.Errorf("postgres: insert chunk %d: %w", i, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO vec_chunks(chunk_id, embedding) VALUES ($1, $2::vector)`,
			chunkID, toVectorLiteral(input.Embeddings[i])); err != nil {
			return fmt.Errorf("postgres: insert vector %d: %w", i, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO fts_chunks(chunk_id, content) VALUES ($1, $2)`,
			chunkID, chunk.Content); err != nil {
			return fmt.Errorf("postgres: insert fts row %d: %w", i, err)
		}
	}

	if err := upsertGraphTx(ctx, tx, input); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func upsertGraphTx(ctx context.Context, tx pgx.Tx, input store.AddDocumentInput) error {
	for _, node := range input.GraphNodes {
		_, err := tx.Exec(ctx, `
			INSERT INTO graph_nodes(node_id, node_type, title, content, metadata)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (node_id) DO UPDATE SET
				node_type=EXCLUDED.node_type, title=EXCLUDED.title,
				content=EXCLUDED.content, metadata=EXCLUDED.metadata`,
			node.NodeID, node.NodeType, node.Title, node.Content, metadataOrEmpty(node.Metadata))
		if err != nil {
			return fmt.Errorf("postgres: upsert graph node: %w", err)
		}
	}
	for _, edge := range input.GraphEdges {
		_, err := tx.Exec(ctx,
			`INSERT INTO graph_edges(source_id, target_id, edge_type, metadata) VALUES ($1, $2, $3, $4)`,
			edge.SourceID, edge.TargetID, edge.EdgeType, metadataOrEmpty(edge.Metadata))
		if err != nil {
			return fmt.Errorf("postgres: insert graph edge: %w", err)
		}
	}
	return nil
}

func metadataOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

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
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return store.DeleteResult{}, fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var chunksDeleted int64
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM chunks c JOIN documents d ON d.id = c.document_id WHERE d.file_path = $1`,
		path).Scan(&chunksDeleted)
	if err != nil {
		return store.DeleteResult{}, fmt.Errorf("postgres: count chunks: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM documents WHERE file_path = $1`, path)
	if err != nil {
		return store.DeleteResult{}, fmt.Errorf("postgres: delete document: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return store.DeleteResult{}, fmt.Errorf("postgres: commit: %w", err)
	}

	found := tag.RowsAffected() > 0
	return store.DeleteResult{
		Found:           found,
		DocumentDeleted: found,
		ChunksDeleted:   chunksDeleted,
	}, nil
}

func (s *Store) GetStats(ctx context.Context) (domain.Stats, error) {
	var stats domain.Stats
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&stats.IndexedDocuments); err != nil {
		return stats, fmt.Errorf("postgres: stats documents: %w", err)
	}
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&stats.TotalChunks); err != nil {
		return stats, fmt.Errorf("postgres: stats chunks: %w", err)
	}
	return stats, nil
}

func (s *Store) QueryDocumentsWithChunks(ctx context.Context) ([]store.DocumentSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT d.file_path, d.indexed_at, COUNT(c.id)
		FROM documents d LEFT JOIN chunks c ON c.document_id = d.id
		GROUP BY d.id
		ORDER BY d.file_path`)
	if err != nil {
		return nil, fmt.Errorf("postgres: query documents: %w", err)
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
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.content, d.file_path, c.page, 1 - (v.embedding <=> $1::vector) AS score
		FROM vec_chunks v
		JOIN chunks c ON c.id = v.chunk_id
		JOIN documents d ON d.id = c.document_id
		ORDER BY v.embedding <=> $1::vector
		LIMIT $2`, toVectorLiteral(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("postgres: vector search: %w", err)
	}
	defer rows.Close()
	return scanSearchResults(rows)
}

func (s *Store) LexicalSearch(ctx context.Context, queryText string, topK int) ([]domain.SearchResult, error) {
	if len(bm25.Tokenize(queryText)) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.content, d.file_path, c.page, ts_rank(f.tsv, plainto_tsquery('english', $1)) AS score
		FROM fts_chunks f
		JOIN chunks c ON c.id = f.chunk_id
		JOIN documents d ON d.id = c.document_id
		WHERE f.tsv @@ plainto_tsquery('english', $1)
		ORDER BY score DESC
		LIMIT $2`, queryText, topK)
	if err != nil {
		return nil, fmt.Errorf("postgres: lexical search: %w", err)
	}
	defer rows.Close()
	return scanSearchResults(rows)
}

// RefreshKeywordIndex is a no-op on Postgres: tsvector columns are
// generated and the GIN index over them is maintained automatically
// by the server on every write. It exists so callers can invoke the
// same interface regardless of backend.
func (s *Store) RefreshKeywordIndex(ctx context.Context) error {
	return nil
}

func scanSearchResults(rows pgx.Rows) ([]domain.SearchResult, error) {
	var out []domain.SearchResult
	for rows.Next() {
		var sr domain.SearchResult
		var page *int
		if err := rows.Scan(&sr.ChunkID, &sr.Content, &sr.FilePath, &page, &sr.Score); err != nil {
			return nil, err
		}
		sr.Page = page
		out = append(out, sr)
	}
	return out, rows.Err()
}
