// Package postgres is the server-based store.Backend: Postgres with
// the pgvector extension for vector search, tsvector/GIN for lexical
// search, and plain relational tables for documents, chunks, progress
// and the link graph. It mirrors internal/store/sqlite's contract
// exactly so the pipeline, search engine, and sanitizer never branch
// on which backend is wired in.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/katanaquant/ragengine/internal/metrics"
	"github.com/katanaquant/ragengine/internal/ragerr"
	"github.com/katanaquant/ragengine/internal/store"
)

// Settings configures the server backend. Collector and Tracer
// default to their no-op variants if nil.
type Settings struct {
	ConnString string
	Dimensions int
	Collector  *metrics.Collector
	Tracer     *metrics.TracerProvider
}

// Store implements store.Backend against a Postgres database reached
// through a pgxpool connection pool.
type Store struct {
	pool *pgxpool.Pool
	dim  int

	collector *metrics.Collector
	tracer    *metrics.TracerProvider
}

var _ store.Backend = (*Store)(nil)

// Open connects, creates the vector extension if missing, and
// migrates the schema.
func Open(ctx context.Context, settings Settings) (*Store, error) {
	pool, err := pgxpool.New(ctx, settings.ConnString)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	collector := settings.Collector
	if collector == nil {
		collector = metrics.NoopCollector()
	}
	tracer := settings.Tracer
	if tracer == nil {
		tracer = metrics.NoopTracerProvider()
	}

	s := &Store{pool: pool, dim: settings.Dimensions, collector: collector, tracer: tracer}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", ragerr.Wrap(ragerr.KindSchemaMigrationFailed, err))
	}
	return s, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	vecType := "vector"
	if s.dim > 0 {
		vecType = fmt.Sprintf("vector(%d)", s.dim)
	}
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS documents (
			id BIGSERIAL PRIMARY KEY,
			file_path TEXT NOT NULL UNIQUE,
			file_hash TEXT NOT NULL,
			indexed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			extraction_method TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id BIGSERIAL PRIMARY KEY,
			document_id BIGINT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			page INT,
			chunk_index INT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS vec_chunks (
			chunk_id BIGINT PRIMARY KEY REFERENCES chunks(id) ON DELETE CASCADE,
			embedding %s NOT NULL
		)`, vecType),
		`CREATE TABLE IF NOT EXISTS fts_chunks (
			chunk_id BIGINT PRIMARY KEY REFERENCES chunks(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			tsv tsvector GENERATED ALWAYS AS (to_tsvector('english', content)) STORED
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fts_chunks_tsv ON fts_chunks USING GIN(tsv)`,
		`CREATE TABLE IF NOT EXISTS processing_progress (
			file_path TEXT PRIMARY KEY,
			file_hash TEXT NOT NULL,
			total_chunks BIGINT NOT NULL DEFAULT 0,
			chunks_processed BIGINT NOT NULL DEFAULT 0,
			last_chunk_end BIGINT NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			error_message TEXT,
			started_at TIMESTAMPTZ NOT NULL,
			last_updated TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_progress_status ON processing_progress(status)`,
		`CREATE TABLE IF NOT EXISTS graph_nodes (
			node_id TEXT PRIMARY KEY,
			node_type TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb
		)`,
		`CREATE TABLE IF NOT EXISTS graph_edges (
			id BIGSERIAL PRIMARY KEY,
			source_id TEXT NOT NULL REFERENCES graph_nodes(node_id) ON DELETE CASCADE,
			target_id TEXT NOT NULL REFERENCES graph_nodes(node_id) ON DELETE CASCADE,
			edge_type TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb
		)`,
		`CREATE INDEX IF NOT EXISTS idx_graph_edges_source ON graph_edges(source_id)`,
		`CREATE TABLE IF NOT EXISTS chunk_graph_links (
			chunk_id BIGINT NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
			node_id TEXT NOT NULL REFERENCES graph_nodes(node_id) ON DELETE CASCADE,
			link_type TEXT NOT NULL,
			PRIMARY KEY (chunk_id, node_id)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func toVectorLiteral(v []float32) string {
	b := strings.Builder{}
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g", x)
	}
	b.WriteByte(']')
	return b.String()
}
