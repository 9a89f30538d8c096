// Package store defines the backend-agnostic persistence contract
// (documents, chunks, vectors, lexical index, graph, progress) that
// both the embedded (SQLite + HNSW + FTS5) and server-based (Postgres
// + pgvector) backends implement. The pipeline, search engine, and
// sanitizer depend only on this package, never on a concrete backend.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/katanaquant/ragengine/internal/domain"
)

// ErrNotFound is returned by lookups that find nothing, so callers
// can distinguish "not indexed" from a genuine I/O failure.
var ErrNotFound = errors.New("store: not found")

// AddDocumentInput is everything add_document needs to perform its
// atomic replace transaction for one file.
type AddDocumentInput struct {
	FilePath         string
	FileHash         string
	ExtractionMethod string
	Chunks           []domain.Chunk
	Embeddings       [][]float32
	GraphNodes       []domain.GraphNode
	GraphEdges       []domain.GraphEdge
}

// DeleteResult reports what delete_document actually removed.
type DeleteResult = domain.DeleteResult

// DocumentSummary is one row of query_documents_with_chunks.
type DocumentSummary struct {
	FilePath   string
	IndexedAt  time.Time
	ChunkCount int
}

// SearchQuery parameterizes the hybrid search path; VectorOnly limits
// the backend to the vector index only, used when the caller has
// already fused results from a separate lexical index (see
// internal/search, which performs the RRF fusion above this layer).
type SearchQuery struct {
	Embedding []float32
	TopK      int
	VectorOnly bool
}

// Backend is the full contract a persistence implementation exposes.
// Mutating operations (AddDocument, DeleteDocument) and GetStats are
// expected to be internally synchronized so concurrent pipeline
// workers never interleave a transaction's steps.
type Backend interface {
	IsDocumentIndexed(ctx context.Context, path, hash string) (bool, error)
	AddDocument(ctx context.Context, input AddDocumentInput) error
	DeleteDocument(ctx context.Context, path string) (DeleteResult, error)
	GetStats(ctx context.Context) (domain.Stats, error)
	QueryDocumentsWithChunks(ctx context.Context) ([]DocumentSummary, error)

	VectorSearch(ctx context.Context, embedding []float32, topK int) ([]domain.SearchResult, error)
	LexicalSearch(ctx context.Context, queryText string, topK int) ([]domain.SearchResult, error)

	ProgressStore
	GraphStore

	Close() error
}

// ProgressStore persists the resumable per-file indexing state
// machine described in §4.4: in_progress -> completed|failed|rejected.
type ProgressStore interface {
	StartProcessing(ctx context.Context, path, hash string, totalChunks int) error
	UpdateProgress(ctx context.Context, path string, chunksProcessed, lastChunkEnd int) error
	MarkCompleted(ctx context.Context, path string) error
	MarkFailed(ctx context.Context, path, reason string) error
	MarkRejected(ctx context.Context, path, reason string) error
	GetProgress(ctx context.Context, path string) (domain.Progress, error)
	GetIncompleteFiles(ctx context.Context) ([]domain.Progress, error)
	GetRejectedFiles(ctx context.Context) ([]domain.Progress, error)
	PreloadAllProgress(ctx context.Context) (map[string]domain.Progress, error)
	ClearProgressCache()
	DeleteProgress(ctx context.Context, path string) error
}

// GraphStore persists the Obsidian-style link graph. Implementations
// for non-graph inputs may store nothing and return empty results;
// the tables still exist so callers never need a type switch.
type GraphStore interface {
	UpsertGraphNode(ctx context.Context, node domain.GraphNode) error
	UpsertGraphEdge(ctx context.Context, edge domain.GraphEdge) error
	DeleteGraphNode(ctx context.Context, nodeID string) error
	GraphNodesByType(ctx context.Context, nodeType string) ([]domain.GraphNode, error)

	// CleanupOrphanTags removes tag nodes with no incoming "tag" edge;
	// tags are a shared resource, only deleted once nothing references
	// them anymore.
	CleanupOrphanTags(ctx context.Context) error
	// CleanupOrphanPlaceholders removes note_ref placeholder nodes
	// (created for a [[wikilink]] target that doesn't exist yet) once
	// no "wikilink" edge still points at them.
	CleanupOrphanPlaceholders(ctx context.Context) error
	// ClearGraph deletes every graph node and edge, used before a full
	// reindex rebuilds the graph from scratch.
	ClearGraph(ctx context.Context) error
	GraphStats(ctx context.Context) (domain.GraphStats, error)
}
