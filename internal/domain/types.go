// Package domain holds the entities shared across the ingestion
// pipeline, the store, and the query path. No package here imports
// anything from store, pipeline, or search — this is the leaf of the
// dependency graph.
package domain

import "time"

// Priority orders admission into the pipeline. Lower numeric value
// runs first; ties are broken by insertion order.
type Priority int

const (
	PriorityUrgent Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityUrgent:
		return "urgent"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// ProgressStatus is the lifecycle state of one file's ingestion.
type ProgressStatus string

const (
	StatusInProgress ProgressStatus = "in_progress"
	StatusCompleted  ProgressStatus = "completed"
	StatusFailed     ProgressStatus = "failed"
	StatusRejected   ProgressStatus = "rejected"
)

// Document is a file identified by (FilePath, FileHash); the unit of
// atomic replace and deletion.
type Document struct {
	ID               int64
	FilePath         string
	FileHash         string
	IndexedAt        time.Time
	ExtractionMethod string
}

// Chunk is a bounded slice of a document's text, associated with one
// embedding and one lexical-index entry after a successful add.
type Chunk struct {
	ID         int64
	DocumentID int64
	Content    string
	Page       *int
	ChunkIndex int
}

// Embedding is the fixed-dimension vector representation of a chunk.
type Embedding struct {
	ChunkID int64
	Vector  []float32
}

// Progress is one row of the processing_progress table.
type Progress struct {
	FilePath        string
	FileHash        string
	TotalChunks     int64
	ChunksProcessed int64
	Status          ProgressStatus
	LastChunkEnd    int64
	ErrorMessage    string
	StartedAt       time.Time
	LastUpdated     time.Time
	CompletedAt     *time.Time
}

// GraphNode is an opaque entity in the Obsidian-style knowledge graph,
// e.g. a note or a tag.
type GraphNode struct {
	NodeID   string
	NodeType string
	Title    string
	Content  string
	Metadata map[string]string
}

// GraphEdge is a directed, typed relationship between two nodes.
// Multiple edges per (source, target) pair are permitted.
type GraphEdge struct {
	ID       int64
	SourceID string
	TargetID string
	EdgeType string
	Metadata map[string]string
}

// GraphStats summarizes the current state of the knowledge graph for
// status reporting.
type GraphStats struct {
	NodesByType map[string]int64
	EdgesByType map[string]int64
	TotalNodes  int64
	TotalEdges  int64
}

// ChunkGraphLink is a many-to-many association between a chunk and a
// graph node.
type ChunkGraphLink struct {
	ChunkID  int64
	NodeID   string
	LinkType string
}

// Stats summarizes the current state of the store.
type Stats struct {
	IndexedDocuments int64
	TotalChunks      int64
}

// DeleteResult reports the outcome of deleting one document.
type DeleteResult struct {
	Found            bool
	DocumentDeleted  bool
	ChunksDeleted    int64
}

// SearchResult is a single fused or unfused hit returned to the query
// path.
type SearchResult struct {
	ChunkID  int64
	Content  string
	FilePath string
	Page     *int
	Score    float64
}

// QueueItem is one unit of admission work.
type QueueItem struct {
	Path     string
	Priority Priority
	Force    bool
}
