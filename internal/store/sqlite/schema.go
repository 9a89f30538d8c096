package sqlite

const schemaDDL = `
CREATE TABLE IF NOT EXISTS documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_path TEXT NOT NULL UNIQUE,
	file_hash TEXT NOT NULL,
	indexed_at TIMESTAMP NOT NULL,
	extraction_method TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	page INTEGER,
	chunk_index INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);

CREATE VIRTUAL TABLE IF NOT EXISTS fts_chunks USING fts5(
	content,
	tokenize='unicode61'
);

CREATE TABLE IF NOT EXISTS processing_progress (
	file_path TEXT PRIMARY KEY,
	file_hash TEXT NOT NULL,
	total_chunks INTEGER NOT NULL,
	chunks_processed INTEGER NOT NULL DEFAULT 0,
	last_chunk_end INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error_message TEXT,
	started_at TIMESTAMP NOT NULL,
	last_updated TIMESTAMP NOT NULL,
	completed_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_progress_status ON processing_progress(status);

CREATE TABLE IF NOT EXISTS graph_nodes (
	node_id TEXT PRIMARY KEY,
	node_type TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT,
	metadata TEXT
);

CREATE TABLE IF NOT EXISTS graph_edges (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id TEXT NOT NULL REFERENCES graph_nodes(node_id) ON DELETE CASCADE,
	target_id TEXT NOT NULL REFERENCES graph_nodes(node_id) ON DELETE CASCADE,
	edge_type TEXT NOT NULL,
	metadata TEXT
);
CREATE INDEX IF NOT EXISTS idx_graph_edges_source ON graph_edges(source_id);

CREATE TABLE IF NOT EXISTS chunk_graph_links (
	chunk_id INTEGER NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
	node_id TEXT NOT NULL REFERENCES graph_nodes(node_id) ON DELETE CASCADE,
	link_type TEXT NOT NULL,
	PRIMARY KEY (chunk_id, node_id)
);
`

func (s *Store) migrate() error {
	_, err := s.db.Exec(schemaDDL)
	return err
}
