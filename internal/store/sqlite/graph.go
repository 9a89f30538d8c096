package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/katanaquant/ragengine/internal/domain"
)

func (s *Store) UpsertGraphNode(ctx context.Context, node domain.GraphNode) error {
	meta, err := json.Marshal(node.Metadata)
	if err != nil {
		return fmt.Errorf("sqlite: marshal graph node metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO graph_nodes(node_id, node_type, title, content, metadata)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(node_id) DO UPDATE SET
			node_type=excluded.node_type, title=excluded.title,
			content=excluded.content, metadata=excluded.metadata`,
		node.NodeID, node.NodeType, node.Title, node.Content, string(meta))
	if err != nil {
		return fmt.Errorf("sqlite: upsert graph node: %w", err)
	}
	return nil
}

func (s *Store) UpsertGraphEdge(ctx context.Context, edge domain.GraphEdge) error {
	meta, err := json.Marshal(edge.Metadata)
	if err != nil {
		return fmt.Errorf("sqlite: marshal graph edge metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO graph_edges(source_id, target_id, edge_type, metadata)
		VALUES (?, ?, ?, ?)`,
		edge.SourceID, edge.TargetID, edge.EdgeType, string(meta))
	if err != nil {
		return fmt.Errorf("sqlite: upsert graph edge: %w", err)
	}
	return nil
}

func (s *Store) DeleteGraphNode(ctx context.Context, nodeID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM graph_nodes WHERE node_id = ?`, nodeID)
	if err != nil {
		return fmt.Errorf("sqlite: delete graph node: %w", err)
	}
	return nil
}

func (s *Store) GraphNodesByType(ctx context.Context, nodeType string) ([]domain.GraphNode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT node_id, node_type, title, content, metadata
		FROM graph_nodes WHERE node_type = ?`, nodeType)
	if err != nil {
		return nil, fmt.Errorf("sqlite: graph nodes by type: %w", err)
	}
	defer rows.Close()

	var out []domain.GraphNode
	for rows.Next() {
		var n domain.GraphNode
		var content sql.NullString
		var meta string
		if err := rows.Scan(&n.NodeID, &n.NodeType, &n.Title, &content, &meta); err != nil {
			return nil, err
		}
		n.Content = content.String
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &n.Metadata); err != nil {
				return nil, fmt.Errorf("sqlite: unmarshal graph node metadata: %w", err)
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CleanupOrphanTags deletes tag nodes nothing links to anymore.
func (s *Store) CleanupOrphanTags(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM graph_nodes
		WHERE node_type = 'tag'
		AND node_id NOT IN (
			SELECT DISTINCT target_id FROM graph_edges WHERE edge_type = 'tag'
		)`)
	if err != nil {
		return fmt.Errorf("sqlite: cleanup orphan tags: %w", err)
	}
	return nil
}

// CleanupOrphanPlaceholders deletes note_ref placeholders no wikilink
// edge still targets.
func (s *Store) CleanupOrphanPlaceholders(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM graph_nodes
		WHERE node_type = 'note_ref'
		AND node_id NOT IN (
			SELECT DISTINCT target_id FROM graph_edges WHERE edge_type = 'wikilink'
		)`)
	if err != nil {
		return fmt.Errorf("sqlite: cleanup orphan placeholders: %w", err)
	}
	return nil
}

// ClearGraph wipes every graph node and edge, for a full reindex.
func (s *Store) ClearGraph(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM graph_edges`)
	if err != nil {
		return fmt.Errorf("sqlite: clear graph edges: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM graph_nodes`)
	if err != nil {
		return fmt.Errorf("sqlite: clear graph nodes: %w", err)
	}
	return nil
}

// GraphStats reports node/edge counts by type plus totals.
func (s *Store) GraphStats(ctx context.Context) (domain.GraphStats, error) {
	var stats domain.GraphStats
	stats.NodesByType = make(map[string]int64)
	stats.EdgesByType = make(map[string]int64)

	nodeRows, err := s.db.QueryContext(ctx, `SELECT node_type, COUNT(*) FROM graph_nodes GROUP BY node_type`)
	if err != nil {
		return stats, fmt.Errorf("sqlite: graph stats nodes by type: %w", err)
	}
	defer nodeRows.Close()
	for nodeRows.Next() {
		var nodeType string
		var count int64
		if err := nodeRows.Scan(&nodeType, &count); err != nil {
			return stats, err
		}
		stats.NodesByType[nodeType] = count
		stats.TotalNodes += count
	}
	if err := nodeRows.Err(); err != nil {
		return stats, err
	}

	edgeRows, err := s.db.QueryContext(ctx, `SELECT edge_type, COUNT(*) FROM graph_edges GROUP BY edge_type`)
	if err != nil {
		return stats, fmt.Errorf("sqlite: graph stats edges by type: %w", err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var edgeType string
		var count int64
		if err := edgeRows.Scan(&edgeType, &count); err != nil {
			return stats, err
		}
		stats.EdgesByType[edgeType] = count
		stats.TotalEdges += count
	}
	return stats, edgeRows.Err()
}
