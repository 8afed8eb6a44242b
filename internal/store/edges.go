package store

import (
	"fmt"
)

// Edge types. temporal, reference, referenced_by and session edges connect
// two notes; entity edges connect a note to a row in the entities table.
const (
	EdgeTemporal     = "temporal"
	EdgeReference    = "reference"
	EdgeReferencedBy = "referenced_by"
	EdgeEntity       = "entity"
	EdgeSession      = "session"
)

// Edge is a directed, typed, immutable relationship.
type Edge struct {
	FromID  int64   `json:"from_id"`
	ToID    int64   `json:"to_id"`
	Type    string  `json:"type"`
	Weight  float64 `json:"weight"`
	Created int64   `json:"created"`
}

// AppendEdge inserts an edge. Both endpoints must exist: notes on both
// sides, except entity edges whose target is an entity id. Insertion is
// idempotent per (from, to, type); a duplicate insert is a no-op that
// leaves the original weight unchanged.
func (t *Tx) AppendEdge(from, to int64, edgeType string, weight float64, created int64) error {
	if ok, err := t.NoteExists(from); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("edge source note %d: %w", from, ErrNotFound)
	}

	if edgeType == EdgeEntity {
		if ok, err := t.EntityExists(to); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("edge target entity %d: %w", to, ErrNotFound)
		}
	} else {
		if ok, err := t.NoteExists(to); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("edge target note %d: %w", to, ErrNotFound)
		}
	}

	if weight <= 0 {
		weight = 1.0
	}

	_, err := t.tx.Exec(`
		INSERT INTO edges (from_id, to_id, type, weight, created)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (from_id, to_id, type) DO NOTHING
	`, from, to, edgeType, weight, created)
	if err != nil {
		return fmt.Errorf("append edge: %w", err)
	}
	return nil
}

// AllEdges returns every edge, ordered by creation.
func (db *DB) AllEdges() ([]Edge, error) {
	rows, err := db.Query(`
		SELECT from_id, to_id, type, weight, created FROM edges ORDER BY created, from_id, to_id
	`)
	if err != nil {
		return nil, fmt.Errorf("all edges: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.FromID, &e.ToID, &e.Type, &e.Weight, &e.Created); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// EdgesFrom returns all edges originating at the given note.
func (db *DB) EdgesFrom(noteID int64) ([]Edge, error) {
	rows, err := db.Query(`
		SELECT from_id, to_id, type, weight, created FROM edges WHERE from_id = ? ORDER BY type, to_id
	`, noteID)
	if err != nil {
		return nil, fmt.Errorf("edges from: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.FromID, &e.ToID, &e.Type, &e.Weight, &e.Created); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// CountEdges returns the total number of edges.
func (db *DB) CountEdges() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM edges").Scan(&count)
	return count, err
}
