package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// Entity categories. Free-form source categories collapse into this closed
// set; anything unrecognized lands on EntityOther.
const (
	EntityMention = "mention"
	EntityTool    = "tool"
	EntityProject = "project"
	EntityOther   = "other"
)

// Entity is a recurring named thing mentioned across notes.
type Entity struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	FirstSeen    int64  `json:"first_seen"`
	LastSeen     int64  `json:"last_seen"`
	MentionCount int    `json:"mention_count"`
}

// NormalizeEntityName case-normalizes an entity name for uniqueness.
func NormalizeEntityName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func normalizeEntityType(entityType string) string {
	switch entityType {
	case EntityMention, EntityTool, EntityProject:
		return entityType
	default:
		return EntityOther
	}
}

// UpsertEntity creates an entity on first sight or touches last_seen and
// mention_count on every subsequent one. The stored type is fixed at first
// sight. Returns the entity id.
func (t *Tx) UpsertEntity(name, entityType string, now int64) (int64, error) {
	name = NormalizeEntityName(name)
	if name == "" {
		return 0, fmt.Errorf("upsert entity: empty name")
	}
	entityType = normalizeEntityType(entityType)

	var id int64
	err := t.tx.QueryRow("SELECT id FROM entities WHERE name = ?", name).Scan(&id)
	if err == nil {
		if _, err := t.tx.Exec(`
			UPDATE entities SET last_seen = ?, mention_count = mention_count + 1 WHERE id = ?
		`, now, id); err != nil {
			return 0, fmt.Errorf("touch entity: %w", err)
		}
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("find entity: %w", err)
	}

	result, err := t.tx.Exec(`
		INSERT INTO entities (name, type, first_seen, last_seen, mention_count)
		VALUES (?, ?, ?, ?, 1)
	`, name, entityType, now, now)
	if err != nil {
		return 0, fmt.Errorf("insert entity: %w", err)
	}
	id, _ = result.LastInsertId()
	return id, nil
}

// EntityExists reports whether an entity id resolves within the transaction.
func (t *Tx) EntityExists(id int64) (bool, error) {
	var one int
	err := t.tx.QueryRow("SELECT 1 FROM entities WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("entity exists: %w", err)
	}
	return true, nil
}

// GetEntityByName returns an entity by its case-normalized name, or nil.
func (db *DB) GetEntityByName(name string) (*Entity, error) {
	var e Entity
	err := db.QueryRow(`
		SELECT id, name, type, first_seen, last_seen, mention_count
		FROM entities WHERE name = ?
	`, NormalizeEntityName(name)).Scan(&e.ID, &e.Name, &e.Type, &e.FirstSeen, &e.LastSeen, &e.MentionCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}
	return &e, nil
}

// AllEntities returns every entity ordered by mention_count descending.
func (db *DB) AllEntities() ([]Entity, error) {
	rows, err := db.Query(`
		SELECT id, name, type, first_seen, last_seen, mention_count
		FROM entities ORDER BY mention_count DESC, name
	`)
	if err != nil {
		return nil, fmt.Errorf("all entities: %w", err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.ID, &e.Name, &e.Type, &e.FirstSeen, &e.LastSeen, &e.MentionCount); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}
