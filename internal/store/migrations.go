package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "notes: memory records",
		SQL: `
CREATE TABLE notes (
    id         INTEGER PRIMARY KEY,
    content    TEXT NOT NULL,
    summary    TEXT,
    tags       TEXT NOT NULL DEFAULT '[]',
    pinned     INTEGER NOT NULL DEFAULT 0,
    author     TEXT NOT NULL DEFAULT '',
    created    INTEGER NOT NULL,
    session_id INTEGER,
    pagerank   REAL NOT NULL DEFAULT 0,

    FOREIGN KEY (session_id) REFERENCES sessions(id)
);

CREATE INDEX idx_notes_created ON notes(created DESC);
CREATE INDEX idx_notes_pinned  ON notes(pinned) WHERE pinned = 1;
CREATE INDEX idx_notes_session ON notes(session_id);
`,
	},
	{
		Version:     2,
		Description: "sessions: time-clustered work episodes",
		SQL: `
CREATE TABLE sessions (
    id              INTEGER PRIMARY KEY,
    started         INTEGER NOT NULL,
    ended           INTEGER NOT NULL,
    note_count      INTEGER NOT NULL DEFAULT 0,
    coherence_score REAL NOT NULL DEFAULT 1.0
);

CREATE INDEX idx_sessions_started ON sessions(started DESC);
`,
	},
	{
		Version:     3,
		Description: "entities: recurring named things across notes",
		SQL: `
CREATE TABLE entities (
    id            INTEGER PRIMARY KEY,
    name          TEXT NOT NULL UNIQUE,
    type          TEXT NOT NULL CHECK (type IN ('mention', 'tool', 'project', 'other')),
    first_seen    INTEGER NOT NULL,
    last_seen     INTEGER NOT NULL,
    mention_count INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX idx_entities_type ON entities(type);
`,
	},
	{
		Version:     4,
		Description: "edges: typed directed relationships between notes",
		SQL: `
CREATE TABLE edges (
    from_id INTEGER NOT NULL,
    to_id   INTEGER NOT NULL,
    type    TEXT NOT NULL CHECK (type IN ('temporal', 'reference', 'referenced_by', 'entity', 'session')),
    weight  REAL NOT NULL DEFAULT 1.0,
    created INTEGER NOT NULL,

    PRIMARY KEY (from_id, to_id, type)
);

CREATE INDEX idx_edges_to ON edges(to_id);
`,
	},
	{
		Version:     5,
		Description: "note_vectors: embedding vectors for semantic recall",
		SQL: `
CREATE TABLE note_vectors (
    note_id    INTEGER PRIMARY KEY,
    embedding  BLOB NOT NULL,
    model      TEXT NOT NULL,
    dimensions INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (note_id) REFERENCES notes(id) ON DELETE CASCADE
);
`,
	},
	{
		Version:     6,
		Description: "notes_fts: full-text index over content and summary",
		SQL: `
CREATE VIRTUAL TABLE notes_fts USING fts5(
    content,
    summary,
    content=''
);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
