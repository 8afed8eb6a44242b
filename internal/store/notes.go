package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Note represents a single memory record. Content is immutable after
// creation; only pinned and tags may change.
type Note struct {
	ID        int64    `json:"id"`
	Content   string   `json:"content"`
	Summary   string   `json:"summary,omitempty"`
	Tags      []string `json:"tags"`
	Pinned    bool     `json:"pinned"`
	Author    string   `json:"author"`
	Created   int64    `json:"created"` // unix ms, UTC
	SessionID *int64   `json:"session_id,omitempty"`
	PageRank  float64  `json:"pagerank"`
	HasVector bool     `json:"has_vector"`
}

const noteColumns = `n.id, n.content, n.summary, n.tags, n.pinned, n.author, n.created, n.session_id, n.pagerank,
	EXISTS (SELECT 1 FROM note_vectors v WHERE v.note_id = n.id)`

// InsertNote creates a note and its full-text index row. Created must be
// set by the caller (unix ms UTC); the id is assigned by sqlite and written
// back into the note.
func (t *Tx) InsertNote(note *Note, maxContentBytes int) error {
	if maxContentBytes > 0 && len(note.Content) > maxContentBytes {
		return &ContentTooLargeError{Size: len(note.Content), Limit: maxContentBytes}
	}

	tags := note.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	result, err := t.tx.Exec(`
		INSERT INTO notes (content, summary, tags, pinned, author, created, session_id, pagerank)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)
	`, note.Content, note.Summary, string(tagsJSON), boolToInt(note.Pinned), note.Author, note.Created, note.SessionID)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}

	id, _ := result.LastInsertId()
	note.ID = id

	// Content is immutable, so the index row never needs resyncing.
	if _, err := t.tx.Exec(`
		INSERT INTO notes_fts (rowid, content, summary) VALUES (?, ?, ?)
	`, id, note.Content, note.Summary); err != nil {
		return fmt.Errorf("index note: %w", err)
	}
	return nil
}

// NoteExists reports whether a note id resolves within the transaction.
func (t *Tx) NoteExists(id int64) (bool, error) {
	var one int
	err := t.tx.QueryRow("SELECT 1 FROM notes WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("note exists: %w", err)
	}
	return true, nil
}

// RecentNoteIDs returns up to k note ids preceding the given id, newest
// first. Used for temporal edge derivation.
func (t *Tx) RecentNoteIDs(beforeID int64, k int) ([]int64, error) {
	rows, err := t.tx.Query(`
		SELECT id FROM notes WHERE id < ? ORDER BY id DESC LIMIT ?
	`, beforeID, k)
	if err != nil {
		return nil, fmt.Errorf("recent note ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan note id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SessionPeerIDs returns the ids of all other notes in the given session.
func (t *Tx) SessionPeerIDs(sessionID, excludeNoteID int64) ([]int64, error) {
	rows, err := t.tx.Query(`
		SELECT id FROM notes WHERE session_id = ? AND id != ? ORDER BY id
	`, sessionID, excludeNoteID)
	if err != nil {
		return nil, fmt.Errorf("session peers: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan peer id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetNote returns a note by id, or ErrNotFound.
func (db *DB) GetNote(id int64) (*Note, error) {
	row := db.QueryRow(`SELECT `+noteColumns+` FROM notes n WHERE n.id = ?`, id)
	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("note %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	return n, nil
}

// SetPinned pins or unpins a note. Idempotent. Returns ErrNotFound for an
// unknown id.
func (db *DB) SetPinned(id int64, pinned bool) error {
	return db.Write(func(t *Tx) error {
		result, err := t.tx.Exec("UPDATE notes SET pinned = ? WHERE id = ?", boolToInt(pinned), id)
		if err != nil {
			return fmt.Errorf("set pinned: %w", err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return fmt.Errorf("note %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

// AddTags adds tags to a note's tag set. Idempotent: re-adding an existing
// tag is a no-op.
func (db *DB) AddTags(id int64, tags []string) error {
	return db.Write(func(t *Tx) error {
		var tagsJSON string
		err := t.tx.QueryRow("SELECT tags FROM notes WHERE id = ?", id).Scan(&tagsJSON)
		if err == sql.ErrNoRows {
			return fmt.Errorf("note %d: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("read tags: %w", err)
		}

		var existing []string
		if err := json.Unmarshal([]byte(tagsJSON), &existing); err != nil {
			return fmt.Errorf("unmarshal tags: %w", err)
		}

		set := make(map[string]bool, len(existing))
		for _, tag := range existing {
			set[tag] = true
		}
		for _, tag := range tags {
			if tag != "" && !set[tag] {
				set[tag] = true
				existing = append(existing, tag)
			}
		}
		sort.Strings(existing)

		merged, err := json.Marshal(existing)
		if err != nil {
			return fmt.Errorf("marshal tags: %w", err)
		}
		if _, err := t.tx.Exec("UPDATE notes SET tags = ? WHERE id = ?", string(merged), id); err != nil {
			return fmt.Errorf("update tags: %w", err)
		}
		return nil
	})
}

// AllNotes returns every note, ordered by id.
func (db *DB) AllNotes() ([]Note, error) {
	rows, err := db.Query(`SELECT ` + noteColumns + ` FROM notes n ORDER BY n.id`)
	if err != nil {
		return nil, fmt.Errorf("all notes: %w", err)
	}
	defer rows.Close()
	return scanNotes(rows)
}

// GetNotesByIDs returns notes for the given list of ids, in no particular
// order. Unknown ids are skipped.
func (db *DB) GetNotesByIDs(ids []int64) ([]Note, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args[i] = id
	}

	query := fmt.Sprintf(`SELECT `+noteColumns+` FROM notes n WHERE n.id IN (%s)`, placeholders)
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("get notes by ids: %w", err)
	}
	defer rows.Close()
	return scanNotes(rows)
}

// PinnedNotes returns all pinned notes matching the filter, ordered by
// created descending.
func (db *DB) PinnedNotes(f Filter) ([]Note, error) {
	where, args := f.clauses()
	query := `SELECT ` + noteColumns + ` FROM notes n WHERE n.pinned = 1` + where + ` ORDER BY n.created DESC, n.id DESC`
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("pinned notes: %w", err)
	}
	defer rows.Close()
	return scanNotes(rows)
}

// RecentNotes returns notes matching the filter, newest first.
func (db *DB) RecentNotes(f Filter, limit int) ([]Note, error) {
	where, args := f.clauses()
	query := `SELECT ` + noteColumns + ` FROM notes n WHERE 1=1` + where + ` ORDER BY n.created DESC, n.id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent notes: %w", err)
	}
	defer rows.Close()
	return scanNotes(rows)
}

// CountNotes returns the total number of notes.
func (db *DB) CountNotes() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM notes").Scan(&count)
	return count, err
}

// WritePageRanks overwrites the pagerank column for the given notes in one
// transaction, so readers never observe a partially-updated vector.
func (db *DB) WritePageRanks(ranks map[int64]float64) error {
	return db.Write(func(t *Tx) error {
		stmt, err := t.tx.Prepare("UPDATE notes SET pagerank = ? WHERE id = ?")
		if err != nil {
			return fmt.Errorf("prepare rank update: %w", err)
		}
		defer stmt.Close()

		for id, rank := range ranks {
			if _, err := stmt.Exec(rank, id); err != nil {
				return fmt.Errorf("update rank for note %d: %w", id, err)
			}
		}
		return nil
	})
}

type scannable interface {
	Scan(dest ...any) error
}

func scanNote(row scannable) (*Note, error) {
	var n Note
	var summary sql.NullString
	var pinned, hasVector int
	var sessionID sql.NullInt64
	var tagsJSON string

	err := row.Scan(&n.ID, &n.Content, &summary, &tagsJSON, &pinned, &n.Author, &n.Created, &sessionID, &n.PageRank, &hasVector)
	if err != nil {
		return nil, err
	}
	n.Summary = summary.String
	n.Pinned = pinned != 0
	n.HasVector = hasVector != 0
	if sessionID.Valid {
		n.SessionID = &sessionID.Int64
	}
	if err := json.Unmarshal([]byte(tagsJSON), &n.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	return &n, nil
}

func scanNotes(rows *sql.Rows) ([]Note, error) {
	var notes []Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// NowMillis returns the current time as unix milliseconds UTC.
func NowMillis() int64 {
	return time.Now().UTC().UnixMilli()
}
