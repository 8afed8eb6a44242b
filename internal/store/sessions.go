package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Session is a cluster of temporally adjacent notes treated as one work
// episode. ended tracks the created time of the session's latest note.
type Session struct {
	ID             int64   `json:"id"`
	Started        int64   `json:"started"`
	Ended          int64   `json:"ended"`
	NoteCount      int     `json:"note_count"`
	CoherenceScore float64 `json:"coherence_score"`
}

// OpenOrExtendSession assigns a session for a note created at the given
// time. If the gap since the previous note exceeds idle, the prior session
// is left closed at its last note and a new one starts; otherwise the
// current session is extended. note_count and coherence are updated either
// way. Returns the session id.
func (t *Tx) OpenOrExtendSession(created int64, idle time.Duration) (int64, error) {
	var s Session
	err := t.tx.QueryRow(`
		SELECT id, started, ended, note_count, coherence_score
		FROM sessions ORDER BY id DESC LIMIT 1
	`).Scan(&s.ID, &s.Started, &s.Ended, &s.NoteCount, &s.CoherenceScore)

	if err == nil && created-s.Ended <= idle.Milliseconds() {
		noteCount := s.NoteCount + 1
		ended := s.Ended
		if created > ended {
			ended = created
		}
		coherence := coherenceScore(s.Started, ended, noteCount, idle)
		if _, err := t.tx.Exec(`
			UPDATE sessions SET ended = ?, note_count = ?, coherence_score = ? WHERE id = ?
		`, ended, noteCount, coherence, s.ID); err != nil {
			return 0, fmt.Errorf("extend session: %w", err)
		}
		return s.ID, nil
	}
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("latest session: %w", err)
	}

	result, err := t.tx.Exec(`
		INSERT INTO sessions (started, ended, note_count, coherence_score)
		VALUES (?, ?, 1, 1.0)
	`, created, created)
	if err != nil {
		return 0, fmt.Errorf("open session: %w", err)
	}
	id, _ := result.LastInsertId()
	return id, nil
}

// coherenceScore measures session cohesion as the average inter-note gap
// relative to the idle threshold: tightly packed notes score near 1,
// sessions stretched to the threshold approach 0.
func coherenceScore(started, ended int64, noteCount int, idle time.Duration) float64 {
	if noteCount <= 1 {
		return 1.0
	}
	avgGap := float64(ended-started) / float64(noteCount-1)
	score := 1.0 - avgGap/float64(idle.Milliseconds())
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// GetSession returns a session by id, or ErrNotFound.
func (db *DB) GetSession(id int64) (*Session, error) {
	var s Session
	err := db.QueryRow(`
		SELECT id, started, ended, note_count, coherence_score FROM sessions WHERE id = ?
	`, id).Scan(&s.ID, &s.Started, &s.Ended, &s.NoteCount, &s.CoherenceScore)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

// RecentSessions returns the most recent sessions, newest first.
func (db *DB) RecentSessions(limit int) ([]Session, error) {
	rows, err := db.Query(`
		SELECT id, started, ended, note_count, coherence_score
		FROM sessions ORDER BY started DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Started, &s.Ended, &s.NoteCount, &s.CoherenceScore); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
