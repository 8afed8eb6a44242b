package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
)

// VectorRecord holds the stored embedding for a note.
type VectorRecord struct {
	NoteID     int64
	Embedding  []float64
	Model      string
	Dimensions int
	CreatedAt  int64
}

// encodeEmbedding converts a []float64 to a binary BLOB (8 bytes per float64).
func encodeEmbedding(vec []float64) []byte {
	buf := make([]byte, len(vec)*8)
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodeEmbedding converts a binary BLOB back to []float64.
func decodeEmbedding(buf []byte) []float64 {
	n := len(buf) / 8
	vec := make([]float64, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vec
}

// SaveVector stores or replaces the embedding for a note. The note must
// exist.
func (db *DB) SaveVector(noteID int64, embedding []float64, model string) error {
	return db.Write(func(t *Tx) error {
		if ok, err := t.NoteExists(noteID); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("note %d: %w", noteID, ErrNotFound)
		}

		blob := encodeEmbedding(embedding)
		now := NowMillis()
		_, err := t.tx.Exec(`
			INSERT INTO note_vectors (note_id, embedding, model, dimensions, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(note_id) DO UPDATE SET embedding = ?, model = ?, dimensions = ?, created_at = ?
		`, noteID, blob, model, len(embedding), now,
			blob, model, len(embedding), now)
		if err != nil {
			return fmt.Errorf("save vector: %w", err)
		}
		return nil
	})
}

// GetVector returns the embedding for a note, or nil if not stored.
func (db *DB) GetVector(noteID int64) (*VectorRecord, error) {
	var v VectorRecord
	var blob []byte

	err := db.QueryRow(`
		SELECT note_id, embedding, model, dimensions, created_at
		FROM note_vectors WHERE note_id = ?
	`, noteID).Scan(&v.NoteID, &blob, &v.Model, &v.Dimensions, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vector: %w", err)
	}
	v.Embedding = decodeEmbedding(blob)
	return &v, nil
}

// FilteredVectors returns the vector records of notes matching the filter.
func (db *DB) FilteredVectors(f Filter) ([]VectorRecord, error) {
	where, args := f.clauses()
	query := `
		SELECT v.note_id, v.embedding, v.model, v.dimensions, v.created_at
		FROM note_vectors v JOIN notes n ON n.id = v.note_id
		WHERE 1=1` + where
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("filtered vectors: %w", err)
	}
	defer rows.Close()

	var records []VectorRecord
	for rows.Next() {
		var v VectorRecord
		var blob []byte
		if err := rows.Scan(&v.NoteID, &blob, &v.Model, &v.Dimensions, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan vector: %w", err)
		}
		v.Embedding = decodeEmbedding(blob)
		records = append(records, v)
	}
	return records, rows.Err()
}
