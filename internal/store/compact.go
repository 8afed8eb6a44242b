package store

import (
	"fmt"
)

// CompactResult reports storage size before and after a compaction pass.
type CompactResult struct {
	BeforeBytes int64 `json:"before_bytes"`
	AfterBytes  int64 `json:"after_bytes"`
}

// Compact reclaims free space and rebuilds indices. It alters no notes,
// edges, or scores. The writer lock is held for the duration, so writes
// queue behind it; readers keep serving from their prior snapshot.
func (db *DB) Compact() (*CompactResult, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	before, err := db.sizeBytes()
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return nil, fmt.Errorf("wal checkpoint: %w", err)
	}
	if _, err := db.Exec("INSERT INTO notes_fts(notes_fts) VALUES ('optimize')"); err != nil {
		return nil, fmt.Errorf("optimize fts: %w", err)
	}
	if _, err := db.Exec("VACUUM"); err != nil {
		return nil, fmt.Errorf("vacuum: %w", err)
	}
	if _, err := db.Exec("PRAGMA optimize"); err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}

	after, err := db.sizeBytes()
	if err != nil {
		return nil, err
	}
	return &CompactResult{BeforeBytes: before, AfterBytes: after}, nil
}

func (db *DB) sizeBytes() (int64, error) {
	var pageCount, pageSize int64
	if err := db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("page_count: %w", err)
	}
	if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("page_size: %w", err)
	}
	return pageCount * pageSize, nil
}
