package store

import (
	"testing"
)

func TestCompactPreservesData(t *testing.T) {
	db := testDB(t)

	a := createNote(t, db, "keep me around", 1000)
	b := createNote(t, db, "me too", 2000)
	err := db.Write(func(tx *Tx) error {
		return tx.AppendEdge(b.ID, a.ID, EdgeTemporal, 1.0, 2000)
	})
	if err != nil {
		t.Fatalf("AppendEdge: %v", err)
	}

	result, err := db.Compact()
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if result.BeforeBytes <= 0 || result.AfterBytes <= 0 {
		t.Errorf("sizes = %+v, want positive before and after", result)
	}

	count, _ := db.CountNotes()
	if count != 2 {
		t.Errorf("notes after compact = %d, want 2", count)
	}
	edges, _ := db.CountEdges()
	if edges != 1 {
		t.Errorf("edges after compact = %d, want 1", edges)
	}

	// The full-text index survives the rebuild.
	hits, err := db.SearchKeyword("around", Filter{}, 10)
	if err != nil {
		t.Fatalf("SearchKeyword: %v", err)
	}
	if len(hits) != 1 || hits[0].NoteID != a.ID {
		t.Errorf("search after compact = %v, want note %d", hits, a.ID)
	}
}
