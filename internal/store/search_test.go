package store

import (
	"errors"
	"testing"
)

func TestValidateQuery(t *testing.T) {
	valid := []string{
		"deploy",
		"deploy staging",
		"api-gateway v2",
		"under_score 42",
		"",
	}
	for _, q := range valid {
		if err := ValidateQuery(q); err != nil {
			t.Errorf("ValidateQuery(%q) = %v, want nil", q, err)
		}
	}

	err := ValidateQuery("xyz((unparsable")
	var syntaxErr *QuerySyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("expected QuerySyntaxError, got %v", err)
	}
	if syntaxErr.Token != "xyz((unparsable" {
		t.Errorf("token = %q, want the offending token", syntaxErr.Token)
	}
	if syntaxErr.Suggestion != "xyz unparsable" {
		t.Errorf("suggestion = %q, want %q", syntaxErr.Suggestion, "xyz unparsable")
	}
}

func TestCleanQuery(t *testing.T) {
	cases := []struct{ in, want string }{
		{"xyz((unparsable", "xyz unparsable"},
		{`"quoted phrase"`, "quoted phrase"},
		{"a AND b OR c", "a AND b OR c"},
		{"trailing*", "trailing"},
		{"   spaced   out   ", "spaced out"},
		{"(((", ""},
	}
	for _, c := range cases {
		if got := CleanQuery(c.in); got != c.want {
			t.Errorf("CleanQuery(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSearchKeyword(t *testing.T) {
	db := testDB(t)

	match := createNote(t, db, "deployed the payments service to staging", 1000)
	createNote(t, db, "lunch with the platform team", 2000)

	hits, err := db.SearchKeyword("deployed staging", Filter{}, 10)
	if err != nil {
		t.Fatalf("SearchKeyword: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].NoteID != match.ID {
		t.Errorf("hit = note %d, want %d", hits[0].NoteID, match.ID)
	}
	if hits[0].Score <= 0 {
		t.Errorf("score = %v, want positive (higher is better)", hits[0].Score)
	}
}

func TestSearchKeywordSummary(t *testing.T) {
	db := testDB(t)

	note := &Note{Content: "long body text", Summary: "quarterly roadmap", Author: "agent", Created: 1000}
	if err := db.Write(func(tx *Tx) error { return tx.InsertNote(note, 0) }); err != nil {
		t.Fatalf("InsertNote: %v", err)
	}

	hits, err := db.SearchKeyword("roadmap", Filter{}, 10)
	if err != nil {
		t.Fatalf("SearchKeyword: %v", err)
	}
	if len(hits) != 1 || hits[0].NoteID != note.ID {
		t.Errorf("summary should be indexed, got %v", hits)
	}
}

func TestSearchKeywordFilter(t *testing.T) {
	db := testDB(t)

	early := createNote(t, db, "deploy alpha", 1000)
	late := createNote(t, db, "deploy beta", 5000)

	hits, err := db.SearchKeyword("deploy", Filter{From: 3000}, 10)
	if err != nil {
		t.Fatalf("SearchKeyword: %v", err)
	}
	if len(hits) != 1 || hits[0].NoteID != late.ID {
		t.Errorf("time filter should exclude note %d, got %v", early.ID, hits)
	}
}

func TestSearchKeywordRejectsBadQuery(t *testing.T) {
	db := testDB(t)
	createNote(t, db, "anything", 1000)

	_, err := db.SearchKeyword(`broken"quote`, Filter{}, 10)
	var syntaxErr *QuerySyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Errorf("expected QuerySyntaxError, got %v", err)
	}
}

func TestSearchKeywordEmptyQuery(t *testing.T) {
	db := testDB(t)
	createNote(t, db, "anything", 1000)

	hits, err := db.SearchKeyword("", Filter{}, 10)
	if err != nil {
		t.Fatalf("SearchKeyword: %v", err)
	}
	if hits != nil {
		t.Errorf("empty query returned %v, want nil", hits)
	}
}
