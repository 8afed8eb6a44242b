package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/engramdb/engram/internal/engine"
	"github.com/engramdb/engram/internal/store"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	eng := engine.New(db, engine.DefaultConfig())
	return New(db, eng, "test")
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

// rememberNote posts a note and returns its id.
func rememberNote(t *testing.T, s *Server, content string) int64 {
	t.Helper()
	w := doRequest(t, s, "POST", "/api/notes", map[string]any{"content": content})
	if w.Code != http.StatusCreated {
		t.Fatalf("remember returned %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, w, &resp)
	return resp.ID
}

func TestHealth(t *testing.T) {
	s := testServer(t)

	w := doRequest(t, s, "GET", "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp map[string]any
	decodeBody(t, w, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status field = %v, want ok", resp["status"])
	}
	if resp["db"] != true {
		t.Errorf("db field = %v, want true", resp["db"])
	}
}

func TestRememberAndGet(t *testing.T) {
	s := testServer(t)

	id := rememberNote(t, s, "remembered over http")

	w := doRequest(t, s, "GET", "/api/notes/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get returned %d: %s", w.Code, w.Body.String())
	}
	var note store.Note
	decodeBody(t, w, &note)
	if note.ID != id || note.Content != "remembered over http" {
		t.Errorf("note = %+v", note)
	}
}

func TestRememberValidation(t *testing.T) {
	s := testServer(t)

	w := doRequest(t, s, "POST", "/api/notes", map[string]any{"content": ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty content: status = %d, want 400", w.Code)
	}

	req := httptest.NewRequest("POST", "/api/notes", bytes.NewReader([]byte("{broken")))
	w = httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("broken json: status = %d, want 400", w.Code)
	}
}

func TestGetNoteNotFound(t *testing.T) {
	s := testServer(t)

	w := doRequest(t, s, "GET", "/api/notes/999", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}

	w = doRequest(t, s, "GET", "/api/notes/abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-numeric id: status = %d, want 400", w.Code)
	}
}

func TestNoteEdges(t *testing.T) {
	s := testServer(t)

	rememberNote(t, s, "first")
	second := rememberNote(t, s, "building on note 1")

	w := doRequest(t, s, "GET", "/api/notes/2/edges", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var edges []store.Edge
	decodeBody(t, w, &edges)

	found := false
	for _, e := range edges {
		if e.Type == store.EdgeReference && e.FromID == second && e.ToID == 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a reference edge in %+v", edges)
	}
}

func TestPinLifecycle(t *testing.T) {
	s := testServer(t)
	rememberNote(t, s, "pin me")

	w := doRequest(t, s, "POST", "/api/notes/1/pin", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("pin status = %d", w.Code)
	}

	var note store.Note
	decodeBody(t, doRequest(t, s, "GET", "/api/notes/1", nil), &note)
	if !note.Pinned {
		t.Error("note should be pinned")
	}

	w = doRequest(t, s, "DELETE", "/api/notes/1/pin", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unpin status = %d", w.Code)
	}
	decodeBody(t, doRequest(t, s, "GET", "/api/notes/1", nil), &note)
	if note.Pinned {
		t.Error("note should be unpinned")
	}

	w = doRequest(t, s, "POST", "/api/notes/999/pin", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("pin unknown note: status = %d, want 404", w.Code)
	}
}

func TestAddTagsRoute(t *testing.T) {
	s := testServer(t)
	rememberNote(t, s, "taggable")

	w := doRequest(t, s, "POST", "/api/notes/1/tags", map[string]any{"tags": []string{"infra"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var note store.Note
	decodeBody(t, doRequest(t, s, "GET", "/api/notes/1", nil), &note)
	if len(note.Tags) != 1 || note.Tags[0] != "infra" {
		t.Errorf("tags = %v, want [infra]", note.Tags)
	}

	w = doRequest(t, s, "POST", "/api/notes/1/tags", map[string]any{"tags": []string{}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty tags: status = %d, want 400", w.Code)
	}
}

func TestSaveVectorRoute(t *testing.T) {
	s := testServer(t)
	rememberNote(t, s, "embeddable")

	w := doRequest(t, s, "POST", "/api/notes/1/vector", map[string]any{
		"embedding": []float64{0.1, 0.2},
		"model":     "external",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var note store.Note
	decodeBody(t, doRequest(t, s, "GET", "/api/notes/1", nil), &note)
	if !note.HasVector {
		t.Error("note should report has_vector")
	}

	w = doRequest(t, s, "POST", "/api/notes/999/vector", map[string]any{
		"embedding": []float64{0.1},
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown note: status = %d, want 404", w.Code)
	}
}

func TestRecallRoute(t *testing.T) {
	s := testServer(t)
	rememberNote(t, s, "deploy checklist reviewed")
	rememberNote(t, s, "lunch break")

	w := doRequest(t, s, "GET", "/api/recall?q=deploy&mode=keyword", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var result engine.RecallResult
	decodeBody(t, w, &result)
	if len(result.Notes) != 1 {
		t.Fatalf("got %d notes, want 1", len(result.Notes))
	}
	if result.Notes[0].Content != "deploy checklist reviewed" {
		t.Errorf("wrong note recalled: %q", result.Notes[0].Content)
	}
	if result.Mode != engine.ModeKeyword {
		t.Errorf("mode = %q, want keyword", result.Mode)
	}
}

func TestRecallRouteSyntaxError(t *testing.T) {
	s := testServer(t)
	rememberNote(t, s, "anything")

	w := doRequest(t, s, "GET", "/api/recall?q=xyz%28%28unparsable&mode=keyword", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	decodeBody(t, w, &resp)
	if resp["suggestion"] != "xyz unparsable" {
		t.Errorf("suggestion = %v, want cleaned query", resp["suggestion"])
	}
	if resp["token"] == "" {
		t.Error("expected the offending token in the response")
	}
}

func TestRecallRouteUnknownMode(t *testing.T) {
	s := testServer(t)
	rememberNote(t, s, "anything")

	w := doRequest(t, s, "GET", "/api/recall?q=anything&mode=vector", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
}

func TestRememberTooLargeRoute(t *testing.T) {
	s := testServer(t)

	huge := bytes.Repeat([]byte("x"), 20000)
	w := doRequest(t, s, "POST", "/api/notes", map[string]any{"content": string(huge)})
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", w.Code)
	}

	var resp map[string]any
	decodeBody(t, w, &resp)
	if resp["size"] == nil || resp["limit"] == nil {
		t.Errorf("expected size and limit fields, got %v", resp)
	}
}

func TestEntitiesRoute(t *testing.T) {
	s := testServer(t)

	w := doRequest(t, s, "GET", "/api/entities", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := w.Body.String(); body[0] != '[' {
		t.Errorf("empty entities should encode as an array, got %q", body)
	}

	rememberNote(t, s, "paired with @alice on redis")
	var entities []store.Entity
	decodeBody(t, doRequest(t, s, "GET", "/api/entities", nil), &entities)
	if len(entities) != 2 {
		t.Errorf("got %d entities, want 2", len(entities))
	}
}

func TestSessionsRoute(t *testing.T) {
	s := testServer(t)
	rememberNote(t, s, "starts a session")

	var sessions []store.Session
	decodeBody(t, doRequest(t, s, "GET", "/api/sessions", nil), &sessions)
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	if sessions[0].NoteCount != 1 {
		t.Errorf("note_count = %d, want 1", sessions[0].NoteCount)
	}
}

func TestCompactRoute(t *testing.T) {
	s := testServer(t)
	rememberNote(t, s, "something to keep")

	w := doRequest(t, s, "POST", "/api/compact", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var result store.CompactResult
	decodeBody(t, w, &result)
	if result.BeforeBytes <= 0 {
		t.Errorf("before_bytes = %d, want positive", result.BeforeBytes)
	}
}
