// Package server is the thin HTTP adapter over the engine facade. It
// defines no protocol semantics of its own: every route maps onto one
// engine operation.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/engramdb/engram/internal/engine"
	"github.com/engramdb/engram/internal/store"
)

// Server is the engram HTTP API server.
type Server struct {
	db      *store.DB
	engine  *engine.Engine
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server over the given store and engine.
func New(db *store.DB, eng *engine.Engine, version string) *Server {
	s := &Server{
		db:      db,
		engine:  eng,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/notes", s.handleRemember)
		r.Get("/notes/{id}", s.handleGetNote)
		r.Get("/notes/{id}/edges", s.handleNoteEdges)
		r.Post("/notes/{id}/pin", s.handlePin)
		r.Delete("/notes/{id}/pin", s.handleUnpin)
		r.Post("/notes/{id}/tags", s.handleAddTags)
		r.Post("/notes/{id}/vector", s.handleSaveVector)

		r.Get("/recall", s.handleRecall)
		r.Get("/entities", s.handleEntities)
		r.Get("/sessions", s.handleSessions)
		r.Post("/compact", s.handleCompact)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	notes, _ := s.db.CountNotes()
	edges, _ := s.db.CountEdges()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
		"notes":   notes,
		"edges":   edges,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps store errors onto HTTP statuses. Query syntax errors
// carry both the offending token and a cleaned suggestion so the caller
// can decide whether to retry.
func writeError(w http.ResponseWriter, err error) {
	var tooLarge *store.ContentTooLargeError
	var syntax *store.QuerySyntaxError

	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, engine.ErrUnknownMode):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{
			"error": err.Error(),
			"size":  tooLarge.Size,
			"limit": tooLarge.Limit,
		})
	case errors.As(err, &syntax):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      err.Error(),
			"token":      syntax.Token,
			"suggestion": syntax.Suggestion,
		})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
