// Package engine implements the graph-memory core: note ingestion with
// relationship inference, importance scoring, and hybrid recall.
package engine

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/engramdb/engram/internal/store"
)

var errEmbedderUnavailable = errors.New("no embedder configured")

// ErrUnknownMode reports a recall mode outside hybrid, semantic, keyword.
var ErrUnknownMode = errors.New("unknown recall mode")

// Config tunes the engine. Zero values fall back to DefaultConfig.
type Config struct {
	MaxContentBytes int
	TemporalK       int           // temporal edges per new note
	SessionIdle     time.Duration // gap that closes a session
	Damping         float64
	Tolerance       float64
	MaxIterations   int
	RankInterval    time.Duration // elapsed-time staleness trigger
	RankEdgeDelta   int           // edge-count staleness trigger
	DecayHalfLife   time.Duration // recall score half-life, 0 disables
	RecallLimit     int
	Author          string
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MaxContentBytes: 16384,
		TemporalK:       3,
		SessionIdle:     30 * time.Minute,
		Damping:         DefaultDamping,
		Tolerance:       DefaultTolerance,
		MaxIterations:   DefaultMaxIters,
		RankInterval:    5 * time.Minute,
		RankEdgeDelta:   50,
		DecayHalfLife:   720 * time.Hour,
		RecallLimit:     10,
		Author:          "agent",
	}
}

// rankState is the importance cache lifecycle: writes move Fresh→Stale,
// a recompute moves Stale→Recomputing→Fresh.
type rankState int

const (
	rankFresh rankState = iota
	rankStale
	rankRecomputing
)

// Engine orchestrates the store, extractor, edge builder, importance
// scoring, and recall for one store instance. It holds no process-global
// state: two engines over two stores share nothing.
type Engine struct {
	DB       *store.DB
	Embedder Embedder

	cfg Config

	mu        sync.Mutex // guards rank state
	state     rankState
	lastRank  time.Time
	edgeDelta int
}

// New creates an Engine over the given store.
func New(db *store.DB, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.MaxContentBytes <= 0 {
		cfg.MaxContentBytes = def.MaxContentBytes
	}
	if cfg.TemporalK <= 0 {
		cfg.TemporalK = def.TemporalK
	}
	if cfg.SessionIdle <= 0 {
		cfg.SessionIdle = def.SessionIdle
	}
	if cfg.Damping <= 0 || cfg.Damping >= 1 {
		cfg.Damping = def.Damping
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.RankInterval <= 0 {
		cfg.RankInterval = def.RankInterval
	}
	if cfg.RankEdgeDelta <= 0 {
		cfg.RankEdgeDelta = def.RankEdgeDelta
	}
	if cfg.RecallLimit <= 0 {
		cfg.RecallLimit = def.RecallLimit
	}
	if cfg.Author == "" {
		cfg.Author = def.Author
	}
	return &Engine{DB: db, cfg: cfg, state: rankStale}
}

// SetEmbedder configures the embedding provider.
func (e *Engine) SetEmbedder(emb Embedder) {
	e.Embedder = emb
}

// Remember ingests a note: one transaction covers the note, its session
// assignment, and every derived edge, so a partial graph is never
// observable. Returns the new note's id.
func (e *Engine) Remember(content, summary string, tags []string) (int64, error) {
	now := store.NowMillis()
	ex := Extract(content)

	// Tags join the entity set so tag vocabulary accumulates mention
	// history alongside detected entities.
	seen := make(map[string]bool, len(ex.Entities))
	for _, ent := range ex.Entities {
		seen[ent.Name] = true
	}
	for _, tag := range tags {
		name := store.NormalizeEntityName(tag)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		ex.Entities = append(ex.Entities, EntityMention{Name: name, Type: store.EntityOther})
	}

	var note store.Note
	err := e.DB.Write(func(t *store.Tx) error {
		sessionID, err := t.OpenOrExtendSession(now, e.cfg.SessionIdle)
		if err != nil {
			return err
		}
		note = store.Note{
			Content:   content,
			Summary:   summary,
			Tags:      tags,
			Author:    e.cfg.Author,
			Created:   now,
			SessionID: &sessionID,
		}
		if err := t.InsertNote(&note, e.cfg.MaxContentBytes); err != nil {
			return err
		}
		buildEdges(t, &note, ex, e.cfg.TemporalK)
		return nil
	})
	if err != nil {
		return 0, err
	}

	e.noteWritten()
	return note.ID, nil
}

// Get returns a note with its full content.
func (e *Engine) Get(id int64) (*store.Note, error) {
	return e.DB.GetNote(id)
}

// Pin marks a note to always appear in recall results.
func (e *Engine) Pin(id int64) error {
	return e.DB.SetPinned(id, true)
}

// Unpin clears a note's pin.
func (e *Engine) Unpin(id int64) error {
	return e.DB.SetPinned(id, false)
}

// AddTags adds tags to an existing note.
func (e *Engine) AddTags(id int64, tags []string) error {
	return e.DB.AddTags(id, tags)
}

// Compact reclaims storage and refreshes importance scores.
func (e *Engine) Compact() (*store.CompactResult, error) {
	result, err := e.DB.Compact()
	if err != nil {
		return nil, err
	}
	if err := e.Recompute(); err != nil {
		log.Printf("compact: recompute: %v", err)
	}
	return result, nil
}

// noteWritten marks the rank cache stale. The temporal/session/entity
// edges of one note land within a small constant of TemporalK, so the
// per-note estimate keeps the trigger cheap without counting rows.
func (e *Engine) noteWritten() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == rankFresh {
		e.state = rankStale
	}
	e.edgeDelta += e.cfg.TemporalK + 2
}

// maybeRecompute runs a recompute when the cache is stale and either
// staleness trigger has fired.
func (e *Engine) maybeRecompute() {
	e.mu.Lock()
	stale := e.state == rankStale &&
		(time.Since(e.lastRank) >= e.cfg.RankInterval || e.edgeDelta >= e.cfg.RankEdgeDelta)
	e.mu.Unlock()

	if !stale {
		return
	}
	if err := e.Recompute(); err != nil {
		log.Printf("rank: recompute: %v", err)
	}
}

// Recompute runs the importance scoring pass now: snapshot the graph, rank
// off the write path, then publish every score in one short exclusive
// write. A concurrent recompute is a no-op. An empty graph is a no-op.
func (e *Engine) Recompute() error {
	e.mu.Lock()
	if e.state == rankRecomputing {
		e.mu.Unlock()
		return nil
	}
	e.state = rankRecomputing
	e.mu.Unlock()

	finish := func(s rankState) {
		e.mu.Lock()
		e.state = s
		if s == rankFresh {
			e.lastRank = time.Now()
			e.edgeDelta = 0
		}
		e.mu.Unlock()
	}

	notes, err := e.DB.AllNotes()
	if err != nil {
		finish(rankStale)
		return err
	}
	if len(notes) == 0 {
		finish(rankFresh)
		return nil
	}
	edges, err := e.DB.AllEdges()
	if err != nil {
		finish(rankStale)
		return err
	}

	ranks := PageRank(notes, edges, e.cfg.Damping, e.cfg.Tolerance, e.cfg.MaxIterations)
	if err := e.DB.WritePageRanks(ranks); err != nil {
		finish(rankStale)
		return err
	}
	finish(rankFresh)
	return nil
}
