package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/engramdb/engram/internal/store"
)

// Recall modes.
const (
	ModeHybrid   = "hybrid"
	ModeSemantic = "semantic"
	ModeKeyword  = "keyword"
)

// RecallOpts controls a recall query.
type RecallOpts struct {
	Query      string
	Tag        string
	From       int64 // unix ms UTC, 0 = unbounded
	To         int64 // unix ms UTC, 0 = unbounded
	PinnedOnly bool
	Limit      int
	Mode       string // hybrid (default), semantic, keyword
}

// RecallResult is an ordered answer set. Mode reports the path actually
// served: a hybrid request degrades to keyword when no embedding is
// available, annotated here rather than raised as an error.
type RecallResult struct {
	Notes    []store.Note `json:"notes"`
	Mode     string       `json:"mode"`
	Degraded bool         `json:"degraded,omitempty"`
}

type scoredNote struct {
	note  store.Note
	score float64
}

// Recall merges keyword and semantic search into one ranked list. Pinned
// notes passing the filters are always prepended, newest first, outside
// the limit. Filters narrow the candidate set before ranking, never the
// ranked output.
func (e *Engine) Recall(ctx context.Context, opts RecallOpts) (*RecallResult, error) {
	e.maybeRecompute()

	mode := opts.Mode
	if mode == "" {
		mode = ModeHybrid
	}
	switch mode {
	case ModeHybrid, ModeSemantic, ModeKeyword:
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownMode, mode)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = e.cfg.RecallLimit
	}
	filter := store.Filter{Tag: opts.Tag, From: opts.From, To: opts.To}

	if opts.PinnedOnly {
		pinned, err := e.DB.PinnedNotes(filter)
		if err != nil {
			return nil, err
		}
		return &RecallResult{Notes: notesOrEmpty(pinned), Mode: mode}, nil
	}

	pinned, err := e.DB.PinnedNotes(filter)
	if err != nil {
		return nil, err
	}
	pinnedSet := make(map[int64]bool, len(pinned))
	for _, n := range pinned {
		pinnedSet[n.ID] = true
	}

	// An empty query is a browse: recency order, pins first.
	if opts.Query == "" {
		recent, err := e.DB.RecentNotes(filter, limit+len(pinned))
		if err != nil {
			return nil, err
		}
		out := pinned
		for _, n := range recent {
			if len(out)-len(pinned) >= limit {
				break
			}
			if !pinnedSet[n.ID] {
				out = append(out, n)
			}
		}
		return &RecallResult{Notes: notesOrEmpty(out), Mode: mode}, nil
	}

	var keyword, semantic []scoredNote
	degraded := false

	if mode == ModeHybrid || mode == ModeKeyword {
		keyword, err = e.keywordPath(opts.Query, filter, limit)
		if err != nil {
			return nil, err
		}
	}
	if mode == ModeHybrid || mode == ModeSemantic {
		semantic, err = e.semanticPath(ctx, opts.Query, filter)
		if err != nil {
			// Only a missing or failing embedder degrades; a storage
			// failure behind the vectors propagates like any other.
			if !errors.Is(err, errEmbedderUnavailable) {
				return nil, err
			}
			log.Printf("recall: semantic path unavailable: %v", err)
			degraded = true
			if mode == ModeSemantic {
				if keyword, err = e.keywordPath(opts.Query, filter, limit); err != nil {
					return nil, err
				}
			}
		}
	}

	served := mode
	if degraded {
		served = ModeKeyword
	}

	merged := interleave(keyword, semantic, pinnedSet, limit)
	out := append(pinned, merged...)
	return &RecallResult{Notes: notesOrEmpty(out), Mode: served, Degraded: degraded}, nil
}

// keywordPath runs the lexical search and scores hits with time decay.
func (e *Engine) keywordPath(query string, filter store.Filter, limit int) ([]scoredNote, error) {
	// Fetch extra hits so deduplication and pin skipping can't starve the
	// merged list.
	hits, err := e.DB.SearchKeyword(query, filter, limit*3)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.NoteID
	}
	notes, err := e.DB.GetNotesByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]store.Note, len(notes))
	for _, n := range notes {
		byID[n.ID] = n
	}

	now := store.NowMillis()
	scored := make([]scoredNote, 0, len(hits))
	for _, h := range hits {
		n, ok := byID[h.NoteID]
		if !ok {
			continue
		}
		scored = append(scored, scoredNote{note: n, score: h.Score * e.decayFactor(n, now)})
	}
	rankScored(scored)
	return scored, nil
}

// semanticPath embeds the query and ranks notes with stored vectors by
// cosine similarity, decay-adjusted.
func (e *Engine) semanticPath(ctx context.Context, query string, filter store.Filter) ([]scoredNote, error) {
	if e.Embedder == nil {
		return nil, errEmbedderUnavailable
	}
	queryVec, err := e.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errEmbedderUnavailable, err)
	}

	vectors, err := e.DB.FilteredVectors(filter)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(vectors))
	for i, v := range vectors {
		ids[i] = v.NoteID
	}
	notes, err := e.DB.GetNotesByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]store.Note, len(notes))
	for _, n := range notes {
		byID[n.ID] = n
	}

	now := store.NowMillis()
	var scored []scoredNote
	for _, v := range vectors {
		n, ok := byID[v.NoteID]
		if !ok {
			continue
		}
		sim := CosineSimilarity(queryVec, v.Embedding)
		if sim <= 0 {
			continue
		}
		scored = append(scored, scoredNote{note: n, score: sim * e.decayFactor(n, now)})
	}
	rankScored(scored)
	return scored, nil
}

// decayFactor discounts a note's score by age with a configured half-life,
// floored at 0.1 so old notes remain reachable. Pinned notes are exempt.
func (e *Engine) decayFactor(n store.Note, now int64) float64 {
	if n.Pinned || e.cfg.DecayHalfLife <= 0 {
		return 1.0
	}
	age := float64(now - n.Created)
	if age <= 0 {
		return 1.0
	}
	factor := math.Pow(0.5, age/float64(e.cfg.DecayHalfLife.Milliseconds()))
	if factor < 0.1 {
		return 0.1
	}
	return factor
}

// rankScored orders by score descending; ties break to higher pagerank,
// then more recent created.
func rankScored(scored []scoredNote) {
	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.note.PageRank != b.note.PageRank {
			return a.note.PageRank > b.note.PageRank
		}
		return a.note.Created > b.note.Created
	})
}

// interleave alternates the next-best keyword and semantic results by rank
// position (the two score scales are incomparable), skipping duplicates
// and already-prepended pins, until limit is reached or both lists run
// out.
func interleave(keyword, semantic []scoredNote, skip map[int64]bool, limit int) []store.Note {
	var out []store.Note
	emitted := make(map[int64]bool)

	take := func(list []scoredNote, i int) int {
		for ; i < len(list); i++ {
			id := list[i].note.ID
			if emitted[id] || skip[id] {
				continue
			}
			emitted[id] = true
			out = append(out, list[i].note)
			return i + 1
		}
		return i
	}

	ki, si := 0, 0
	for len(out) < limit && (ki < len(keyword) || si < len(semantic)) {
		ki = take(keyword, ki)
		if len(out) >= limit {
			break
		}
		si = take(semantic, si)
	}
	return out
}

func notesOrEmpty(notes []store.Note) []store.Note {
	if notes == nil {
		return []store.Note{}
	}
	return notes
}
