package engine

import (
	"log"

	"github.com/engramdb/engram/internal/store"
)

// buildEdges derives the relationship edges for a newly created note. It
// runs inside the same transaction as the note insert, so a committed note
// is never visible without its edges. Individual edge failures are
// enrichment losses, not write failures: they are logged and skipped while
// the note write proceeds.
func buildEdges(t *store.Tx, note *store.Note, ex Extraction, temporalK int) {
	// Temporal edges to the previous k notes, weight 1/rank: the nearest
	// note carries the most recency mass.
	prev, err := t.RecentNoteIDs(note.ID, temporalK)
	if err != nil {
		log.Printf("edges: recent notes for %d: %v", note.ID, err)
	}
	for rank, id := range prev {
		weight := 1.0 / float64(rank+1)
		if err := t.AppendEdge(note.ID, id, store.EdgeTemporal, weight, note.Created); err != nil {
			log.Printf("edges: temporal %d→%d: %v", note.ID, id, err)
		}
	}

	// Explicit references become a directed pair: reference out,
	// referenced_by back. Two distinct typed edges, not one undirected
	// edge, so ranking keeps its directionality. Unresolvable candidates
	// are dropped without error; free text produces false positives.
	for _, ref := range ex.RefCandidates {
		if ref == note.ID {
			continue
		}
		ok, err := t.NoteExists(ref)
		if err != nil {
			log.Printf("edges: resolve ref %d: %v", ref, err)
			continue
		}
		if !ok {
			continue
		}
		if err := t.AppendEdge(note.ID, ref, store.EdgeReference, 1.0, note.Created); err != nil {
			log.Printf("edges: reference %d→%d: %v", note.ID, ref, err)
			continue
		}
		if err := t.AppendEdge(ref, note.ID, store.EdgeReferencedBy, 1.0, note.Created); err != nil {
			log.Printf("edges: referenced_by %d→%d: %v", ref, note.ID, err)
		}
	}

	// Entity edges via upsert-or-touch.
	for _, ent := range ex.Entities {
		entityID, err := t.UpsertEntity(ent.Name, ent.Type, note.Created)
		if err != nil {
			log.Printf("edges: upsert entity %q: %v", ent.Name, err)
			continue
		}
		if err := t.AppendEdge(note.ID, entityID, store.EdgeEntity, 1.0, note.Created); err != nil {
			log.Printf("edges: entity %d→%d: %v", note.ID, entityID, err)
		}
	}

	// Session edges are note-to-note within the episode, keeping the graph
	// homogeneous for ranking. Sessions are bounded by the idle threshold,
	// so peer sets stay small.
	if note.SessionID != nil {
		peers, err := t.SessionPeerIDs(*note.SessionID, note.ID)
		if err != nil {
			log.Printf("edges: session peers for %d: %v", note.ID, err)
		}
		for _, peer := range peers {
			if err := t.AppendEdge(note.ID, peer, store.EdgeSession, 1.0, note.Created); err != nil {
				log.Printf("edges: session %d→%d: %v", note.ID, peer, err)
			}
		}
	}
}
