package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/engramdb/engram/internal/store"
)

func rankNotes(ids ...int64) []store.Note {
	notes := make([]store.Note, len(ids))
	for i, id := range ids {
		notes[i] = store.Note{ID: id}
	}
	return notes
}

func rankSum(ranks map[int64]float64) float64 {
	sum := 0.0
	for _, r := range ranks {
		sum += r
	}
	return sum
}

func TestPageRankEmptyGraph(t *testing.T) {
	ranks := PageRank(nil, nil, DefaultDamping, DefaultTolerance, DefaultMaxIters)
	assert.Empty(t, ranks)
}

func TestPageRankSumsToOne(t *testing.T) {
	notes := rankNotes(1, 2, 3, 4, 5)
	edges := []store.Edge{
		{FromID: 2, ToID: 1, Type: store.EdgeTemporal, Weight: 1.0},
		{FromID: 3, ToID: 2, Type: store.EdgeTemporal, Weight: 1.0},
		{FromID: 3, ToID: 1, Type: store.EdgeTemporal, Weight: 0.5},
		{FromID: 4, ToID: 1, Type: store.EdgeReference, Weight: 1.0},
		{FromID: 1, ToID: 4, Type: store.EdgeReferencedBy, Weight: 1.0},
		{FromID: 5, ToID: 4, Type: store.EdgeSession, Weight: 1.0},
	}

	ranks := PageRank(notes, edges, DefaultDamping, DefaultTolerance, DefaultMaxIters)

	assert.Len(t, ranks, 5)
	assert.InDelta(t, 1.0, rankSum(ranks), 1e-4)
	for id, r := range ranks {
		assert.Positive(t, r, "note %d", id)
	}
}

func TestPageRankNoEdges(t *testing.T) {
	// All nodes dangling: uniform distribution.
	ranks := PageRank(rankNotes(1, 2, 3, 4), nil, DefaultDamping, DefaultTolerance, DefaultMaxIters)

	assert.InDelta(t, 1.0, rankSum(ranks), 1e-4)
	for _, r := range ranks {
		assert.InDelta(t, 0.25, r, 1e-6)
	}
}

func TestPageRankWellConnectedRanksHigher(t *testing.T) {
	notes := rankNotes(1, 2, 3, 4)
	edges := []store.Edge{
		{FromID: 2, ToID: 1, Type: store.EdgeReference, Weight: 1.0},
		{FromID: 3, ToID: 1, Type: store.EdgeReference, Weight: 1.0},
		{FromID: 4, ToID: 1, Type: store.EdgeReference, Weight: 1.0},
	}

	ranks := PageRank(notes, edges, DefaultDamping, DefaultTolerance, DefaultMaxIters)

	for _, id := range []int64{2, 3, 4} {
		assert.Greater(t, ranks[1], ranks[id], "hub should outrank leaf %d", id)
	}
}

func TestPageRankIncomingEdgeNeverDecreasesRank(t *testing.T) {
	notes := rankNotes(1, 2, 3)
	before := PageRank(notes, []store.Edge{
		{FromID: 1, ToID: 2, Type: store.EdgeTemporal, Weight: 1.0},
	}, DefaultDamping, DefaultTolerance, DefaultMaxIters)

	after := PageRank(notes, []store.Edge{
		{FromID: 1, ToID: 2, Type: store.EdgeTemporal, Weight: 1.0},
		{FromID: 1, ToID: 3, Type: store.EdgeReference, Weight: 1.0},
	}, DefaultDamping, DefaultTolerance, DefaultMaxIters)

	assert.GreaterOrEqual(t, after[3], before[3])
}

func TestPageRankEntityFolding(t *testing.T) {
	// Notes 1 and 2 co-mention entity 100; note 3 is isolated. The entity id
	// never appears in the output, and the co-mentioning pair outranks the
	// isolated note.
	notes := rankNotes(1, 2, 3)
	edges := []store.Edge{
		{FromID: 1, ToID: 100, Type: store.EdgeEntity, Weight: 1.0},
		{FromID: 2, ToID: 100, Type: store.EdgeEntity, Weight: 1.0},
	}

	ranks := PageRank(notes, edges, DefaultDamping, DefaultTolerance, DefaultMaxIters)

	assert.Len(t, ranks, 3)
	assert.NotContains(t, ranks, int64(100))
	assert.InDelta(t, 1.0, rankSum(ranks), 1e-4)
	assert.Greater(t, ranks[1], ranks[3])
	assert.Greater(t, ranks[2], ranks[3])
	assert.InDelta(t, ranks[1], ranks[2], 1e-6)
}

func TestPageRankSingleEntityMentionIsNoop(t *testing.T) {
	// One mention folds into zero note-to-note pairs.
	notes := rankNotes(1, 2)
	edges := []store.Edge{
		{FromID: 1, ToID: 100, Type: store.EdgeEntity, Weight: 1.0},
	}

	ranks := PageRank(notes, edges, DefaultDamping, DefaultTolerance, DefaultMaxIters)
	assert.InDelta(t, ranks[1], ranks[2], 1e-6)
}

func TestPageRankIgnoresUnknownEndpoints(t *testing.T) {
	notes := rankNotes(1, 2)
	edges := []store.Edge{
		{FromID: 1, ToID: 999, Type: store.EdgeTemporal, Weight: 1.0},
		{FromID: 999, ToID: 2, Type: store.EdgeTemporal, Weight: 1.0},
	}

	ranks := PageRank(notes, edges, DefaultDamping, DefaultTolerance, DefaultMaxIters)
	assert.Len(t, ranks, 2)
	assert.False(t, math.IsNaN(ranks[1]))
	assert.InDelta(t, 1.0, rankSum(ranks), 1e-4)
}

func TestPageRankDefaultsOnBadParameters(t *testing.T) {
	notes := rankNotes(1, 2)
	edges := []store.Edge{{FromID: 1, ToID: 2, Type: store.EdgeTemporal, Weight: 1.0}}

	ranks := PageRank(notes, edges, -1, -1, -1)
	assert.InDelta(t, 1.0, rankSum(ranks), 1e-4)
}
