package engine

import (
	"math"

	"github.com/engramdb/engram/internal/store"
)

// Rank parameters. Convergence is measured as the L1 distance between
// successive rank vectors.
const (
	DefaultDamping   = 0.85
	DefaultTolerance = 1e-6
	DefaultMaxIters  = 100
)

type rankEdge struct {
	src    int
	weight float64
}

// PageRank computes the importance score of every note over the directed
// multigraph of edges. Entity edges are folded into symmetric note↔note
// connections between co-mentioning notes; entity rows themselves are
// never ranked. Dangling notes redistribute their mass uniformly, so the
// output is a probability distribution (sums to 1 within floating-point
// epsilon). An empty graph returns an empty map.
func PageRank(notes []store.Note, edges []store.Edge, damping, tol float64, maxIters int) map[int64]float64 {
	n := len(notes)
	if n == 0 {
		return map[int64]float64{}
	}
	if damping <= 0 || damping >= 1 {
		damping = DefaultDamping
	}
	if tol <= 0 {
		tol = DefaultTolerance
	}
	if maxIters <= 0 {
		maxIters = DefaultMaxIters
	}

	index := make(map[int64]int, n)
	for i, note := range notes {
		index[note.ID] = i
	}

	out := make([]float64, n)
	inbound := make([][]rankEdge, n)
	addEdge := func(fromID, toID int64, weight float64) {
		from, ok := index[fromID]
		if !ok {
			return
		}
		to, ok := index[toID]
		if !ok {
			return
		}
		out[from] += weight
		inbound[to] = append(inbound[to], rankEdge{src: from, weight: weight})
	}

	// entityNotes groups the notes mentioning each entity.
	entityNotes := make(map[int64][]int64)
	for _, e := range edges {
		if e.Type == store.EdgeEntity {
			entityNotes[e.ToID] = append(entityNotes[e.ToID], e.FromID)
			continue
		}
		addEdge(e.FromID, e.ToID, e.Weight)
	}

	// Fold each entity into mutual connections between its co-mentioning
	// notes: co-mention implies mutual relevance in both directions.
	for _, members := range entityNotes {
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				addEdge(members[i], members[j], 1.0)
				addEdge(members[j], members[i], 1.0)
			}
		}
	}

	rank := make([]float64, n)
	next := make([]float64, n)
	for i := range rank {
		rank[i] = 1.0 / float64(n)
	}
	base := (1.0 - damping) / float64(n)

	for iter := 0; iter < maxIters; iter++ {
		// Dangling nodes spread their mass uniformly.
		dangling := 0.0
		for i := 0; i < n; i++ {
			if out[i] == 0 {
				dangling += rank[i]
			}
		}
		danglingShare := damping * dangling / float64(n)

		for i := 0; i < n; i++ {
			sum := 0.0
			for _, e := range inbound[i] {
				sum += rank[e.src] * e.weight / out[e.src]
			}
			next[i] = base + danglingShare + damping*sum
		}

		delta := 0.0
		for i := 0; i < n; i++ {
			delta += math.Abs(next[i] - rank[i])
		}
		rank, next = next, rank
		if delta < tol {
			break
		}
	}

	result := make(map[int64]float64, n)
	for id, i := range index {
		result[id] = rank[i]
	}
	return result
}
