// Package graph discovers connected conduit components.
package graph

import (
	"conduitcraft.ai/internal/sim/conduit/connectivity"
	"conduitcraft.ai/internal/sim/conduit/model"
)

// Graph is one connected component of conduits. Nodes is a snapshot of each
// member's state taken during discovery.
type Graph struct {
	Nodes   map[model.Vec3i]model.State
	Edges   map[model.Vec3i][]model.Vec3i
	Sources map[model.Vec3i]int

	// OverBudget is set when discovery visited more nodes than Options.MaxNodes.
	OverBudget bool
}

type Options struct {
	// MaxNodes is a soft visit budget; 0 disables it.
	MaxNodes int
}

// Discover walks breadth-first from seed through mutually connected faces and
// returns the full component. ok is false when seed is not a loaded conduit.
// The budget only flags the graph; it never truncates the result.
func Discover(lookup connectivity.Lookup, seed model.Vec3i, opts Options) (g Graph, ok bool) {
	if lookup == nil {
		return Graph{}, false
	}
	st, ok := lookup.ConduitAt(seed)
	if !ok {
		return Graph{}, false
	}
	g = Graph{
		Nodes:   map[model.Vec3i]model.State{seed: st},
		Edges:   map[model.Vec3i][]model.Vec3i{},
		Sources: map[model.Vec3i]int{},
	}

	q := []model.Vec3i{seed}
	for len(q) > 0 {
		p := q[0]
		q = q[1:]
		ps := g.Nodes[p]
		if ps.IsSource() {
			g.Sources[p] = ps.Power
		}

		ns := connectivity.Neighbors(lookup, p, ps.Mask)
		g.Edges[p] = ns
		for _, np := range ns {
			if _, seen := g.Nodes[np]; seen {
				continue
			}
			nst, ok := lookup.ConduitAt(np)
			if !ok {
				continue
			}
			g.Nodes[np] = nst
			q = append(q, np)
		}
	}
	if opts.MaxNodes > 0 && len(g.Nodes) > opts.MaxNodes {
		g.OverBudget = true
	}
	return g, true
}

func (g Graph) Len() int { return len(g.Nodes) }

func (g Graph) Contains(pos model.Vec3i) bool {
	_, ok := g.Nodes[pos]
	return ok
}

// Members returns member positions in sorted order.
func (g Graph) Members() []model.Vec3i { return model.SortedPositions(g.Nodes) }

// Anchor returns the smallest member position; it names the component deterministically.
func (g Graph) Anchor() model.Vec3i {
	var best model.Vec3i
	first := true
	for p := range g.Nodes {
		if first || model.Less(p, best) {
			best = p
			first = false
		}
	}
	return best
}

// SetSourceLevel updates a source's externally driven level in the snapshot.
// It reports false when pos is not a source member.
func (g Graph) SetSourceLevel(pos model.Vec3i, level int) bool {
	st, ok := g.Nodes[pos]
	if !ok || !st.IsSource() {
		return false
	}
	st.Power = st.ClampPower(level)
	g.Nodes[pos] = st
	g.Sources[pos] = st.Power
	return true
}

// SetPower records a propagated level into the snapshot after write-back.
func (g Graph) SetPower(pos model.Vec3i, level int) {
	st, ok := g.Nodes[pos]
	if !ok {
		return
	}
	st.Power = level
	g.Nodes[pos] = st
}
