// Package propagate computes steady-state power levels across one conduit graph.
package propagate

import (
	"conduitcraft.ai/internal/sim/conduit/graph"
	"conduitcraft.ai/internal/sim/conduit/model"
)

// Propagate returns the settled power level of every member of g.
//
// Sources keep their externally set level. Every other member sits at some hop
// distance d from the nearest source and takes the maximum, over neighbors at
// distance d-1 or d, of the neighbor's level minus its own decay, clamped to
// [0, MaxPower]. Same-layer candidates are relaxed in sorted position order
// until the layer is stable, so the result does not depend on visit order.
// Members with no path to a source settle at 0.
func Propagate(g graph.Graph) map[model.Vec3i]int {
	levels := make(map[model.Vec3i]int, len(g.Nodes))
	dist := make(map[model.Vec3i]int, len(g.Nodes))
	for p := range g.Nodes {
		levels[p] = 0
	}
	if len(g.Nodes) == 0 {
		return levels
	}

	var layer []model.Vec3i
	for _, p := range model.SortedPositions(g.Sources) {
		st, ok := g.Nodes[p]
		if !ok || !st.IsSource() {
			continue
		}
		levels[p] = st.ClampPower(g.Sources[p])
		dist[p] = 0
		layer = append(layer, p)
	}

	for d := 1; len(layer) > 0; d++ {
		var next []model.Vec3i
		for _, a := range layer {
			for _, b := range g.Edges[a] {
				if _, seen := dist[b]; seen {
					continue
				}
				if _, member := g.Nodes[b]; !member {
					continue
				}
				dist[b] = d
				next = append(next, b)
			}
		}
		for _, b := range next {
			st := g.Nodes[b]
			best := 0
			for _, a := range g.Edges[b] {
				if da, ok := dist[a]; !ok || da != d-1 {
					continue
				}
				if c := st.ClampPower(levels[a] - st.Decay); c > best {
					best = c
				}
			}
			levels[b] = best
		}
		model.SortPositions(next)
		for changed := true; changed; {
			changed = false
			for _, b := range next {
				st := g.Nodes[b]
				for _, a := range g.Edges[b] {
					if dist[a] != d {
						continue
					}
					if c := st.ClampPower(levels[a] - st.Decay); c > levels[b] {
						levels[b] = c
						changed = true
					}
				}
			}
		}
		layer = next
	}
	return levels
}

// Range returns the min and max level in levels; ok is false when empty.
func Range(levels map[model.Vec3i]int) (lo, hi int, ok bool) {
	for _, v := range levels {
		if !ok {
			lo, hi, ok = v, v, true
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, ok
}
