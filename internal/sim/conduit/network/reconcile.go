package network

import (
	"sort"
	"time"

	"conduitcraft.ai/internal/sim/conduit/connectivity"
	"conduitcraft.ai/internal/sim/conduit/graph"
	"conduitcraft.ai/internal/sim/conduit/model"
	"conduitcraft.ai/internal/sim/conduit/propagate"
)

func sortIDs(ids []NetworkID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func (m *Manager) allocID() NetworkID {
	m.lastID++
	return m.lastID
}

func (m *Manager) discover(lookup connectivity.Lookup, seed model.Vec3i) (graph.Graph, bool) {
	g, ok := graph.Discover(lookup, seed, graph.Options{MaxNodes: m.opts.MaxNetworkSize})
	if ok && g.OverBudget {
		m.logf("conduit network at %s has %d members (capacity %d)", g.Anchor(), g.Len(), m.opts.MaxNetworkSize)
	}
	return g, ok
}

// idsAmong returns the distinct network ids indexed for g's members, ascending.
func (m *Manager) idsAmong(g graph.Graph) []NetworkID {
	seen := map[NetworkID]bool{}
	var out []NetworkID
	for p := range g.Nodes {
		id, ok := m.networksByBlock[p]
		if !ok || seen[id] {
			continue
		}
		if m.networks[id] == nil {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sortIDs(out)
	return out
}

func (m *Manager) install(id NetworkID, g graph.Graph) {
	m.networks[id] = &Network{ID: id, Graph: g}
	for p := range g.Nodes {
		m.networksByBlock[p] = id
	}
}

// drop removes a network and its index entries without reporting.
func (m *Manager) drop(id NetworkID) *Network {
	net := m.networks[id]
	if net == nil {
		return nil
	}
	delete(m.networks, id)
	for p := range net.Graph.Nodes {
		if m.networksByBlock[p] == id {
			delete(m.networksByBlock, p)
		}
	}
	return net
}

func (m *Manager) retire(id NetworkID, reason Reason, into NetworkID) {
	if m.drop(id) == nil {
		return
	}
	if m.opts.OnRetire != nil {
		m.opts.OnRetire(Retirement{NetworkID: id, Reason: reason, Into: into})
	}
}

// claim registers g under id. Networks that currently own any of g's members are
// merged into id; their members that fall outside g are returned as orphans.
func (m *Manager) claim(g graph.Graph, id NetworkID, reason Reason) (orphans []model.Vec3i) {
	for _, old := range m.idsAmong(g) {
		net := m.networks[old]
		for p := range net.Graph.Nodes {
			if !g.Contains(p) {
				orphans = append(orphans, p)
			}
		}
		if old == id {
			m.drop(old)
			continue
		}
		m.retire(old, reason, id)
	}
	if net := m.networks[id]; net != nil {
		for p := range net.Graph.Nodes {
			if !g.Contains(p) {
				orphans = append(orphans, p)
			}
		}
		m.drop(id)
	}
	m.install(id, g)
	model.SortPositions(orphans)
	return orphans
}

// absorb registers g, keeping the smallest id already present among its members
// or allocating a new one.
func (m *Manager) absorb(g graph.Graph, reason Reason) (NetworkID, []model.Vec3i) {
	var id NetworkID
	if ids := m.idsAmong(g); len(ids) > 0 {
		id = ids[0]
	} else {
		id = m.allocID()
	}
	return id, m.claim(g, id, reason)
}

// rehome gives every orphan a network again. Orphans that are no longer
// conduits simply lose their index entry.
func (m *Manager) rehome(lookup connectivity.Lookup, orphans []model.Vec3i, reason Reason) []NetworkID {
	var out []NetworkID
	for len(orphans) > 0 {
		p := orphans[0]
		orphans = orphans[1:]
		if _, ok := m.networksByBlock[p]; ok {
			continue
		}
		g, ok := m.discover(lookup, p)
		if !ok {
			continue
		}
		id := m.allocID()
		orphans = append(orphans, m.claim(g, id, reason)...)
		out = append(out, id)
	}
	return out
}

type excluding struct {
	lookup connectivity.Lookup
	gone   map[model.Vec3i]bool
}

func (e excluding) ConduitAt(pos model.Vec3i) (model.State, bool) {
	if e.gone[pos] {
		return model.State{}, false
	}
	return e.lookup.ConduitAt(pos)
}

// evict removes positions from their networks and splits what remains into
// connected pieces. Per former network the largest piece keeps the id (ties go
// to the piece with the smallest anchor); the others get fresh ids in that order.
func (m *Manager) evict(positions []model.Vec3i, reason Reason) []NetworkID {
	gone := map[model.Vec3i]bool{}
	byID := map[NetworkID][]model.Vec3i{}
	for _, p := range positions {
		if gone[p] {
			continue
		}
		gone[p] = true
		if id, ok := m.networksByBlock[p]; ok {
			byID[id] = append(byID[id], p)
		}
	}
	lookup := excluding{lookup: m.store, gone: gone}

	ids := make([]NetworkID, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sortIDs(ids)

	var touched []NetworkID
	for _, id := range ids {
		net := m.drop(id)
		if net == nil {
			continue
		}
		removed := byID[id]
		model.SortPositions(removed)

		// Former neighbors first, then any former member not reached from them.
		var seeds []model.Vec3i
		for _, p := range removed {
			for _, f := range model.Faces {
				np := p.Step(f)
				if !gone[np] && net.Graph.Contains(np) {
					seeds = append(seeds, np)
				}
			}
		}
		for _, p := range net.Graph.Members() {
			if !gone[p] {
				seeds = append(seeds, p)
			}
		}

		covered := map[model.Vec3i]bool{}
		var pieces []graph.Graph
		for _, s := range seeds {
			if covered[s] {
				continue
			}
			g, ok := m.discover(lookup, s)
			if !ok {
				continue
			}
			for p := range g.Nodes {
				covered[p] = true
			}
			pieces = append(pieces, g)
		}
		if len(pieces) == 0 {
			if m.opts.OnRetire != nil {
				m.opts.OnRetire(Retirement{NetworkID: id, Reason: reason})
			}
			continue
		}
		sort.SliceStable(pieces, func(i, j int) bool {
			if pieces[i].Len() != pieces[j].Len() {
				return pieces[i].Len() > pieces[j].Len()
			}
			return model.Less(pieces[i].Anchor(), pieces[j].Anchor())
		})

		var orphans []model.Vec3i
		for i, g := range pieces {
			pid := id
			if i > 0 {
				pid = m.allocID()
			}
			orphans = append(orphans, m.claim(g, pid, reason)...)
			touched = append(touched, pid)
		}
		touched = append(touched, m.rehome(lookup, orphans, reason)...)
	}
	return touched
}

// recalc propagates one network and writes the new levels back. The full
// mapping is computed before any storage write.
func (m *Manager) recalc(id NetworkID, reason Reason) (Report, bool) {
	net := m.networks[id]
	if net == nil {
		return Report{}, false
	}
	start := time.Now()
	// Sources are externally driven; take their current level from storage.
	for p := range net.Graph.Sources {
		if st, ok := m.store.ConduitAt(p); ok && st.IsSource() {
			net.Graph.SetSourceLevel(p, st.Power)
		}
	}
	levels := propagate.Propagate(net.Graph)

	var changes []Change
	for _, p := range net.Graph.Members() {
		st, ok := m.store.ConduitAt(p)
		if !ok || st.IsSource() {
			continue
		}
		if to := levels[p]; st.Power != to {
			changes = append(changes, Change{Pos: p, From: st.Power, To: to})
		}
	}
	for _, c := range changes {
		m.store.SetConduitPowerLevel(c.Pos, c.To)
	}
	for p, lvl := range levels {
		net.Graph.SetPower(p, lvl)
	}

	r := Report{
		NetworkID:  id,
		Reason:     reason,
		Members:    net.Graph.Len(),
		Sources:    len(net.Graph.Sources),
		Changes:    changes,
		OverBudget: net.Graph.OverBudget,
		Elapsed:    time.Since(start),
	}
	if m.opts.OnRecalc != nil {
		m.opts.OnRecalc(r)
	}
	return r, true
}

// recalcAll recalculates each distinct live id once, in ascending order.
func (m *Manager) recalcAll(ids []NetworkID, reason Reason) []Report {
	seen := map[NetworkID]bool{}
	uniq := make([]NetworkID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		uniq = append(uniq, id)
	}
	sortIDs(uniq)
	out := make([]Report, 0, len(uniq))
	for _, id := range uniq {
		if r, ok := m.recalc(id, reason); ok {
			out = append(out, r)
		}
	}
	return out
}
