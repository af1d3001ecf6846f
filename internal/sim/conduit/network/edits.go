package network

import "conduitcraft.ai/internal/sim/conduit/model"

// OnConduitPlaced integrates a conduit the host has just stored at pos. The new
// block joins the network it touches, merges every network it bridges into the
// smallest of their ids, or starts a new network. Returns false when pos holds
// no loaded conduit.
func (m *Manager) OnConduitPlaced(pos model.Vec3i) ([]Report, bool) {
	g, ok := m.discover(m.store, pos)
	if !ok {
		return nil, false
	}
	id, orphans := m.absorb(g, ReasonPlace)
	ids := append([]NetworkID{id}, m.rehome(m.store, orphans, ReasonPlace)...)
	return m.recalcAll(ids, ReasonPlace), true
}

// OnConduitRemoved drops pos from its network and recalculates every piece the
// network splits into. Returns false when pos was not part of a network.
func (m *Manager) OnConduitRemoved(pos model.Vec3i) ([]Report, bool) {
	if _, ok := m.networksByBlock[pos]; !ok {
		return nil, false
	}
	ids := m.evict([]model.Vec3i{pos}, ReasonRemove)
	return m.recalcAll(ids, ReasonRemove), true
}

// OnSourcePowerChanged sets a source's level (clamped to its range) and
// recalculates only the owning network.
func (m *Manager) OnSourcePowerChanged(pos model.Vec3i, level int) (Report, bool) {
	return m.setSource(pos, level, ReasonSource)
}

func (m *Manager) setSource(pos model.Vec3i, level int, reason Reason) (Report, bool) {
	st, ok := m.store.ConduitAt(pos)
	if !ok || !st.IsSource() {
		return Report{}, false
	}
	level = st.ClampPower(level)
	m.store.SetConduitPowerLevel(pos, level)

	id, ok := m.ensureIndexed(pos, reason)
	if !ok {
		return Report{}, false
	}
	m.networks[id].Graph.SetSourceLevel(pos, level)
	return m.recalc(id, reason)
}

// ensureIndexed returns pos's network, discovering it lazily on first touch.
func (m *Manager) ensureIndexed(pos model.Vec3i, reason Reason) (NetworkID, bool) {
	if id, ok := m.networksByBlock[pos]; ok && m.networks[id] != nil {
		return id, true
	}
	g, ok := m.discover(m.store, pos)
	if !ok {
		return 0, false
	}
	id, orphans := m.absorb(g, reason)
	for _, oid := range m.rehome(m.store, orphans, reason) {
		m.recalc(oid, reason)
	}
	return id, true
}

// OverridePower forces a level at pos, bypassing propagation. The value is
// clamped silently. A source override behaves like a source change; any other
// block is recalculated straight away, so the settled level is what propagation
// dictates. settled is the level stored at pos afterwards.
func (m *Manager) OverridePower(pos model.Vec3i, level int) (r Report, settled int, ok bool) {
	st, ok := m.store.ConduitAt(pos)
	if !ok {
		return Report{}, 0, false
	}
	if st.IsSource() {
		r, ok = m.setSource(pos, level, ReasonOverride)
	} else {
		m.store.SetConduitPowerLevel(pos, st.ClampPower(level))
		var id NetworkID
		if id, ok = m.ensureIndexed(pos, ReasonOverride); ok {
			r, ok = m.recalc(id, ReasonOverride)
		}
	}
	settled, _ = m.PowerLevelAt(pos)
	return r, settled, ok
}

// RecalculateNetworkNow rediscovers the network around pos from scratch and
// recomputes it. Drift between the index and the world (missed edits) is
// reconciled on the way: merges keep the smallest id, split-off parts get new ids.
func (m *Manager) RecalculateNetworkNow(pos model.Vec3i) ([]Report, bool) {
	g, ok := m.discover(m.store, pos)
	if !ok {
		if _, indexed := m.networksByBlock[pos]; indexed {
			ids := m.evict([]model.Vec3i{pos}, ReasonForced)
			return m.recalcAll(ids, ReasonForced), true
		}
		return nil, false
	}
	id, orphans := m.absorb(g, ReasonForced)
	ids := append([]NetworkID{id}, m.rehome(m.store, orphans, ReasonForced)...)
	return m.recalcAll(ids, ReasonForced), true
}

// OnChunkLoaded integrates the conduits of a freshly loaded chunk in one batch.
func (m *Manager) OnChunkLoaded(positions []model.Vec3i) []Report {
	ps := append([]model.Vec3i(nil), positions...)
	model.SortPositions(ps)
	var ids []NetworkID
	built := map[model.Vec3i]bool{}
	for _, p := range ps {
		if built[p] {
			continue
		}
		g, ok := m.discover(m.store, p)
		if !ok {
			continue
		}
		for q := range g.Nodes {
			built[q] = true
		}
		id, orphans := m.absorb(g, ReasonChunkLoad)
		ids = append(ids, id)
		ids = append(ids, m.rehome(m.store, orphans, ReasonChunkLoad)...)
	}
	return m.recalcAll(ids, ReasonChunkLoad)
}

// OnChunkUnloaded evicts the conduits of a chunk that is no longer loaded and
// recalculates whatever remains of their networks.
func (m *Manager) OnChunkUnloaded(positions []model.Vec3i) []Report {
	ids := m.evict(positions, ReasonChunkUnload)
	return m.recalcAll(ids, ReasonChunkUnload)
}
