package world

import (
	"conduitcraft.ai/internal/sim/conduit/model"
	"conduitcraft.ai/internal/sim/conduit/network"
	"conduitcraft.ai/internal/sim/world/feature/admin/debug"
	"conduitcraft.ai/internal/sim/world/terrain/store"
)

// debugEnv adapts the world to the /conduit commands. Every method is a host
// edit: storage changes first, then the network manager is notified.
type debugEnv struct{ w *World }

func (e debugEnv) ConduitAt(pos model.Vec3i) (model.State, bool) {
	return e.w.chunks.ConduitAt(pos)
}

func (e debugEnv) NetworkInfo(pos model.Vec3i) (network.DebugInfo, bool) {
	return e.w.conduits.NetworkDebugInfo(pos)
}

func (e debugEnv) Recalculate(pos model.Vec3i) bool {
	_, ok := e.w.conduits.RecalculateNetworkNow(pos)
	if ok {
		e.w.audit(AuditEntry{Action: AuditRecalc, Pos: pos.ToArray()})
	}
	return ok
}

func (e debugEnv) OverridePower(pos model.Vec3i, level int) (int, bool) {
	before, ok := e.w.chunks.ConduitAt(pos)
	if !ok {
		return 0, false
	}
	_, settled, ok := e.w.conduits.OverridePower(pos, level)
	if !ok {
		return 0, false
	}
	e.w.audit(AuditEntry{Action: AuditOverride, Pos: pos.ToArray(), Block: before.Block, From: before.Power, To: settled})
	return settled, true
}

func (e debugEnv) SetSource(pos model.Vec3i, level int) (int, bool) {
	before, ok := e.w.chunks.ConduitAt(pos)
	if !ok || !before.IsSource() {
		return 0, false
	}
	if _, ok := e.w.conduits.OnSourcePowerChanged(pos, level); !ok {
		return 0, false
	}
	settled, _ := e.w.conduits.PowerLevelAt(pos)
	e.w.audit(AuditEntry{Action: AuditSource, Pos: pos.ToArray(), Block: before.Block, From: before.Power, To: settled})
	return settled, true
}

func (e debugEnv) Place(pos model.Vec3i, block string, mask *model.Mask) error {
	if _, occupied := e.w.chunks.ConduitAt(pos); occupied {
		return debug.ErrOccupied
	}
	st, err := e.w.catalogs.NewState(block, mask)
	if err != nil {
		return err
	}
	if err := e.w.chunks.PutConduit(pos, st); err != nil {
		return err
	}
	e.w.conduits.OnConduitPlaced(pos)
	after, _ := e.w.chunks.ConduitAt(pos)
	e.w.audit(AuditEntry{Action: AuditPlace, Pos: pos.ToArray(), Block: st.Block, To: after.Power})
	return nil
}

func (e debugEnv) Break(pos model.Vec3i) bool {
	before, ok := e.w.chunks.RemoveConduit(pos)
	if !ok {
		return false
	}
	e.w.conduits.OnConduitRemoved(pos)
	e.w.audit(AuditEntry{Action: AuditBreak, Pos: pos.ToArray(), Block: before.Block, From: before.Power})
	return true
}

func (e debugEnv) LoadChunk(cx, cz int) (int, bool) {
	k := store.ChunkKey{CX: cx, CZ: cz}
	if e.w.chunks.Loaded(k) {
		return 0, false
	}
	ps := e.w.chunks.LoadChunk(k)
	e.w.conduits.OnChunkLoaded(ps)
	e.w.audit(AuditEntry{Action: AuditLoad, Pos: [3]int{cx, 0, cz}, To: len(ps)})
	return len(ps), true
}

func (e debugEnv) UnloadChunk(cx, cz int) (int, bool) {
	ps, ok := e.w.chunks.UnloadChunk(store.ChunkKey{CX: cx, CZ: cz})
	if !ok {
		return 0, false
	}
	e.w.conduits.OnChunkUnloaded(ps)
	e.w.audit(AuditEntry{Action: AuditUnload, Pos: [3]int{cx, 0, cz}, From: len(ps)})
	return len(ps), true
}

func (e debugEnv) Stats() debug.Stats {
	st := e.w.conduits.Stats()
	return debug.Stats{
		Networks:     st.Networks,
		Blocks:       st.Blocks,
		LastID:       uint64(st.LastID),
		LoadedChunks: len(e.w.chunks.Chunks),
		Tick:         e.w.tick.Load(),
	}
}
