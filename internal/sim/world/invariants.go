package world

import "conduitcraft.ai/internal/sim/conduit/model"

// checkInvariants verifies the network index and rebuilds whatever it finds broken.
func (w *World) checkInvariants(tick uint64) {
	vs := w.conduits.Violations()
	if w.metrics != nil {
		w.metrics.ObserveViolations(w.cfg.ID, len(vs))
	}
	if len(vs) == 0 {
		return
	}
	w.logger.Printf("tick %d: %d conduit index violations, first: %s", tick, len(vs), vs[0])
	reports := w.conduits.Repair(vs)
	seen := map[model.Vec3i]bool{}
	for _, v := range vs {
		if seen[v.Pos] {
			continue
		}
		seen[v.Pos] = true
		w.audit(AuditEntry{Actor: "SYSTEM", Action: AuditRepair, Pos: v.Pos.ToArray(), Reason: v.Message})
	}
	w.logger.Printf("tick %d: repair recalculated %d networks", tick, len(reports))
}

func (w *World) publishStats() {
	if w.metrics == nil {
		return
	}
	st := w.conduits.Stats()
	w.metrics.SetNetworkStats(w.cfg.ID, st.Networks, st.Blocks, len(w.chunks.Chunks))
}

func (w *World) state() State {
	st := w.conduits.Stats()
	keys := w.chunks.LoadedChunkKeys()
	chunks := make([][2]int, 0, len(keys))
	for _, k := range keys {
		chunks = append(chunks, [2]int{k.CX, k.CZ})
	}
	return State{
		WorldID:      w.cfg.ID,
		Tick:         w.tick.Load(),
		Networks:     w.conduits.Summaries(),
		Blocks:       st.Blocks,
		LastID:       uint64(st.LastID),
		LoadedChunks: chunks,
		Observers:    len(w.observers),
	}
}
