package world

import (
	"fmt"

	"conduitcraft.ai/internal/sim/conduit/model"
)

// ---- Debug/Test Helpers ----
//
// These are NOT safe to call concurrently with Run(). Use them only in tests that
// drive the world via StepOnce(), from a single goroutine.

// DebugPutConduit stores a block without notifying the network manager, the way
// a missed host callback would leave it.
func (w *World) DebugPutConduit(pos model.Vec3i, block string) error {
	st, err := w.catalogs.NewState(block, nil)
	if err != nil {
		return err
	}
	return w.chunks.PutConduit(pos, st)
}

// DebugRemoveConduit removes a block without notifying the network manager.
func (w *World) DebugRemoveConduit(pos model.Vec3i) bool {
	_, ok := w.chunks.RemoveConduit(pos)
	return ok
}

func (w *World) DebugPowerAt(pos model.Vec3i) (int, bool) {
	return w.conduits.PowerLevelAt(pos)
}

func (w *World) DebugCheckInvariants() error {
	if err := w.conduits.CheckInvariants(); err != nil {
		return fmt.Errorf("world %s: %w", w.cfg.ID, err)
	}
	return nil
}
