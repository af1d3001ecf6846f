// Package connectivity resolves which adjacent conduits a block exchanges power with.
package connectivity

import "conduitcraft.ai/internal/sim/conduit/model"

// Lookup is the read side of the world block storage. A position that is not a
// conduit, or whose chunk is not loaded, reports ok == false.
type Lookup interface {
	ConduitAt(pos model.Vec3i) (model.State, bool)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(pos model.Vec3i) (model.State, bool)

func (f LookupFunc) ConduitAt(pos model.Vec3i) (model.State, bool) { return f(pos) }

// Neighbors returns the adjacent conduits pos is connected to through mask, in face order.
// A face only counts when the neighbor is a conduit whose own mask has the opposite bit set;
// an asymmetric pair is simply not connected.
func Neighbors(lookup Lookup, pos model.Vec3i, mask model.Mask) []model.Vec3i {
	if lookup == nil || mask == model.MaskNone {
		return nil
	}
	out := make([]model.Vec3i, 0, mask.Count())
	for _, f := range model.Faces {
		if !mask.Has(f) {
			continue
		}
		np := pos.Step(f)
		ns, ok := lookup.ConduitAt(np)
		if !ok {
			continue
		}
		if !ns.Mask.Has(f.Opposite()) {
			continue
		}
		out = append(out, np)
	}
	return out
}

// LiveMask returns the faces of pos that are mutually connected right now.
func LiveMask(lookup Lookup, pos model.Vec3i) model.Mask {
	if lookup == nil {
		return model.MaskNone
	}
	s, ok := lookup.ConduitAt(pos)
	if !ok {
		return model.MaskNone
	}
	var live model.Mask
	for _, f := range model.Faces {
		if !s.Mask.Has(f) {
			continue
		}
		ns, ok := lookup.ConduitAt(pos.Step(f))
		if ok && ns.Mask.Has(f.Opposite()) {
			live = live.With(f)
		}
	}
	return live
}

// Connected reports whether a and b are adjacent conduits with reciprocal faces.
func Connected(lookup Lookup, a, b model.Vec3i) bool {
	f, ok := faceBetween(a, b)
	if !ok || lookup == nil {
		return false
	}
	as, ok := lookup.ConduitAt(a)
	if !ok || !as.Mask.Has(f) {
		return false
	}
	bs, ok := lookup.ConduitAt(b)
	return ok && bs.Mask.Has(f.Opposite())
}

func faceBetween(a, b model.Vec3i) (model.Face, bool) {
	for _, f := range model.Faces {
		if a.Step(f) == b {
			return f, true
		}
	}
	return 0, false
}
