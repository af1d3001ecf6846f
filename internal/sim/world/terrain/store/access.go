package store

import (
	"sort"

	"conduitcraft.ai/internal/sim/conduit/model"
	"conduitcraft.ai/internal/sim/world/logic/mathx"
)

func (s *ChunkStore) InBounds(pos model.Vec3i) bool {
	if pos.Y < s.Bounds.MinY || pos.Y > s.Bounds.MaxY {
		return false
	}
	if r := s.Bounds.BoundaryR; r > 0 {
		if mathx.AbsInt(pos.X) > r || mathx.AbsInt(pos.Z) > r {
			return false
		}
	}
	return true
}

func (s *ChunkStore) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.Chunks))
	for k := range s.Chunks {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func sortKeys(keys []ChunkKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
}

func (s *ChunkStore) Loaded(k ChunkKey) bool {
	_, ok := s.Chunks[k]
	return ok
}

// LoadChunk makes a chunk visible again and returns its conduit positions.
// Loading an already loaded chunk returns nil.
func (s *ChunkStore) LoadChunk(k ChunkKey) []model.Vec3i {
	if s.Loaded(k) {
		return nil
	}
	ch := s.parked[k]
	if ch == nil {
		ch = newChunk(k)
	}
	delete(s.parked, k)
	s.Chunks[k] = ch
	return model.SortedPositions(ch.Conduits)
}

// UnloadChunk hides a chunk and returns the conduit positions that disappeared.
func (s *ChunkStore) UnloadChunk(k ChunkKey) ([]model.Vec3i, bool) {
	ch := s.Chunks[k]
	if ch == nil {
		return nil, false
	}
	delete(s.Chunks, k)
	if len(ch.Conduits) > 0 {
		s.parked[k] = ch
	}
	return model.SortedPositions(ch.Conduits), true
}

func (s *ChunkStore) chunkFor(pos model.Vec3i) *Chunk {
	if !s.InBounds(pos) {
		return nil
	}
	return s.Chunks[ChunkOf(pos)]
}

// ConduitAt reports the conduit at pos. Unloaded chunks read as empty.
func (s *ChunkStore) ConduitAt(pos model.Vec3i) (model.State, bool) {
	ch := s.chunkFor(pos)
	if ch == nil {
		return model.State{}, false
	}
	st, ok := ch.Conduits[pos]
	return st, ok
}

// PutConduit stores st at pos, replacing any previous conduit there.
func (s *ChunkStore) PutConduit(pos model.Vec3i, st model.State) error {
	if !s.InBounds(pos) {
		return ErrOutOfBounds
	}
	ch := s.Chunks[ChunkOf(pos)]
	if ch == nil {
		return ErrNotLoaded
	}
	st.Power = st.ClampPower(st.Power)
	if err := st.Validate(); err != nil {
		return err
	}
	ch.Set(pos, st)
	return nil
}

func (s *ChunkStore) RemoveConduit(pos model.Vec3i) (model.State, bool) {
	ch := s.chunkFor(pos)
	if ch == nil {
		return model.State{}, false
	}
	return ch.Delete(pos)
}

// SetConduitPowerLevel writes a level, clamped to the block's range.
func (s *ChunkStore) SetConduitPowerLevel(pos model.Vec3i, level int) bool {
	ch := s.chunkFor(pos)
	if ch == nil {
		return false
	}
	st, ok := ch.Conduits[pos]
	if !ok {
		return false
	}
	st.Power = st.ClampPower(level)
	ch.Set(pos, st)
	return true
}

func (s *ChunkStore) ConduitsInChunk(k ChunkKey) []model.Vec3i {
	ch := s.Chunks[k]
	if ch == nil {
		return nil
	}
	return model.SortedPositions(ch.Conduits)
}

// Count returns the number of loaded conduits.
func (s *ChunkStore) Count() int {
	n := 0
	for _, ch := range s.Chunks {
		n += len(ch.Conduits)
	}
	return n
}
