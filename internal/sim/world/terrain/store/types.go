package store

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"conduitcraft.ai/internal/sim/conduit/model"
	"conduitcraft.ai/internal/sim/world/logic/mathx"
)

// ChunkSize is the width of a chunk column along X and Z.
const ChunkSize = 32

var (
	ErrOutOfBounds = errors.New("position out of world bounds")
	ErrNotLoaded   = errors.New("chunk not loaded")
)

type ChunkKey struct {
	CX int
	CZ int
}

func ChunkOf(pos model.Vec3i) ChunkKey {
	return ChunkKey{CX: mathx.FloorDiv(pos.X, ChunkSize), CZ: mathx.FloorDiv(pos.Z, ChunkSize)}
}

// Chunk is one column of conduit blocks. Only conduit positions are stored.
type Chunk struct {
	CX, CZ   int
	Conduits map[model.Vec3i]model.State

	dirty bool
	hash  [32]byte
}

func newChunk(k ChunkKey) *Chunk {
	return &Chunk{CX: k.CX, CZ: k.CZ, Conduits: map[model.Vec3i]model.State{}, dirty: true}
}

func (c *Chunk) Key() ChunkKey { return ChunkKey{CX: c.CX, CZ: c.CZ} }

func (c *Chunk) Set(pos model.Vec3i, st model.State) {
	if old, ok := c.Conduits[pos]; ok && old == st {
		return
	}
	c.Conduits[pos] = st
	c.dirty = true
}

func (c *Chunk) Delete(pos model.Vec3i) (model.State, bool) {
	st, ok := c.Conduits[pos]
	if !ok {
		return model.State{}, false
	}
	delete(c.Conduits, pos)
	c.dirty = true
	return st, true
}

// Digest hashes the conduits in position order.
func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [8]byte
		putInt := func(v int) {
			binary.LittleEndian.PutUint64(tmp[:], uint64(int64(v)))
			h.Write(tmp[:])
		}
		for _, p := range model.SortedPositions(c.Conduits) {
			st := c.Conduits[p]
			putInt(p.X)
			putInt(p.Y)
			putInt(p.Z)
			h.Write([]byte(st.Block))
			h.Write([]byte{0, byte(st.Mask)})
			putInt(st.Power)
			putInt(st.MaxPower)
			putInt(st.Decay)
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

type Bounds struct {
	MinY int
	MaxY int
	// BoundaryR limits |x| and |z|; 0 means unbounded.
	BoundaryR int
}

// ChunkStore is the world block storage. Accessed only from the world loop goroutine.
type ChunkStore struct {
	Bounds Bounds
	Chunks map[ChunkKey]*Chunk

	// Unloaded chunks keep their conduits until loaded again.
	parked map[ChunkKey]*Chunk
}

func NewChunkStore(b Bounds) *ChunkStore {
	return &ChunkStore{
		Bounds: b,
		Chunks: map[ChunkKey]*Chunk{},
		parked: map[ChunkKey]*Chunk{},
	}
}
