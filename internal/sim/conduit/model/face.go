package model

import "math/bits"

// Face is one of the six axis-aligned faces of a block.
type Face uint8

const (
	FaceEast  Face = iota // +X
	FaceWest              // -X
	FaceUp                // +Y
	FaceDown              // -Y
	FaceSouth             // +Z
	FaceNorth             // -Z

	NumFaces = 6
)

var faceOffsets = [NumFaces]Vec3i{
	FaceEast:  {X: 1},
	FaceWest:  {X: -1},
	FaceUp:    {Y: 1},
	FaceDown:  {Y: -1},
	FaceSouth: {Z: 1},
	FaceNorth: {Z: -1},
}

var faceNames = [NumFaces]string{"EAST", "WEST", "UP", "DOWN", "SOUTH", "NORTH"}

// Faces lists every face in mask bit order.
var Faces = [NumFaces]Face{FaceEast, FaceWest, FaceUp, FaceDown, FaceSouth, FaceNorth}

func (f Face) Offset() Vec3i { return faceOffsets[f] }

// Opposite pairs are adjacent in bit order, so flipping the low bit gives the reciprocal face.
func (f Face) Opposite() Face { return f ^ 1 }

func (f Face) Valid() bool { return f < NumFaces }

func (f Face) String() string {
	if !f.Valid() {
		return "INVALID"
	}
	return faceNames[f]
}

// Mask is a 6-bit set of faces a block is willing to connect through.
type Mask uint8

const (
	MaskNone Mask = 0
	MaskAll  Mask = 1<<NumFaces - 1
)

func MaskOf(faces ...Face) Mask {
	var m Mask
	for _, f := range faces {
		m = m.With(f)
	}
	return m
}

func (m Mask) Has(f Face) bool  { return f.Valid() && m&(1<<f) != 0 }
func (m Mask) With(f Face) Mask { return m | 1<<f }
func (m Mask) Without(f Face) Mask {
	return m &^ (1 << f)
}
func (m Mask) Count() int  { return bits.OnesCount8(uint8(m & MaskAll)) }
func (m Mask) Valid() bool { return m&^MaskAll == 0 }
