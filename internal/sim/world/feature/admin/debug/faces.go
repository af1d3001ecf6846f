package debug

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"conduitcraft.ai/internal/protocol"
	"conduitcraft.ai/internal/sim/conduit/model"
	"conduitcraft.ai/internal/sim/world/terrain/store"
)

var faceLetters = map[byte]model.Face{
	'E': model.FaceEast,
	'W': model.FaceWest,
	'U': model.FaceUp,
	'D': model.FaceDown,
	'S': model.FaceSouth,
	'N': model.FaceNorth,
}

// ParseFaces accepts face letters ("EW", "nsud"), "all", "none", or a 6-bit number.
func ParseFaces(s string) (model.Mask, error) {
	switch strings.ToLower(s) {
	case "all":
		return model.MaskAll, nil
	case "none", "-":
		return model.MaskNone, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > int(model.MaskAll) {
			return 0, fmt.Errorf("mask %d out of range", n)
		}
		return model.Mask(n), nil
	}
	var m model.Mask
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		f, ok := faceLetters[c]
		if !ok {
			return 0, fmt.Errorf("unknown face %q", s[i])
		}
		m = m.With(f)
	}
	return m, nil
}

// ErrOccupied is returned by Env.Place when the target already holds a conduit.
var ErrOccupied = errors.New("position occupied")

// CodeOf maps a placement error to a protocol code.
func CodeOf(err error) string {
	switch {
	case errors.Is(err, store.ErrNotLoaded):
		return protocol.ErrNotLoaded
	case errors.Is(err, store.ErrOutOfBounds):
		return protocol.ErrInvalidTarget
	case errors.Is(err, ErrOccupied):
		return protocol.ErrConflict
	default:
		return protocol.ErrBadRequest
	}
}
