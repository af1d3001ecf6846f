package model

import (
	"errors"
	"fmt"
	"strings"

	"conduitcraft.ai/internal/sim/world/logic/mathx"
)

// DefaultMaxPower is the signal ceiling of the stock conduit blocks.
const DefaultMaxPower = 15

type Category string

const (
	CategorySource Category = "SOURCE"
	CategoryRelay  Category = "RELAY"
	CategorySink   Category = "SINK"
)

func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToUpper(strings.TrimSpace(s))); c {
	case CategorySource, CategoryRelay, CategorySink:
		return c, nil
	}
	return "", fmt.Errorf("unknown conduit category %q", s)
}

// State is the per-block conduit record. The world block storage owns it; the
// network engine only reads it by position and writes Power back.
type State struct {
	Block    string
	Category Category
	Power    int
	MaxPower int
	Mask     Mask
	Decay    int
}

// NewState validates a conduit configuration. An out-of-range initial power is clamped.
func NewState(block string, cat Category, maxPower int, mask Mask, decay int, power int) (State, error) {
	s := State{
		Block:    block,
		Category: cat,
		MaxPower: maxPower,
		Mask:     mask,
		Decay:    decay,
	}
	if err := s.Validate(); err != nil {
		return State{}, err
	}
	s.Power = s.ClampPower(power)
	return s, nil
}

func (s State) Validate() error {
	switch s.Category {
	case CategorySource, CategoryRelay, CategorySink:
	default:
		return fmt.Errorf("unknown conduit category %q", s.Category)
	}
	if s.MaxPower <= 0 {
		return fmt.Errorf("max power must be positive: %d", s.MaxPower)
	}
	if s.Decay < 0 {
		return fmt.Errorf("decay rate must be >= 0: %d", s.Decay)
	}
	if !s.Mask.Valid() {
		return errors.New("connection mask has bits outside the six faces")
	}
	if s.Power < 0 || s.Power > s.MaxPower {
		return fmt.Errorf("power %d outside [0, %d]", s.Power, s.MaxPower)
	}
	return nil
}

func (s State) ClampPower(v int) int { return mathx.Clamp(v, 0, s.MaxPower) }

func (s State) IsSource() bool { return s.Category == CategorySource }
