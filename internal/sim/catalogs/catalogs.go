package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"conduitcraft.ai/internal/sim/conduit/model"
)

type Catalogs struct {
	Blocks BlockCatalog
}

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

// BlockDef describes one conduit block type. DefaultMask lists face names
// ("EAST", "UP", ...); empty means all six faces.
type BlockDef struct {
	ID          string   `json:"id"`
	Category    string   `json:"category"`
	MaxPower    int      `json:"max_power,omitempty"`
	DecayRate   int      `json:"decay_rate"`
	DefaultMask []string `json:"default_mask,omitempty"`
	// Power is the initial level of a source block.
	Power int `json:"power,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadBlocks(filepath.Join(configDir, "blocks.json"), &c.Blocks); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(path string, out *BlockCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return parseBlocks(raw, out)
}

func parseBlocks(raw []byte, out *BlockCatalog) error {
	out.DefsDigest = sha256Hex(raw)

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" {
			return fmt.Errorf("blocks.json: empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("blocks.json: duplicate id %s", d.ID)
		}
		if d.MaxPower == 0 {
			d.MaxPower = model.DefaultMaxPower
		}
		if _, err := d.State(); err != nil {
			return fmt.Errorf("blocks.json: %s: %w", d.ID, err)
		}
		out.Defs[d.ID] = d
	}
	if len(out.Defs) == 0 {
		return fmt.Errorf("blocks.json: no blocks")
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

// ParseMask turns face names into a mask. An empty list means every face.
func ParseMask(names []string) (model.Mask, error) {
	if len(names) == 0 {
		return model.MaskAll, nil
	}
	var m model.Mask
	for _, n := range names {
		f, ok := faceByName(n)
		if !ok {
			return 0, fmt.Errorf("unknown face %q", n)
		}
		m = m.With(f)
	}
	return m, nil
}

func faceByName(s string) (model.Face, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, f := range model.Faces {
		if f.String() == s {
			return f, true
		}
	}
	return 0, false
}

// State builds the initial block state for d.
func (d BlockDef) State() (model.State, error) {
	cat, err := model.ParseCategory(d.Category)
	if err != nil {
		return model.State{}, err
	}
	mask, err := ParseMask(d.DefaultMask)
	if err != nil {
		return model.State{}, err
	}
	power := 0
	if cat == model.CategorySource {
		power = d.Power
	}
	return model.NewState(d.ID, cat, d.MaxPower, mask, d.DecayRate, power)
}

// NewState builds the state for block id. mask overrides the default when non-nil.
func (c *Catalogs) NewState(id string, mask *model.Mask) (model.State, error) {
	d, ok := c.Blocks.Defs[id]
	if !ok {
		return model.State{}, fmt.Errorf("unknown block %q", id)
	}
	st, err := d.State()
	if err != nil {
		return model.State{}, err
	}
	if mask != nil {
		st.Mask = *mask
		if err := st.Validate(); err != nil {
			return model.State{}, err
		}
	}
	return st, nil
}
