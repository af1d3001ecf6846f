package catalogs

import (
	"os"
	"path/filepath"
	"testing"

	"conduitcraft.ai/internal/sim/conduit/model"
)

func TestLoadRepoCatalog(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Blocks.Palette) == 0 || c.Blocks.PaletteDigest == "" || c.Blocks.DefsDigest == "" {
		t.Fatalf("catalog not populated: %+v", c.Blocks)
	}
	st, err := c.NewState("CONDUIT_PIPE_X", nil)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	if st.Mask != model.MaskOf(model.FaceEast, model.FaceWest) || st.Category != model.CategoryRelay {
		t.Fatalf("pipe state=%+v", st)
	}
	cell, err := c.NewState("POWER_CELL", nil)
	if err != nil || !cell.IsSource() || cell.Power != 15 {
		t.Fatalf("power cell=%+v err=%v", cell, err)
	}
	m := model.MaskNone
	lamp, err := c.NewState("LAMP", &m)
	if err != nil || lamp.Mask != model.MaskNone {
		t.Fatalf("lamp=%+v err=%v", lamp, err)
	}
	if _, err := c.NewState("NOPE", nil); err == nil {
		t.Fatalf("expected unknown block error")
	}
}

func TestParseBlocksRejectsBadDefs(t *testing.T) {
	cases := map[string]string{
		"empty id":  `[{"id":"","category":"RELAY"}]`,
		"category":  `[{"id":"X","category":"BATTERY"}]`,
		"decay":     `[{"id":"X","category":"RELAY","decay_rate":-1}]`,
		"face":      `[{"id":"X","category":"RELAY","default_mask":["LEFT"]}]`,
		"duplicate": `[{"id":"X","category":"RELAY"},{"id":"X","category":"SINK"}]`,
		"empty":     `[]`,
		"json":      `{`,
	}
	for name, raw := range cases {
		var out BlockCatalog
		if err := parseBlocks([]byte(raw), &out); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestDigestFollowsFileBytes(t *testing.T) {
	dir := t.TempDir()
	raw := []byte(`[{"id":"W","category":"relay","decay_rate":1}]`)
	if err := os.WriteFile(filepath.Join(dir, "blocks.json"), raw, 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Blocks.DefsDigest != sha256Hex(raw) {
		t.Fatalf("digest mismatch")
	}
	if d := c.Blocks.Defs["W"]; d.MaxPower != model.DefaultMaxPower {
		t.Fatalf("max_power default=%d", d.MaxPower)
	}
}
