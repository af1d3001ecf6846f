package multiworld

import (
	"os"
	"path/filepath"
	"testing"

	"conduitcraft.ai/internal/sim/tuning"
)

func TestLoad_WorldsYAML(t *testing.T) {
	cfg, err := Load("../../../configs/worlds.yaml")
	if err != nil {
		t.Fatalf("load worlds.yaml: %v", err)
	}
	if cfg.DefaultWorldID != "OVERWORLD" {
		t.Fatalf("default world: got %q", cfg.DefaultWorldID)
	}
	if len(cfg.Worlds) != 2 {
		t.Fatalf("worlds: got %d want 2", len(cfg.Worlds))
	}
	bench := cfg.Worlds[1].WorldConfig(tuning.Defaults())
	if bench.Bounds.MinY != 0 || bench.Bounds.MaxY != 127 || bench.Bounds.BoundaryR != 256 {
		t.Fatalf("bench bounds: %+v", bench.Bounds)
	}
	if bench.MaxNetworkSize != 1024 || bench.InvariantCheckEveryTicks != 20 || bench.PreloadChunkRadius != 2 {
		t.Fatalf("bench overrides: %+v", bench)
	}
	ow := cfg.Worlds[0].WorldConfig(tuning.Defaults())
	if ow.Bounds.MinY != -64 || ow.MaxNetworkSize != 4096 || ow.PreloadChunkRadius != 1 {
		t.Fatalf("overworld should inherit tuning: %+v", ow)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Worlds) != 1 || cfg.Worlds[0].ID != "OVERWORLD" {
		t.Fatalf("defaults: %+v", cfg)
	}
}

func TestLoad_DefaultWorldFallsBackToFirst(t *testing.T) {
	p := filepath.Join(t.TempDir(), "worlds.yaml")
	if err := os.WriteFile(p, []byte("worlds:\n  - id: LAB\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultWorldID != "LAB" || cfg.Worlds[0].Type != "LAB" {
		t.Fatalf("normalize: %+v", cfg)
	}
}

func TestConfigValidate_Rejects(t *testing.T) {
	neg := -1
	cases := map[string]Config{
		"empty":    {},
		"dup":      {DefaultWorldID: "A", Worlds: []WorldSpec{{ID: "A"}, {ID: "A"}}},
		"default":  {DefaultWorldID: "B", Worlds: []WorldSpec{{ID: "A"}}},
		"radius":   {DefaultWorldID: "A", Worlds: []WorldSpec{{ID: "A", PreloadChunkRadius: &neg}}},
		"boundary": {DefaultWorldID: "A", Worlds: []WorldSpec{{ID: "A", BoundaryR: -5}}},
		"blank id": {DefaultWorldID: "", Worlds: []WorldSpec{{ID: ""}}},
	}
	for name, cfg := range cases {
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestManifest(t *testing.T) {
	cfg, err := Load("../../../configs/worlds.yaml")
	if err != nil {
		t.Fatal(err)
	}
	m := cfg.Manifest(tuning.Defaults())
	if len(m) != 2 || m[0].WorldID != "OVERWORLD" || m[0].BoundaryR != 30000 || m[1].BoundaryR != 256 {
		t.Fatalf("manifest: %+v", m)
	}
}
