package multiworld

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"conduitcraft.ai/internal/protocol"
	"conduitcraft.ai/internal/sim/tuning"
	"conduitcraft.ai/internal/sim/world"
	"conduitcraft.ai/internal/sim/world/terrain/store"
)

type Config struct {
	DefaultWorldID string      `yaml:"default_world_id"`
	Worlds         []WorldSpec `yaml:"worlds"`
}

// WorldSpec describes one concurrently loaded world. Zero numeric fields
// inherit the value from tuning.yaml.
type WorldSpec struct {
	ID        string `yaml:"id"`
	Type      string `yaml:"type"`
	BoundaryR int    `yaml:"boundary_r"`
	MinY      *int   `yaml:"min_y,omitempty"`
	MaxY      *int   `yaml:"max_y,omitempty"`

	MaxNetworkSize           int  `yaml:"max_network_size"`
	InvariantCheckEveryTicks int  `yaml:"invariant_check_every_ticks"`
	PreloadChunkRadius       *int `yaml:"preload_chunk_radius,omitempty"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	// A file that names worlds replaces the default list.
	cfg = Config{}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("worlds.yaml: %w", err)
	}
	if len(cfg.Worlds) == 0 {
		cfg.Worlds = defaults().Worlds
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("worlds.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		DefaultWorldID: "OVERWORLD",
		Worlds: []WorldSpec{
			{ID: "OVERWORLD", Type: "OVERWORLD"},
		},
	}
}

func (c *Config) Normalize() {
	c.DefaultWorldID = strings.TrimSpace(c.DefaultWorldID)
	for i := range c.Worlds {
		w := &c.Worlds[i]
		w.ID = strings.TrimSpace(w.ID)
		w.Type = strings.TrimSpace(w.Type)
		if w.Type == "" {
			w.Type = w.ID
		}
	}
	if c.DefaultWorldID == "" && len(c.Worlds) > 0 {
		c.DefaultWorldID = c.Worlds[0].ID
	}
}

func (c Config) Validate() error {
	if len(c.Worlds) == 0 {
		return fmt.Errorf("no worlds configured")
	}
	seen := map[string]bool{}
	for _, w := range c.Worlds {
		if w.ID == "" {
			return fmt.Errorf("world id must not be empty")
		}
		if seen[w.ID] {
			return fmt.Errorf("duplicate world id %q", w.ID)
		}
		seen[w.ID] = true
		if w.BoundaryR < 0 {
			return fmt.Errorf("world %s: boundary_r must be >= 0", w.ID)
		}
		if w.MaxNetworkSize < 0 {
			return fmt.Errorf("world %s: max_network_size must be >= 0", w.ID)
		}
		if w.InvariantCheckEveryTicks < 0 {
			return fmt.Errorf("world %s: invariant_check_every_ticks must be >= 0", w.ID)
		}
		if w.PreloadChunkRadius != nil && *w.PreloadChunkRadius < 0 {
			return fmt.Errorf("world %s: preload_chunk_radius must be >= 0", w.ID)
		}
		if w.MinY != nil && w.MaxY != nil && *w.MinY > *w.MaxY {
			return fmt.Errorf("world %s: min_y > max_y", w.ID)
		}
	}
	if !seen[c.DefaultWorldID] {
		return fmt.Errorf("default_world_id %q is not a configured world", c.DefaultWorldID)
	}
	return nil
}

// Manifest lists the configured worlds in file order.
func (c Config) Manifest(t tuning.Tuning) []protocol.WorldRef {
	out := make([]protocol.WorldRef, 0, len(c.Worlds))
	for _, w := range c.Worlds {
		out = append(out, protocol.WorldRef{
			WorldID:   w.ID,
			WorldType: w.Type,
			BoundaryR: w.WorldConfig(t).Bounds.BoundaryR,
		})
	}
	return out
}

// WorldConfig merges the per-world overrides over the global tuning.
func (w WorldSpec) WorldConfig(t tuning.Tuning) world.WorldConfig {
	b := store.Bounds{MinY: t.MinY, MaxY: t.MaxY, BoundaryR: t.WorldBoundaryR}
	if w.MinY != nil {
		b.MinY = *w.MinY
	}
	if w.MaxY != nil {
		b.MaxY = *w.MaxY
	}
	if w.BoundaryR > 0 {
		b.BoundaryR = w.BoundaryR
	}
	cfg := world.WorldConfig{
		ID:                       w.ID,
		TickRateHz:               t.TickRateHz,
		Bounds:                   b,
		MaxNetworkSize:           t.Conduit.MaxNetworkSize,
		InvariantCheckEveryTicks: t.Conduit.InvariantCheckEveryTicks,
		PreloadChunkRadius:       t.Conduit.PreloadChunkRadius,
		RequestQueue:             t.Limits.RequestQueue,
	}
	if w.MaxNetworkSize > 0 {
		cfg.MaxNetworkSize = w.MaxNetworkSize
	}
	if w.InvariantCheckEveryTicks > 0 {
		cfg.InvariantCheckEveryTicks = w.InvariantCheckEveryTicks
	}
	if w.PreloadChunkRadius != nil {
		cfg.PreloadChunkRadius = *w.PreloadChunkRadius
	}
	return cfg
}
