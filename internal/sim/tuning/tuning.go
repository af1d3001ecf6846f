package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz     int `yaml:"tick_rate_hz"`
	MinY           int `yaml:"min_y"`
	MaxY           int `yaml:"max_y"`
	WorldBoundaryR int `yaml:"world_boundary_r"`

	Conduit Conduit `yaml:"conduit"`
	Limits  Limits  `yaml:"limits"`
}

type Conduit struct {
	// MaxNetworkSize is the soft member count above which recalculations are flagged.
	MaxNetworkSize int `yaml:"max_network_size"`
	// InvariantCheckEveryTicks runs the index self-check; 0 disables it.
	InvariantCheckEveryTicks int `yaml:"invariant_check_every_ticks"`
	// PreloadChunkRadius loads chunks within this radius of the origin at startup.
	PreloadChunkRadius int `yaml:"preload_chunk_radius"`
}

type Limits struct {
	RequestQueue  int `yaml:"request_queue"`
	SessionOutbox int `yaml:"session_outbox"`
	MaxLineBytes  int `yaml:"max_line_bytes"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		TickRateHz:      20,
		MinY:            -64,
		MaxY:            319,
		WorldBoundaryR:  30000,
		Conduit: Conduit{
			MaxNetworkSize:           4096,
			InvariantCheckEveryTicks: 200,
			PreloadChunkRadius:       1,
		},
		Limits: Limits{
			RequestQueue:  1024,
			SessionOutbox: 256,
			MaxLineBytes:  1024,
		},
	}
}

// Load reads tuning.yaml over the defaults. An empty path returns the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if strings.TrimSpace(t.ProtocolVersion) == "" {
		return fmt.Errorf("protocol_version must not be empty")
	}
	if t.TickRateHz <= 0 || t.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz must be in [1, 1000]")
	}
	if t.MinY > t.MaxY {
		return fmt.Errorf("min_y must be <= max_y")
	}
	if t.WorldBoundaryR < 0 {
		return fmt.Errorf("world_boundary_r must be >= 0")
	}
	if t.Conduit.MaxNetworkSize < 0 {
		return fmt.Errorf("conduit.max_network_size must be >= 0")
	}
	if t.Conduit.InvariantCheckEveryTicks < 0 {
		return fmt.Errorf("conduit.invariant_check_every_ticks must be >= 0")
	}
	if t.Conduit.PreloadChunkRadius < 0 {
		return fmt.Errorf("conduit.preload_chunk_radius must be >= 0")
	}
	if t.Limits.RequestQueue <= 0 || t.Limits.SessionOutbox <= 0 || t.Limits.MaxLineBytes <= 0 {
		return fmt.Errorf("limits must be > 0")
	}
	return nil
}
