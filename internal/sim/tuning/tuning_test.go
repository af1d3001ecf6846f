package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultsAreValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	got, err := Load("")
	if err != nil || got.TickRateHz != 20 {
		t.Fatalf("Load(\"\")=%+v err=%v", got, err)
	}
}

func TestLoadRepoTuning(t *testing.T) {
	got, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Conduit.MaxNetworkSize <= 0 {
		t.Fatalf("max_network_size=%d", got.Conduit.MaxNetworkSize)
	}
}

func TestLoadOverridesAndValidates(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(p, []byte("tick_rate_hz: 5\nconduit:\n  max_network_size: 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.TickRateHz != 5 || got.Conduit.MaxNetworkSize != 10 || got.MaxY != 319 {
		t.Fatalf("tuning=%+v", got)
	}

	if err := os.WriteFile(p, []byte("min_y: 10\nmax_y: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil || !strings.HasPrefix(err.Error(), "tuning.yaml:") {
		t.Fatalf("err=%v, want tuning.yaml prefix", err)
	}
}
