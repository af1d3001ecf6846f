package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"conduitcraft.ai/internal/sim/world"
)

var _ world.Metrics = (*Collector)(nil)

func valueOf(t *testing.T, c *Collector, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return 0
}

func TestCollector_RecordsWorldMetrics(t *testing.T) {
	c := NewCollector("test")
	c.ObserveRecalc("A", "PLACE", 3, 40*time.Microsecond)
	c.ObserveRecalc("A", "PLACE", 0, 10*time.Microsecond)
	c.ObserveRecalc("A", "BREAK", 2, time.Millisecond)
	c.ObserveRetire("A", "MERGE")
	c.ObserveCommand("A", "place", true)
	c.ObserveCommand("A", "place", false)
	c.ObserveViolations("A", 0)
	c.ObserveViolations("A", 2)
	c.SetNetworkStats("A", 4, 17, 9)

	if got := valueOf(t, c, "test_network_recalcs_total", map[string]string{"world": "A", "reason": "PLACE"}); got != 2 {
		t.Fatalf("PLACE recalcs: got %v", got)
	}
	if got := valueOf(t, c, "test_network_power_changes_total", map[string]string{"world": "A"}); got != 5 {
		t.Fatalf("power changes: got %v", got)
	}
	if got := valueOf(t, c, "test_network_recalc_duration_seconds", map[string]string{"world": "A"}); got != 3 {
		t.Fatalf("histogram samples: got %v", got)
	}
	if got := valueOf(t, c, "test_world_commands_total", map[string]string{"result": "error"}); got != 1 {
		t.Fatalf("failed commands: got %v", got)
	}
	if got := valueOf(t, c, "test_world_invariant_violations_total", nil); got != 2 {
		t.Fatalf("violations: got %v", got)
	}
	if got := valueOf(t, c, "test_world_indexed_blocks", nil); got != 17 {
		t.Fatalf("blocks gauge: got %v", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("")
	c.SetNetworkStats("OVERWORLD", 1, 2, 3)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `conduit_world_loaded_chunks{world="OVERWORLD"} 3`) {
		t.Fatalf("metrics output missing gauge:\n%s", body)
	}
}
