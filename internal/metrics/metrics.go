// Package metrics exposes conduit world telemetry as Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements world.Metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	recalcs       *prometheus.CounterVec
	recalcLatency *prometheus.HistogramVec
	powerChanges  *prometheus.CounterVec
	retirements   *prometheus.CounterVec
	commands      *prometheus.CounterVec
	violations    *prometheus.CounterVec
	networks      *prometheus.GaugeVec
	blocks        *prometheus.GaugeVec
	loadedChunks  *prometheus.GaugeVec
}

func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "conduit"
	}
	c := &Collector{registry: prometheus.NewRegistry()}

	c.recalcs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "network",
			Name:      "recalcs_total",
			Help:      "Network power recalculations by trigger",
		},
		[]string{"world", "reason"},
	)
	c.recalcLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "network",
			Name:      "recalc_duration_seconds",
			Help:      "Time spent discovering and propagating one network",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
		},
		[]string{"world"},
	)
	c.powerChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "network",
			Name:      "power_changes_total",
			Help:      "Conduits whose stored power level changed during a recalculation",
		},
		[]string{"world"},
	)
	c.retirements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "network",
			Name:      "retirements_total",
			Help:      "Network ids retired by merge, removal or unload",
		},
		[]string{"world", "reason"},
	)
	c.commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "world",
			Name:      "commands_total",
			Help:      "Operator commands executed",
		},
		[]string{"world", "command", "result"},
	)
	c.violations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "world",
			Name:      "invariant_violations_total",
			Help:      "Index invariant violations found by the periodic self-check",
		},
		[]string{"world"},
	)
	c.networks = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Subsystem: "world", Name: "networks", Help: "Indexed networks"},
		[]string{"world"},
	)
	c.blocks = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Subsystem: "world", Name: "indexed_blocks", Help: "Conduits belonging to an indexed network"},
		[]string{"world"},
	)
	c.loadedChunks = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Subsystem: "world", Name: "loaded_chunks", Help: "Loaded chunks"},
		[]string{"world"},
	)

	c.registry.MustRegister(
		c.recalcs,
		c.recalcLatency,
		c.powerChanges,
		c.retirements,
		c.commands,
		c.violations,
		c.networks,
		c.blocks,
		c.loadedChunks,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveRecalc(worldID, reason string, changed int, elapsed time.Duration) {
	c.recalcs.WithLabelValues(worldID, reason).Inc()
	c.recalcLatency.WithLabelValues(worldID).Observe(elapsed.Seconds())
	if changed > 0 {
		c.powerChanges.WithLabelValues(worldID).Add(float64(changed))
	}
}

func (c *Collector) ObserveRetire(worldID, reason string) {
	c.retirements.WithLabelValues(worldID, reason).Inc()
}

func (c *Collector) ObserveCommand(worldID, name string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	c.commands.WithLabelValues(worldID, name, result).Inc()
}

func (c *Collector) ObserveViolations(worldID string, n int) {
	if n > 0 {
		c.violations.WithLabelValues(worldID).Add(float64(n))
	}
}

func (c *Collector) SetNetworkStats(worldID string, networks, blocks, chunks int) {
	c.networks.WithLabelValues(worldID).Set(float64(networks))
	c.blocks.WithLabelValues(worldID).Set(float64(blocks))
	c.loadedChunks.WithLabelValues(worldID).Set(float64(chunks))
}
