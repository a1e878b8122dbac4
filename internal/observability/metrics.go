package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimCollector bundles Prometheus metrics for the simulation core and
// implements core.MetricsRecorder so the orchestrator can feed it directly.
type SimCollector struct {
	gatherer prometheus.Gatherer

	TicksTotal    *prometheus.CounterVec
	TickDuration  *prometheus.HistogramVec
	EventsApplied *prometheus.CounterVec
	EventsFailed  *prometheus.CounterVec
	LinkTransfers *prometheus.CounterVec
	LinkDuration  *prometheus.HistogramVec
	GraphNodes    *prometheus.GaugeVec
	StoreEntities *prometheus.GaugeVec
}

// NewSimCollector registers core metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_loop_ticks_total",
		Help: "Total number of completed full ticks, labeled by domain loop.",
	}, []string{"loop"})
	ticks, err := registerCounterVec(reg, ticks, "sim_loop_ticks_total")
	if err != nil {
		return nil, err
	}

	tickDurations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sim_loop_tick_duration_seconds",
		Help:    "Wall time of one full tick (schedule plus event drain).",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
	}, []string{"loop"})
	tickDurations, err = registerHistogramVec(reg, tickDurations, "sim_loop_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	applied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_loop_events_applied_total",
		Help: "Queued events applied during drains, labeled by domain loop.",
	}, []string{"loop"})
	applied, err = registerCounterVec(reg, applied, "sim_loop_events_applied_total")
	if err != nil {
		return nil, err
	}

	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_loop_events_failed_total",
		Help: "Queued events dropped because their apply step failed.",
	}, []string{"loop"})
	failed, err = registerCounterVec(reg, failed, "sim_loop_events_failed_total")
	if err != nil {
		return nil, err
	}

	transfers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_link_transfers_total",
		Help: "Completed link handshakes, labeled by source and destination loop.",
	}, []string{"from", "to"})
	transfers, err = registerCounterVec(reg, transfers, "sim_link_transfers_total")
	if err != nil {
		return nil, err
	}

	linkDurations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sim_link_transfer_duration_seconds",
		Help:    "Wall time of one link transfer callback.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"from", "to"})
	linkDurations, err = registerHistogramVec(reg, linkDurations, "sim_link_transfer_duration_seconds")
	if err != nil {
		return nil, err
	}

	graphNodes := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_graph_nodes",
		Help: "Current number of value-graph nodes, labeled by domain loop.",
	}, []string{"loop"})
	graphNodes, err = registerGaugeVec(reg, graphNodes, "sim_graph_nodes")
	if err != nil {
		return nil, err
	}

	entities := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_store_entities",
		Help: "Current number of live entities in a loop's store.",
	}, []string{"loop"})
	entities, err = registerGaugeVec(reg, entities, "sim_store_entities")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:      gatherer,
		TicksTotal:    ticks,
		TickDuration:  tickDurations,
		EventsApplied: applied,
		EventsFailed:  failed,
		LinkTransfers: transfers,
		LinkDuration:  linkDurations,
		GraphNodes:    graphNodes,
		StoreEntities: entities,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler returns an HTTP handler serving the collector's metrics.
func (c *SimCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// TickCompleted implements core.MetricsRecorder.
func (c *SimCollector) TickCompleted(loop string, d time.Duration) {
	if c == nil {
		return
	}
	c.TicksTotal.WithLabelValues(loop).Inc()
	c.TickDuration.WithLabelValues(loop).Observe(d.Seconds())
}

// EventApplied implements core.MetricsRecorder.
func (c *SimCollector) EventApplied(loop string) {
	if c == nil {
		return
	}
	c.EventsApplied.WithLabelValues(loop).Inc()
}

// EventFailed implements core.MetricsRecorder.
func (c *SimCollector) EventFailed(loop string) {
	if c == nil {
		return
	}
	c.EventsFailed.WithLabelValues(loop).Inc()
}

// LinkTransferred implements core.MetricsRecorder.
func (c *SimCollector) LinkTransferred(from, to string, d time.Duration) {
	if c == nil {
		return
	}
	c.LinkTransfers.WithLabelValues(from, to).Inc()
	c.LinkDuration.WithLabelValues(from, to).Observe(d.Seconds())
}

// SetGraphNodes updates the value-graph size gauge for a loop.
func (c *SimCollector) SetGraphNodes(loop string, n int) {
	if c == nil {
		return
	}
	c.GraphNodes.WithLabelValues(loop).Set(float64(n))
}

// SetStoreEntities updates the live-entity gauge for a loop.
func (c *SimCollector) SetStoreEntities(loop string, n int) {
	if c == nil {
		return
	}
	c.StoreEntities.WithLabelValues(loop).Set(float64(n))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
