package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestSimCollectorRecordsTicks(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	collector.TickCompleted("world", 10*time.Millisecond)
	collector.TickCompleted("world", 20*time.Millisecond)

	if got := testutil.ToFloat64(collector.TicksTotal.WithLabelValues("world")); got != 2 {
		t.Fatalf("sim_loop_ticks_total = %v, want 2", got)
	}
	if count := histogramSampleCount(t, reg, "sim_loop_tick_duration_seconds", map[string]string{"loop": "world"}); count != 2 {
		t.Fatalf("sim_loop_tick_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestSimCollectorRecordsEventsAndTransfers(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	collector.EventApplied("world")
	collector.EventApplied("world")
	collector.EventFailed("world")
	collector.LinkTransferred("world", "agents", time.Millisecond)

	if got := testutil.ToFloat64(collector.EventsApplied.WithLabelValues("world")); got != 2 {
		t.Fatalf("sim_loop_events_applied_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.EventsFailed.WithLabelValues("world")); got != 1 {
		t.Fatalf("sim_loop_events_failed_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.LinkTransfers.WithLabelValues("world", "agents")); got != 1 {
		t.Fatalf("sim_link_transfers_total = %v, want 1", got)
	}
}

func TestSimCollectorHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	collector.TickCompleted("world", time.Millisecond)
	collector.SetGraphNodes("world", 42)

	srv := httptest.NewServer(collector.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	for _, want := range []string{"sim_loop_ticks_total", "sim_graph_nodes"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNewSimCollectorTwiceOnSameRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewSimCollector(reg); err != nil {
		t.Fatalf("first NewSimCollector: %v", err)
	}
	if _, err := NewSimCollector(reg); err != nil {
		t.Fatalf("second NewSimCollector: %v", err)
	}
}

func histogramSampleCount(t *testing.T, reg prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if matchLabels(metric, labels) {
				return metric.GetHistogram().GetSampleCount()
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func matchLabels(metric *dto.Metric, labels map[string]string) bool {
	found := 0
	for _, pair := range metric.GetLabel() {
		if want, ok := labels[pair.GetName()]; ok && pair.GetValue() == want {
			found++
		}
	}
	return found == len(labels)
}
