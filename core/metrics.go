package core

import "time"

// MetricsRecorder receives simulation core measurements. The concrete
// Prometheus-backed implementation lives in internal/observability; the core
// only depends on this narrow surface.
type MetricsRecorder interface {
	TickCompleted(loop string, d time.Duration)
	EventApplied(loop string)
	EventFailed(loop string)
	LinkTransferred(from, to string, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) TickCompleted(string, time.Duration)         {}
func (noopMetrics) EventApplied(string)                         {}
func (noopMetrics) EventFailed(string)                          {}
func (noopMetrics) LinkTransferred(string, string, time.Duration) {}
