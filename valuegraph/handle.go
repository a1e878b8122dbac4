package valuegraph

import (
	"math"
	"sync/atomic"
)

// Handle is the shared read/delta-write endpoint for one graph node. It is
// safe for concurrent use from any goroutine, but the contract is narrow:
// external code may only read the last published value and accumulate
// additive deltas. Only the owning graph's Update pass consumes deltas and
// publishes new values, so no per-node lock is needed.
//
// A handle outlives the graph slot it was created for: components keep
// pointers to handles, and a handle whose node has been removed is marked
// detached and never updated again.
type Handle struct {
	value    atomic.Uint64 // float64 bits of the last published value
	delta    atomic.Uint64 // float64 bits of the pending additive delta
	detached atomic.Bool
}

// Value returns the node's last published computed value.
func (h *Handle) Value() float64 {
	return math.Float64frombits(h.value.Load())
}

// AddDelta accumulates an additive change that the owning graph folds into
// the node's base value on its next Update. It never blocks.
func (h *Handle) AddDelta(d float64) {
	for {
		old := h.delta.Load()
		next := math.Float64bits(math.Float64frombits(old) + d)
		if h.delta.CompareAndSwap(old, next) {
			return
		}
	}
}

// PendingDelta reports the delta accumulated since the last Update without
// consuming it.
func (h *Handle) PendingDelta() float64 {
	return math.Float64frombits(h.delta.Load())
}

// Detached reports whether the node backing this handle has been removed
// from its graph.
func (h *Handle) Detached() bool {
	return h.detached.Load()
}

func (h *Handle) publish(v float64) {
	h.value.Store(math.Float64bits(v))
}

func (h *Handle) takeDelta() float64 {
	return math.Float64frombits(h.delta.Swap(0))
}
