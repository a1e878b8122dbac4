package timectrl

import (
	"sync"
	"time"
)

// SimClock is an interface for reading simulation time, letting systems
// depend on a clock abstraction rather than the concrete controller.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
	// After returns a channel that receives the simulation time once d has
	// elapsed in simulation time.
	After(d time.Duration) <-chan time.Time
}

// Mode describes how simulation time relates to wall-clock time.
type Mode int

const (
	// RealTime paces one advance per Tick of wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as fast as the coordination cycle runs.
	Accelerated
)

// TimeController is the simulation clock. It does not run its own
// goroutine: the orchestrator calls Advance once per coordination cycle and
// the controller steps simulation time by Tick, fires due timers, and
// notifies listeners. Implements SimClock.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time
	listeners   []func(time.Time)
	timers      []simTimer
}

type simTimer struct {
	deadline time.Time
	ch       chan time.Time
}

// NewTimeController constructs a controller starting at the given time.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime jumps simulation time to t without firing listeners or timers.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTime = t
}

// After returns a channel that receives the simulation time once d has
// elapsed in simulation time. The timer fires from Advance. Implements
// SimClock.
func (tc *TimeController) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	tc.mu.Lock()
	tc.timers = append(tc.timers, simTimer{deadline: tc.currentTime.Add(d), ch: ch})
	tc.mu.Unlock()
	return ch
}

// AddListener registers a callback invoked after every advance with the new
// simulation time. Register listeners before the clock starts advancing.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	tc.listeners = append(tc.listeners, fn)
	tc.mu.Unlock()
}

// Advance steps simulation time forward by one Tick, delivers due timers,
// and notifies listeners. It returns the new simulation time.
func (tc *TimeController) Advance() time.Time {
	tc.mu.Lock()
	tc.currentTime = tc.currentTime.Add(tc.Tick)
	now := tc.currentTime

	remaining := tc.timers[:0]
	var due []chan time.Time
	for _, t := range tc.timers {
		if !t.deadline.After(now) {
			due = append(due, t.ch)
		} else {
			remaining = append(remaining, t)
		}
	}
	tc.timers = remaining
	listeners := tc.listeners
	tc.mu.Unlock()

	for _, ch := range due {
		ch <- now
	}
	for _, fn := range listeners {
		fn(now)
	}
	return now
}

// Elapsed returns how much simulation time has passed since the start.
func (tc *TimeController) Elapsed() time.Duration {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime.Sub(tc.StartTime)
}
