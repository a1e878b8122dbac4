// Package core implements the multi-domain scheduling heart of the
// simulator: independently ticking domain loops over private entity stores,
// handshake links that move data between two quiesced loops, and the
// orchestrator that coordinates both on dedicated worker pools.
package core

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/edwinsyarief/lazyecs"
	"github.com/signalsfoundry/worldsim/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/signalsfoundry/worldsim/core")

// SystemFunc is one step of a loop's per-tick schedule. Systems run in
// registration order on the loop's pool and have exclusive access to the
// loop's store for the duration of the tick. A system error is logged and
// the schedule continues.
type SystemFunc func(ctx context.Context, l *Loop) error

type system struct {
	name string
	fn   SystemFunc
}

// Loop is one independently ticking simulation domain. It owns its entity
// store, resources, and system schedule outright: only its own systems and
// its own event drain ever mutate the store, and both run on the loop's
// dedicated pool. All cross-thread requests go through Enqueue.
type Loop struct {
	name    string
	World   *lazyecs.World
	pool    *Pool
	log     logging.Logger
	metrics MetricsRecorder

	systems []system
	frozen  atomic.Bool // schedule locked once the orchestrator starts

	enabled atomic.Bool
	running atomic.Bool
	waits   atomic.Int32 // outstanding link handshakes pausing this loop
	rounds  atomic.Uint64

	queue eventQueue
}

func newLoop(name string, pool *Pool, log logging.Logger, metrics MetricsRecorder) *Loop {
	l := &Loop{
		name:    name,
		World:   lazyecs.NewWorld(),
		pool:    pool,
		log:     log,
		metrics: metrics,
	}
	l.enabled.Store(true)
	return l
}

// Name returns the loop's registered domain name.
func (l *Loop) Name() string { return l.name }

// Pool returns the loop's worker pool, for systems that parallelize over
// entities.
func (l *Loop) Pool() *Pool { return l.pool }

// Enabled reports whether the loop runs its schedule when ticked.
func (l *Loop) Enabled() bool { return l.enabled.Load() }

// Running reports whether a tick (or drain pass) is in flight on the loop's
// pool.
func (l *Loop) Running() bool { return l.running.Load() }

// Rounds returns the number of completed full ticks.
func (l *Loop) Rounds() uint64 { return l.rounds.Load() }

// AddSystem appends a named system to the schedule. The schedule is
// immutable once the orchestrator starts.
func (l *Loop) AddSystem(name string, fn SystemFunc) error {
	if l.frozen.Load() {
		return errScheduleFrozen(l.name, name)
	}
	l.systems = append(l.systems, system{name: name, fn: fn})
	return nil
}

// Enqueue submits one event for application after the loop's next schedule
// run. It is safe from any goroutine, never blocks, and preserves FIFO order
// per sender.
func (l *Loop) Enqueue(ev Event) {
	l.queue.push(ev)
}

// PendingEvents returns the number of queued, not yet applied events.
func (l *Loop) PendingEvents() int {
	return l.queue.len()
}

// Tick installs one unit of work on the loop's pool and returns without
// waiting for it: a full tick (schedule, then event drain) when the loop is
// enabled and not held back by a link handshake, otherwise a drain-only pass
// so a paused loop does not fall behind on mutation requests. A loop whose
// previous work is still in flight is skipped.
func (l *Loop) Tick(ctx context.Context) {
	if !l.running.CompareAndSwap(false, true) {
		return
	}
	full := l.enabled.Load() && l.waits.Load() == 0
	submitted := l.pool.Submit(func() {
		defer l.running.Store(false)
		if !full {
			l.drainEvents(ctx)
			return
		}
		tickCtx, span := tracer.Start(ctx, "loop.tick",
			trace.WithAttributes(attribute.String("loop", l.name)))
		start := time.Now()
		l.runSchedule(tickCtx)
		l.drainEvents(tickCtx)
		l.rounds.Add(1)
		l.metrics.TickCompleted(l.name, time.Since(start))
		span.End()
	})
	if !submitted {
		l.running.Store(false)
	}
}

func (l *Loop) runSchedule(ctx context.Context) {
	for _, sys := range l.systems {
		if err := sys.fn(ctx, l); err != nil {
			l.log.Error(ctx, "system failed",
				logging.String("loop", l.name),
				logging.String("system", sys.name),
				logging.String("error", err.Error()),
			)
		}
	}
	l.World.ProcessRemovals()
}

// drainEvents applies every event queued before the drain started. A failing
// event is logged and dropped without aborting the rest of the batch.
func (l *Loop) drainEvents(ctx context.Context) {
	events := l.queue.drainAll()
	if len(events) == 0 {
		return
	}
	for _, ev := range events {
		if err := ev.apply(ctx, l); err != nil {
			l.metrics.EventFailed(l.name)
			l.log.Warn(ctx, "dropping failed event",
				logging.String("loop", l.name),
				logging.String("event", ev.Kind()),
				logging.String("error", err.Error()),
			)
			continue
		}
		l.metrics.EventApplied(l.name)
	}
	l.World.ProcessRemovals()
}

func (l *Loop) freeze() {
	l.frozen.Store(true)
}
