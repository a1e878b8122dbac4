package core

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/signalsfoundry/worldsim/internal/logging"
	"github.com/signalsfoundry/worldsim/timectrl"
)

// Orchestrator owns every domain loop and link and runs the top-level
// coordination cycle: evaluate each link's handshake, then tick each loop on
// its dedicated pool. The orchestrator goroutine only dispatches; simulation
// logic always executes on the loops' own pools.
type Orchestrator struct {
	log        logging.Logger
	metrics    MetricsRecorder
	clock      *timectrl.TimeController
	stallAfter int

	loops  []*Loop
	byName map[string]int
	links  []*Link

	started atomic.Bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger attaches a structured logger; the default drops all logs.
func WithLogger(log logging.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

// WithMetricsRecorder attaches a metrics sink for tick, event, and transfer
// measurements.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithClock paces coordination cycles with a time controller: one cycle per
// simulation tick in real-time mode, free-running in accelerated mode.
// Without a clock the orchestrator free-runs.
func WithClock(tc *timectrl.TimeController) Option {
	return func(o *Orchestrator) { o.clock = tc }
}

// WithStallWarning logs a diagnostic when a link handshake has waited the
// given number of cycles without firing. Zero disables the warning.
func WithStallWarning(cycles int) Option {
	return func(o *Orchestrator) { o.stallAfter = cycles }
}

// New constructs an empty orchestrator. Loops, links, and schedules are
// registered before Run; all registration is rejected afterwards.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		log:        logging.Noop(),
		metrics:    noopMetrics{},
		stallAfter: 1000,
		byName:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// AddLoop registers a domain loop with a dedicated pool of the given width.
// Pool sizing is a deployment decision: a real-time foreground loop is
// typically pinned to a single worker while a background loop takes the
// remaining hardware concurrency.
func (o *Orchestrator) AddLoop(name string, workers int) (*Loop, error) {
	if o.started.Load() {
		return nil, ErrStarted
	}
	if name == "" {
		return nil, fmt.Errorf("loop name must not be empty")
	}
	if _, exists := o.byName[name]; exists {
		return nil, fmt.Errorf("loop %q already registered", name)
	}
	pool, err := NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("loop %q: %w", name, err)
	}
	l := newLoop(name, pool, o.log, o.metrics)
	o.byName[name] = len(o.loops)
	o.loops = append(o.loops, l)
	return l, nil
}

// Loop returns a registered loop by domain name.
func (o *Orchestrator) Loop(name string) (*Loop, bool) {
	i, ok := o.byName[name]
	if !ok {
		return nil, false
	}
	return o.loops[i], true
}

// AddLink registers a directed handshake between two loops. Names resolve to
// stable indices here; unresolved names are configuration errors that abort
// setup.
func (o *Orchestrator) AddLink(from, to string, fn TransferFunc) error {
	if o.started.Load() {
		return ErrStarted
	}
	if fn == nil {
		return fmt.Errorf("link %s->%s: transfer callback must not be nil", from, to)
	}
	fromIdx, ok := o.byName[from]
	if !ok {
		return fmt.Errorf("link source %q: %w", from, ErrUnknownLoop)
	}
	toIdx, ok := o.byName[to]
	if !ok {
		return fmt.Errorf("link destination %q: %w", to, ErrUnknownLoop)
	}
	if fromIdx == toIdx {
		return fmt.Errorf("link %s->%s: a loop cannot link to itself", from, to)
	}
	o.links = append(o.links, &Link{
		from:     fromIdx,
		to:       toIdx,
		fromName: from,
		toName:   to,
		transfer: fn,
	})
	return nil
}

// Submit enqueues an event to the named domain from any goroutine.
func (o *Orchestrator) Submit(domain string, ev Event) error {
	l, ok := o.Loop(domain)
	if !ok {
		return fmt.Errorf("submit to %q: %w", domain, ErrUnknownLoop)
	}
	l.Enqueue(ev)
	return nil
}

// Enable queues re-enabling of the named domain.
func (o *Orchestrator) Enable(domain string) error {
	return o.Submit(domain, EnableDomain())
}

// Disable queues pausing of the named domain.
func (o *Orchestrator) Disable(domain string) error {
	return o.Submit(domain, DisableDomain())
}

// Step performs exactly one coordination cycle: every link handshake, then
// every loop tick, then one sim-clock advance. It is what Run repeats and is
// exposed for deterministic tests and external drivers.
func (o *Orchestrator) Step(ctx context.Context) error {
	if o.started.CompareAndSwap(false, true) {
		o.freezeSchedules()
	}
	for _, k := range o.links {
		if err := k.evaluate(ctx, o.loops, o.log, o.metrics, o.stallAfter); err != nil {
			return err
		}
	}
	for _, l := range o.loops {
		l.Tick(ctx)
	}
	if o.clock != nil {
		o.clock.Advance()
	}
	return nil
}

// Run repeats coordination cycles until the context is cancelled or a link
// transfer fails. On the way out it stops every loop's pool, bounded by a
// short grace period.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.shutdownPools()

	var pace <-chan time.Time
	if o.clock != nil && o.clock.Mode == timectrl.RealTime {
		ticker := time.NewTicker(o.clock.Tick)
		defer ticker.Stop()
		pace = ticker.C
	}

	o.log.Info(ctx, "orchestrator running",
		logging.Int("loops", len(o.loops)),
		logging.Int("links", len(o.links)),
	)
	for {
		select {
		case <-ctx.Done():
			o.log.Info(ctx, "orchestrator stopping")
			return nil
		default:
		}

		if err := o.Step(ctx); err != nil {
			o.log.Error(ctx, "coordination cycle failed", logging.String("error", err.Error()))
			return err
		}

		if pace != nil {
			select {
			case <-ctx.Done():
				o.log.Info(ctx, "orchestrator stopping")
				return nil
			case <-pace:
			}
		} else {
			// Accelerated/free-running: yield so loop workers get on CPU.
			runtime.Gosched()
		}
	}
}

func (o *Orchestrator) freezeSchedules() {
	for _, l := range o.loops {
		l.freeze()
	}
}

func (o *Orchestrator) shutdownPools() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, l := range o.loops {
		if err := l.pool.Shutdown(ctx); err != nil {
			o.log.Warn(ctx, "pool shutdown timed out", logging.String("loop", l.name))
		}
	}
}
