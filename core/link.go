package core

import (
	"context"
	"fmt"
	"time"

	"github.com/signalsfoundry/worldsim/internal/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TransferFunc moves data between two quiesced loops: it reads from the
// source's store and writes into the destination's, and is the only place
// cross-loop data motion is allowed. The callback must be stateless across
// invocations so independent links compose.
type TransferFunc func(ctx context.Context, src, dst *Loop) error

// Link is a directed handshake between two loops. Once the source finishes
// a tick the link enters the waiting state and holds the source back from
// ticking again; when the destination has also quiesced, the transfer fires
// exactly once for that round on the coordinator thread, so it can never
// race a concurrent write to either store.
type Link struct {
	from, to  int
	fromName  string
	toName    string
	transfer  TransferFunc
	waiting   bool
	lastRound uint64
	stalled   int // coordinator cycles spent waiting on the destination
}

// evaluate advances the handshake by one coordination cycle. It runs only on
// the orchestrator's goroutine. A transfer error is returned as-is and is
// fatal to the orchestrator: it indicates a data-model mismatch between the
// two domains, not a transient condition.
func (k *Link) evaluate(ctx context.Context, loops []*Loop, log logging.Logger, metrics MetricsRecorder, stallAfter int) error {
	src, dst := loops[k.from], loops[k.to]

	if !k.waiting {
		if src.Running() || src.Rounds() == k.lastRound {
			return nil
		}
		// Source completed a fresh round: pause it until the transfer fires.
		k.waiting = true
		k.stalled = 0
		src.waits.Add(1)
	}

	// Drain-only passes toggle the running flags too, so this also covers a
	// destination (or source) still applying queued events.
	if src.Running() || dst.Running() {
		k.stalled++
		if stallAfter > 0 && k.stalled == stallAfter {
			log.Warn(ctx, "link handshake stalled",
				logging.String("from", k.fromName),
				logging.String("to", k.toName),
				logging.Int("cycles_waited", k.stalled),
			)
		}
		return nil
	}

	ctx, span := tracer.Start(ctx, "link.transfer", trace.WithAttributes(
		attribute.String("from", k.fromName),
		attribute.String("to", k.toName),
	))
	defer span.End()

	start := time.Now()
	err := k.transfer(ctx, src, dst)

	k.lastRound = src.Rounds()
	k.waiting = false
	src.waits.Add(-1)

	if err != nil {
		return fmt.Errorf("link %s->%s transfer: %w", k.fromName, k.toName, err)
	}
	metrics.LinkTransferred(k.fromName, k.toName, time.Since(start))
	return nil
}
