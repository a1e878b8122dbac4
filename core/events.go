package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/edwinsyarief/lazyecs"
)

// Event is one queued mutation request against a domain loop. Events are
// produced from any goroutine (systems, link transfers, external callers)
// and applied exclusively by the owning loop between its schedule run and
// the next tick. The set of events is closed: each variant carries a typed
// apply step, so the queue never sees type-erased payloads.
type Event interface {
	// Kind is a short label used for logging and metrics.
	Kind() string

	apply(ctx context.Context, l *Loop) error
}

type toggleEvent struct {
	enable bool
}

func (e toggleEvent) Kind() string {
	if e.enable {
		return "enable_domain"
	}
	return "disable_domain"
}

func (e toggleEvent) apply(_ context.Context, l *Loop) error {
	l.enabled.Store(e.enable)
	return nil
}

// EnableDomain resumes ticking of the receiving loop.
func EnableDomain() Event { return toggleEvent{enable: true} }

// DisableDomain pauses ticking of the receiving loop. A disabled loop still
// drains its event queue, so later mutations (including EnableDomain) are
// honored.
func DisableDomain() Event { return toggleEvent{enable: false} }

type removeEntityEvent struct {
	entity lazyecs.Entity
}

func (e removeEntityEvent) Kind() string { return "remove_entity" }

func (e removeEntityEvent) apply(_ context.Context, l *Loop) error {
	// Removal is deferred; the loop processes the batch after the drain.
	l.World.RemoveEntity(e.entity)
	return nil
}

// RemoveEntity deletes an entity and all of its components on the next
// drain.
func RemoveEntity(e lazyecs.Entity) Event {
	return removeEntityEvent{entity: e}
}

// storeEvent carries the typed apply closure built by the generic
// constructors below.
type storeEvent struct {
	kind string
	fn   func(l *Loop) error
}

func (e storeEvent) Kind() string { return e.kind }

func (e storeEvent) apply(_ context.Context, l *Loop) error { return e.fn(l) }

// RemoveComponent strips component T from an entity on the next drain.
func RemoveComponent[T any](entity lazyecs.Entity) Event {
	return storeEvent{
		kind: "remove_component",
		fn: func(l *Loop) error {
			if !lazyecs.RemoveComponent[T](l.World, entity) {
				var zero T
				return fmt.Errorf("remove %T: entity %d is gone", zero, entity.ID)
			}
			return nil
		},
	}
}

// MutateComponent applies fn to the entity's component T with the supplied
// payload on the next drain. An entity that no longer has the component
// fails this event only; the drain continues.
func MutateComponent[T, V any](entity lazyecs.Entity, payload V, fn func(c *T, v V)) Event {
	return storeEvent{
		kind: "mutate_component",
		fn: func(l *Loop) error {
			c, ok := lazyecs.GetComponent[T](l.World, entity)
			if !ok {
				var zero T
				return fmt.Errorf("mutate %T: entity %d lacks the component or is gone", zero, entity.ID)
			}
			fn(c, payload)
			return nil
		},
	}
}

// UpdateResource applies fn to the loop-wide resource of type T with the
// supplied payload on the next drain.
func UpdateResource[T, V any](payload V, fn func(res T, v V)) Event {
	return storeEvent{
		kind: "update_resource",
		fn: func(l *Loop) error {
			res, ok := GetResource[T](l.World)
			if !ok {
				var zero T
				return fmt.Errorf("update resource: loop %q has no %T", l.name, zero)
			}
			fn(res, payload)
			return nil
		},
	}
}

// eventQueue is an unbounded FIFO; Enqueue never blocks the caller and
// ordering between events from the same sender is preserved.
type eventQueue struct {
	mu    sync.Mutex
	items []Event
}

func (q *eventQueue) push(ev Event) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()
}

// drainAll swaps the queue out under the lock; events enqueued during
// application land in the next drain.
func (q *eventQueue) drainAll() []Event {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return items
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
