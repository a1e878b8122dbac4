package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/worldsim/timectrl"
)

func TestAddLoopRejectsDuplicateAndEmptyNames(t *testing.T) {
	o := New()
	if _, err := o.AddLoop("world", 1); err != nil {
		t.Fatalf("AddLoop(world): %v", err)
	}
	if _, err := o.AddLoop("world", 1); err == nil {
		t.Fatal("duplicate loop name accepted")
	}
	if _, err := o.AddLoop("", 1); err == nil {
		t.Fatal("empty loop name accepted")
	}
	if _, err := o.AddLoop("agents", 0); err == nil {
		t.Fatal("zero-worker pool accepted")
	}
}

func TestAddLinkResolvesNamesAtRegistration(t *testing.T) {
	o := New()
	if _, err := o.AddLoop("world", 1); err != nil {
		t.Fatalf("AddLoop: %v", err)
	}

	fn := func(context.Context, *Loop, *Loop) error { return nil }

	if err := o.AddLink("world", "agents", fn); !errors.Is(err, ErrUnknownLoop) {
		t.Fatalf("unknown destination error = %v, want ErrUnknownLoop", err)
	}
	if err := o.AddLink("ghosts", "world", fn); !errors.Is(err, ErrUnknownLoop) {
		t.Fatalf("unknown source error = %v, want ErrUnknownLoop", err)
	}
	if err := o.AddLink("world", "world", fn); err == nil {
		t.Fatal("self-link accepted")
	}
	if err := o.AddLink("world", "world", nil); err == nil {
		t.Fatal("nil transfer callback accepted")
	}
}

func TestSubmitToUnknownDomain(t *testing.T) {
	o := New()
	if err := o.Submit("nowhere", EnableDomain()); !errors.Is(err, ErrUnknownLoop) {
		t.Fatalf("Submit error = %v, want ErrUnknownLoop", err)
	}
	if err := o.Enable("nowhere"); !errors.Is(err, ErrUnknownLoop) {
		t.Fatalf("Enable error = %v, want ErrUnknownLoop", err)
	}
}

func TestRegistrationFrozenAfterFirstStep(t *testing.T) {
	o := New()
	l, err := o.AddLoop("world", 1)
	if err != nil {
		t.Fatalf("AddLoop: %v", err)
	}
	if _, err := o.AddLoop("agents", 1); err != nil {
		t.Fatalf("AddLoop: %v", err)
	}

	stepAndSettle(t, o)

	if _, err := o.AddLoop("late", 1); !errors.Is(err, ErrStarted) {
		t.Fatalf("AddLoop after Step = %v, want ErrStarted", err)
	}
	if err := o.AddLink("world", "agents", func(context.Context, *Loop, *Loop) error { return nil }); !errors.Is(err, ErrStarted) {
		t.Fatalf("AddLink after Step = %v, want ErrStarted", err)
	}
	if err := l.AddSystem("late", func(context.Context, *Loop) error { return nil }); err == nil {
		t.Fatal("AddSystem after Step accepted")
	}

	// Event submission stays open after the freeze.
	if err := o.Disable("world"); err != nil {
		t.Fatalf("Disable after Step: %v", err)
	}
}

func TestLoopLookup(t *testing.T) {
	o := New()
	want, err := o.AddLoop("world", 1)
	if err != nil {
		t.Fatalf("AddLoop: %v", err)
	}
	got, ok := o.Loop("world")
	if !ok || got != want {
		t.Fatalf("Loop(world) = %v, %v; want registered loop", got, ok)
	}
	if _, ok := o.Loop("agents"); ok {
		t.Fatal("Loop returned a value for an unregistered name")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	clock := timectrl.NewTimeController(time.Unix(0, 0).UTC(), time.Second, timectrl.Accelerated)
	o := New(WithClock(clock))
	l, err := o.AddLoop("world", 1)
	if err != nil {
		t.Fatalf("AddLoop: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for l.Rounds() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("loop made no progress under Run")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run = %v, want nil on cancellation", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if clock.Elapsed() <= 0 {
		t.Fatalf("clock elapsed = %v, want advance per cycle", clock.Elapsed())
	}
}

func TestRunPropagatesTransferError(t *testing.T) {
	o := New()
	if _, err := o.AddLoop("world", 1); err != nil {
		t.Fatalf("AddLoop: %v", err)
	}
	if _, err := o.AddLoop("agents", 1); err != nil {
		t.Fatalf("AddLoop: %v", err)
	}
	if err := o.AddLink("world", "agents", func(context.Context, *Loop, *Loop) error {
		return errors.New("component layout mismatch")
	}); err != nil {
		t.Fatalf("AddLink: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background()) }()

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "transfer") {
			t.Fatalf("Run = %v, want transfer error", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not abort on transfer error")
	}
}
