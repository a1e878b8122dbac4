package core

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsSubmittedTask(t *testing.T) {
	pool, err := NewPool(2)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Shutdown(context.Background())

	done := make(chan struct{})
	if !pool.Submit(func() { close(done) }) {
		t.Fatal("Submit returned false on a fresh pool")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("submitted task did not run")
	}
}

func TestPoolRejectsInvalidWidth(t *testing.T) {
	if _, err := NewPool(0); err == nil {
		t.Fatal("NewPool(0) succeeded, want error")
	}
}

func TestPoolForEachCoversAllIndices(t *testing.T) {
	pool, err := NewPool(4)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Shutdown(context.Background())

	const n = 1000
	var hits [n]atomic.Int32
	pool.ForEach(n, func(i int) { hits[i].Add(1) })

	for i := range hits {
		if got := hits[i].Load(); got != 1 {
			t.Fatalf("index %d visited %d times, want 1", i, got)
		}
	}
}

func TestPoolShutdownStopsSubmissions(t *testing.T) {
	pool, err := NewPool(1)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	if err := pool.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if pool.Submit(func() {}) {
		t.Fatal("Submit succeeded after shutdown")
	}
}
