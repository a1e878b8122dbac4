package core

import (
	"context"
	"fmt"
	"sync"
)

// Pool is a fixed-size worker pool dedicated to one domain loop. The
// orchestrator installs at most one tick task at a time; the pool's width is
// the parallelism budget a loop's own systems may spread entity work across
// via ForEach.
type Pool struct {
	workers int
	tasks   chan func()
	wg      sync.WaitGroup
	once    sync.Once
}

// NewPool starts a pool with the given number of worker goroutines.
func NewPool(workers int) (*Pool, error) {
	if workers < 1 {
		return nil, fmt.Errorf("pool needs at least 1 worker, got %d", workers)
	}
	p := &Pool{
		workers: workers,
		tasks:   make(chan func(), workers),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}
	return p, nil
}

// Workers returns the pool's width.
func (p *Pool) Workers() int {
	return p.workers
}

// Submit installs a task without blocking. It reports false when the pool's
// queue is full or the pool has shut down.
func (p *Pool) Submit(task func()) (submitted bool) {
	defer func() {
		if recover() != nil {
			submitted = false // send on closed channel
		}
	}()
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// ForEach runs fn for every index in [0, n), striped across up to Workers()
// goroutines, and returns once all calls finished. It is intended for use
// inside a system that wants to parallelize over entities; the goroutines
// are spawned directly so a single-worker pool running the tick itself does
// not deadlock.
func (p *Pool) ForEach(n int, fn func(i int)) {
	w := p.workers
	if w > n {
		w = n
	}
	if w <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	var wg sync.WaitGroup
	for c := 0; c < w; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			for i := c; i < n; i += w {
				fn(i)
			}
		}(c)
	}
	wg.Wait()
}

// Shutdown stops accepting tasks and waits for in-flight work, bounded by
// the context.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.once.Do(func() { close(p.tasks) })
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
