// Copyright (c) 2026 Mohanned Ahmed
// SPDX-License-Identifier: MIT

// Package dispatch implements the search dispatcher from spec.md §4.3: a
// fixed-parallelism worker pool that isolates CPU-bound Contains calls from
// the connection-handling goroutines, so a slow algorithm can't starve
// acceptors.
//
// The constructor shape (functional options over a struct) is grounded on
// the teacher's tenant.NewManager/tenant.Option pair, retargeted from
// managing OS subprocesses to managing a goroutine pool, per spec.md §9's
// own note that a native thread pool is the right target-language analog of
// the source's process pool.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrPanic is returned (and wrapped in the resulting log record's err_kind)
// when a worker's Contains call panics. The pool itself keeps running;
// spec.md §4.3 requires exactly this isolation.
var ErrPanic = errors.New("dispatch: worker panic recovered")

// Work is the unit a caller submits: a single Contains call plus enough
// context for the worker to perform it and report how long it took.
type Work struct {
	// Contains is called on the worker goroutine; it must not block on I/O.
	Contains func() bool
}

// Result is what Submit returns once Work has run.
type Result struct {
	Matched   bool
	ElapsedNS int64
	Err       error
}

// Option configures a Pool at construction time.
type Option func(*Pool)

// WithSoftQueueLimit sets the queue_depth threshold past which the pool's
// queue is considered "backed up" for log-observability purposes; work is
// never dropped or rejected past this limit (spec.md §4.3: "the server does
// not drop requests"), it is purely an observability signal.
func WithSoftQueueLimit(n int) Option {
	return func(p *Pool) { p.softLimit = int64(n) }
}

// Pool is a fixed-parallelism worker pool for Contains calls.
type Pool struct {
	parallelism int
	softLimit   int64

	tasks chan task

	queued    int64 // atomic: work items currently queued or running
	closing   chan struct{}
	closeOnce sync.Once

	wg errgroup.Group
}

type task struct {
	work  Work
	reply chan Result
}

// New starts a Pool with the given parallelism (number of permanently
// running worker goroutines). parallelism <= 0 is clamped to 1.
func New(parallelism int, opts ...Option) *Pool {
	if parallelism <= 0 {
		parallelism = 1
	}
	p := &Pool{
		parallelism: parallelism,
		softLimit:   int64(4 * parallelism),
		tasks:       make(chan task),
		closing:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	for i := 0; i < parallelism; i++ {
		p.wg.Go(p.runWorker)
	}
	return p
}

// QueueDepth reports the current number of items queued or in flight, for
// the logger's queue_depth field.
func (p *Pool) QueueDepth() int64 { return atomic.LoadInt64(&p.queued) }

// SoftQueueLimit reports the configured soft limit (see WithSoftQueueLimit).
func (p *Pool) SoftQueueLimit() int64 { return p.softLimit }

// Submit enqueues work and blocks until either a worker has produced a
// Result or ctx is done. If ctx is done before a worker picks up the work,
// the work item still eventually runs (spec.md §5: "a client disconnecting
// mid-query does not cancel the in-flight worker") — Submit simply stops
// waiting for it and returns ctx.Err().
func (p *Pool) Submit(ctx context.Context, w Work) (Result, error) {
	atomic.AddInt64(&p.queued, 1)
	t := task{work: w, reply: make(chan Result, 1)}

	select {
	case p.tasks <- t:
	case <-p.closing:
		atomic.AddInt64(&p.queued, -1)
		return Result{}, errors.New("dispatch: pool closed")
	case <-ctx.Done():
		// still deliver it to a worker in the background so the result
		// isn't wasted work, matching spec.md §5's no-cancellation rule,
		// but don't make the caller wait for it.
		go func() {
			select {
			case p.tasks <- t:
			case <-p.closing:
				atomic.AddInt64(&p.queued, -1)
			}
		}()
		return Result{}, ctx.Err()
	}

	select {
	case r := <-t.reply:
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (p *Pool) runWorker() error {
	for {
		select {
		case t := <-p.tasks:
			t.reply <- p.run(t.work)
			atomic.AddInt64(&p.queued, -1)
		case <-p.closing:
			return nil
		}
	}
}

// run executes one Work item with panic recovery and monotonic timing.
// Per spec.md §4.3, elapsed_ns is measured on the worker around the Contains
// call only, excluding queueing and I/O.
func (p *Pool) run(w Work) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Matched: false, Err: fmt.Errorf("%w: %v", ErrPanic, r)}
		}
	}()
	start := time.Now()
	matched := w.Contains()
	elapsed := time.Since(start)
	return Result{Matched: matched, ElapsedNS: elapsed.Nanoseconds()}
}

// Close stops accepting new work and waits up to ctx's deadline for
// in-flight workers to drain, matching the Serving → Draining → Stopped
// transition in spec.md §4.5. Workers that are mid-Contains-call when Close
// is called are allowed to finish; Close does not interrupt them.
func (p *Pool) Close(ctx context.Context) error {
	p.closeOnce.Do(func() { close(p.closing) })

	done := make(chan error, 1)
	go func() { done <- p.wg.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
