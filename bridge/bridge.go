// Package bridge hands blocking storage calls off to a bounded worker pool
// so the request-handling path never stalls on synchronous I/O.
//
// Failures travel on two distinct channels: the error returned by the
// storage operation itself (not-found, constraint violation, driver outage)
// comes back unchanged, while a worker dying before it can produce a result
// (panic, pool shutdown) surfaces as [ErrWorkerFailure] / [ErrClosed].
// Collapsing the two would hide process-level defects behind storage noise.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrWorkerFailure is returned when the worker running an operation
	// crashed before producing a result. It indicates a process-level
	// defect, not a storage condition.
	ErrWorkerFailure = errors.New("worker failure")
	// ErrClosed is returned for work submitted after Close.
	ErrClosed = errors.New("bridge closed")
)

// Pool is a fixed-size worker pool with a bounded hand-off queue.
type Pool struct {
	tasks chan func()

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// New starts a pool of workers with a queue of queueDepth pending hand-offs.
// Non-positive arguments are clamped to 1.
func New(workers, queueDepth int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueDepth < 1 {
		queueDepth = 1
	}

	p := &Pool{
		tasks: make(chan func(), queueDepth),
		done:  make(chan struct{}),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Close stops the workers and waits for in-flight operations to finish.
// Queued but unstarted operations are abandoned; their callers unblock via
// their context deadline. Close is idempotent.
func (p *Pool) Close() {
	p.closeOnce.Do(func() { close(p.done) })
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case task := <-p.tasks:
			task()
		}
	}
}

type result[T any] struct {
	val T
	err error
}

// Run executes op on the pool and awaits its result on the calling path.
// The returned error is either op's own error, the context error if ctx
// ends first, or a worker-channel failure ([ErrWorkerFailure], [ErrClosed]).
func Run[T any](ctx context.Context, p *Pool, op func(context.Context) (T, error)) (T, error) {
	var zero T

	res := make(chan result[T], 1)
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				res <- result[T]{err: fmt.Errorf("%w: panic: %v", ErrWorkerFailure, r)}
			}
		}()
		v, err := op(ctx)
		res <- result[T]{val: v, err: err}
	}

	select {
	case p.tasks <- task:
	case <-p.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case r := <-res:
		return r.val, r.err
	case <-ctx.Done():
		// The abandoned task still completes on its worker; the buffered
		// result channel lets it finish without leaking the goroutine.
		return zero, ctx.Err()
	}
}
