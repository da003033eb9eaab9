// Package cbq implements the Concurrent Blocking Queue: an unbounded,
// multi-producer multi-consumer FIFO whose Get blocks until an item is
// available or a deadline/context passes, without holding a lock across
// the blocking wait.
//
// The handoff bookkeeping — pairing items with waiters under a
// single-flight drain loop — lives in internal/cbqcore, written once
// against `any` so it is shared between every instantiation of Queue[T].
package cbq

import (
	"context"
	"time"

	"github.com/vnykmshr/fanoutq/internal/cbqcore"
)

// Queue is an unbounded, lock-minimizing FIFO of items of type T. The zero
// value is not usable; construct with New.
type Queue[T any] struct {
	engine *cbqcore.Engine
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{engine: cbqcore.New()}
}

// Put enqueues item. It never blocks.
func (q *Queue[T]) Put(item T) {
	q.engine.Put(item)
}

// putFront re-enqueues item ahead of anything already waiting, used by
// callers that need to undo a Get, such as an aborted journal read.
func (q *Queue[T]) putFront(item T) {
	q.engine.PutFront(item)
}

// PutFront is putFront exported for cross-package callers (the root queue's
// Abort path); kept as a distinct method rather than folding into Put so
// the common case stays a single, obviously-cheap call.
func (q *Queue[T]) PutFront(item T) {
	q.putFront(item)
}

// Poll returns an item immediately if one is available, without waiting.
func (q *Queue[T]) Poll() (T, bool) {
	v, ok := q.engine.Poll()
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// Size returns the approximate number of items not yet handed to a waiter.
func (q *Queue[T]) Size() int {
	return q.engine.Size()
}

// String returns a human-readable snapshot of the queue's internal state
// (§4.F's toDebug()), for logging and admin inspection, not for parsing.
func (q *Queue[T]) String() string {
	return q.engine.Debug()
}

// Get blocks until an item is available, ctx is done, or deadline passes
// (whichever comes first), returning ok=false on timeout/cancellation
// rather than an error: both are plain non-events, not error conditions.
//
// A zero deadline means wait forever (bounded only by ctx).
func (q *Queue[T]) Get(ctx context.Context, deadline time.Time) (T, bool) {
	if v, ok := q.Poll(); ok {
		return v, true
	}

	fut := q.engine.Register()

	var timer *time.Timer
	var timerC <-chan time.Time
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d <= 0 {
			fut.Cancel()
			var zero T
			<-fut.Done()
			if v, canceled := fut.Wait(); !canceled {
				return v.(T), true
			}
			return zero, false
		}
		timer = time.NewTimer(d)
		timerC = timer.C
		defer timer.Stop()
	}

	select {
	case <-fut.Done():
		v, canceled := fut.Wait()
		if canceled {
			var zero T
			return zero, false
		}
		return v.(T), true
	case <-timerC:
		fut.Cancel()
		// The drain loop may have completed fut concurrently with the
		// timer firing; Cancel is then a no-op and Wait reports the
		// item it actually won.
		v, canceled := fut.Wait()
		if canceled {
			var zero T
			return zero, false
		}
		return v.(T), true
	case <-ctx.Done():
		fut.Cancel()
		v, canceled := fut.Wait()
		if canceled {
			var zero T
			return zero, false
		}
		return v.(T), true
	}
}
