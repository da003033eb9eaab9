// Package cbqcore implements the lock-minimizing handoff engine behind the
// public cbq.Queue type.
//
// Two FIFOs — items and waiters — are each guarded by their own mutex (the
// "lock-free FIFOs" of §4.F are realized here as container/list.List behind
// a narrow sync.Mutex each, which is the teacher's own concurrency idiom
// throughout internal/queue and internal/segment: small critical sections
// under a plain Mutex rather than bespoke lock-free structures). What makes
// the design lock-minimizing is the single-flight handoff: a
// code.hybscloud.com/atomix.Int64 pending-handoff counter decides which one
// caller, of however many call Put/Get concurrently, actually walks the two
// FIFOs pairing items with waiters. Everyone else just increments the
// counter and returns — exactly §4.F/§9's "only the counter-transition-
// from-zero winner runs the handoff loop".
package cbqcore

import (
	"container/list"
	"fmt"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	"github.com/vnykmshr/fanoutq/internal/future"
)

// Waiter is a pending Get, holding the future its caller is blocked on.
type Waiter struct {
	fut *future.Future[any]
}

// Engine is the non-generic handoff core. cbq.Queue[T] boxes/unboxes T
// through it so the atomic/list bookkeeping is written once.
type Engine struct {
	itemsMu sync.Mutex
	items   list.List

	waitersMu sync.Mutex
	waiters   list.List // of *Waiter

	pending atomix.Int64 // number of unhandled (item, waiter) handoff opportunities
	size    atomix.Int64 // approximate queue depth, for Size()
}

// New creates an empty engine.
func New() *Engine {
	return &Engine{}
}

// Put enqueues item and runs the handoff loop if nothing else currently is.
// Never blocks the caller.
func (e *Engine) Put(item any) {
	e.itemsMu.Lock()
	e.items.PushBack(item)
	e.itemsMu.Unlock()
	e.size.AddAcqRel(1)

	e.signalAndMaybeDrain()
}

// PutFront re-enqueues item at the head of the items FIFO, giving it
// priority over freshly-put items — used by JQ's Abort.
func (e *Engine) PutFront(item any) {
	e.itemsMu.Lock()
	e.items.PushFront(item)
	e.itemsMu.Unlock()
	e.size.AddAcqRel(1)

	e.signalAndMaybeDrain()
}

// Register adds a new waiter future and runs the handoff loop if nothing
// else currently is. The returned future settles via Complete(item) when
// paired with an item, or via the caller invoking Cancel on timeout.
func (e *Engine) Register() *future.Future[any] {
	fut := future.New[any]()
	w := &Waiter{fut: fut}

	e.waitersMu.Lock()
	e.waiters.PushBack(w)
	e.waitersMu.Unlock()

	e.signalAndMaybeDrain()
	return fut
}

// Poll synchronously returns an item if one is immediately available,
// bypassing the waiter/future machinery entirely.
func (e *Engine) Poll() (any, bool) {
	e.itemsMu.Lock()
	defer e.itemsMu.Unlock()
	front := e.items.Front()
	if front == nil {
		return nil, false
	}
	e.items.Remove(front)
	e.size.AddAcqRel(-1)
	return front.Value, true
}

// Size returns the approximate number of items not yet handed to a waiter.
func (e *Engine) Size() int {
	n := e.size.LoadAcquire()
	if n < 0 {
		return 0
	}
	return int(n)
}

// Debug returns a human-readable snapshot of the engine's internal counters,
// §4.F's toDebug(). Not for parsing; shape may change.
func (e *Engine) Debug() string {
	e.itemsMu.Lock()
	items := e.items.Len()
	e.itemsMu.Unlock()

	e.waitersMu.Lock()
	waiters := e.waiters.Len()
	e.waitersMu.Unlock()

	return fmt.Sprintf("cbq{items=%d waiters=%d pending=%d size=%d}",
		items, waiters, e.pending.LoadAcquire(), e.Size())
}

// signalAndMaybeDrain increments the pending-handoff counter; if this call
// is the one that transitions it from 0, it becomes the single-flight
// drainer and keeps draining until the counter returns to 0.
func (e *Engine) signalAndMaybeDrain() {
	if e.pending.AddAcqRel(1) != 1 {
		// Someone else already owns (or is about to own) the drain loop.
		return
	}

	sw := spin.Wait{}
	for {
		e.drainOnce()

		remaining := e.pending.AddAcqRel(-1)
		if remaining == 0 {
			return
		}
		// Another Put/Register arrived while we were draining; loop again
		// rather than handing off to a new winner, to bound latency.
		sw.Once()
	}
}

// drainOnce pairs as many (item, waiter) pairs as currently available,
// skipping any waiter that is already expired/canceled.
func (e *Engine) drainOnce() {
	for {
		e.itemsMu.Lock()
		itemFront := e.items.Front()
		if itemFront == nil {
			e.itemsMu.Unlock()
			return
		}

		e.waitersMu.Lock()
		waiterFront := e.waiters.Front()
		if waiterFront == nil {
			e.waitersMu.Unlock()
			e.itemsMu.Unlock()
			return
		}
		e.waiters.Remove(waiterFront)
		e.waitersMu.Unlock()

		w := waiterFront.Value.(*Waiter)

		if !w.fut.Complete(itemFront.Value) {
			// The waiter expired or was canceled concurrently — Complete
			// lost the race and the item was never actually handed off.
			// Leave it in place for the next waiter rather than dropping it.
			e.itemsMu.Unlock()
			continue
		}

		e.items.Remove(itemFront)
		e.size.AddAcqRel(-1)
		e.itemsMu.Unlock()
	}
}
