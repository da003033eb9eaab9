package journal

import (
	"sync"

	"github.com/vnykmshr/fanoutq/internal/idset"
)

// Reader is a handle to one queue's persisted acknowledgement state: a
// head and a doneSet, durable in a checkpoint file. It holds no in-memory item data — that
// fan-out queue lives one layer up, in the root package's Reader, which
// this type is keyed into by name.
type Reader struct {
	j    *Journal
	name string

	mu   sync.Mutex
	head uint64
	done *idset.Set
}

// Name returns the reader's name (empty string for the default reader).
func (r *Reader) Name() string {
	return r.name
}

// Head returns the current head: the head id itself and every id below it
// are fully consumed.
func (r *Reader) Head() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.head
}

// IsDone reports whether id is at or below head, or present in doneSet —
// i.e. already acknowledged and not eligible for redelivery.
func (r *Reader) IsDone(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isDoneLocked(id)
}

func (r *Reader) isDoneLocked(id uint64) bool {
	if id <= r.head {
		return true
	}
	return r.done.Has(id)
}

// Commit records id as acknowledged: added to doneSet, then head is
// advanced past any contiguous run of acknowledged ids starting at
// head+1.
func (r *Reader) Commit(id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id <= r.head || r.done.Has(id) {
		return ErrUnknownID
	}

	r.done.Insert(id)
	for {
		next := r.head + 1
		if !r.done.Has(next) {
			break
		}
		r.done.Remove(next)
		r.head = next
	}
	return nil
}

// Checkpoint durably records this reader's (head, doneSet) and then asks
// the owning Journal to attempt reclamation — every checkpoint is a cheap
// opportunity to drop writer files the whole fleet of readers has passed
//.
func (r *Reader) Checkpoint() error {
	r.mu.Lock()
	head := r.head
	doneIDs := r.done.Ascending()
	r.mu.Unlock()

	if err := r.j.writeCheckpoint(r.name, head, doneIDs); err != nil {
		return err
	}
	r.j.reclaim()
	return nil
}

// Stats summarizes this reader's durable state for observability.
type Stats struct {
	Name        string
	Head        uint64
	DoneSetSize int
}

// Stats returns a snapshot of this reader's current state.
func (r *Reader) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{Name: r.name, Head: r.head, DoneSetSize: r.done.Len()}
}
