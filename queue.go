// Package fanoutq provides a durable, multi-reader, in-process queue: an
// append-only on-disk journal fanned out to one independently advancing
// in-memory queue per reader.
//
// A Queue is opened against a directory and a queue name. Producers call
// Put; each currently-known reader sees every put in order. Readers call
// Get to receive an "open" item, then either Commit or Abort it — an item
// neither committed nor aborted before a crash becomes available again on
// recovery.
package fanoutq

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vnykmshr/fanoutq/cbq"
	"github.com/vnykmshr/fanoutq/internal/future"
	"github.com/vnykmshr/fanoutq/internal/journal"
	"github.com/vnykmshr/fanoutq/internal/logging"
)

// DefaultReaderName identifies the implicit reader used when no named
// reader has been created.
const DefaultReaderName = ""

// Queue composes one durable Journal with one in-memory fan-out queue per
// reader. The zero value is not usable; construct with Open.
type Queue struct {
	dir    string
	name   string
	opts   *Options
	logger logging.Logger
	j      *journal.Journal

	mu      sync.RWMutex
	readers map[string]*Reader
	closed  bool

	checkpointTimer       *time.Timer
	checkpointTimerActive bool
}

// Reader is a handle to one reader's fan-out state: a durable
// (head, doneSet) pair (owned by the underlying journal.Reader) plus an
// in-memory queue of items not yet delivered and a set of items delivered
// but not yet committed or aborted ("open reads").
type Reader struct {
	q   *Queue
	jr  *journal.Reader
	cbq *cbq.Queue[QueueItem]

	mu   sync.Mutex
	open map[uint64]QueueItem
}

// Open opens or creates a queue named name in directory dir, recovering
// every writer file and reader checkpoint already there, and re-populates
// every recovered reader's in-memory queue with whatever it hasn't yet
// acknowledged. If opts is nil, DefaultOptions()
// applies.
func Open(dir, name string, opts *Options) (*Queue, error) {
	o := opts.withDefaults()

	j, items, err := journal.Open(dir, name, o.journalOptions(name))
	if err != nil {
		return nil, translateCorruption(err)
	}

	q := &Queue{
		dir:     dir,
		name:    name,
		opts:    o,
		logger:  o.Logger.With(logging.F("queue", name)),
		j:       j,
		readers: make(map[string]*Reader),
	}

	for _, jr := range j.Readers() {
		r := q.newReaderHandle(jr)
		populateAvailable(r, items)
		q.readers[jr.Name()] = r
	}

	if o.CheckpointInterval > 0 {
		q.startCheckpointTimer()
	}

	return q, nil
}

func (q *Queue) newReaderHandle(jr *journal.Reader) *Reader {
	return &Reader{
		q:    q,
		jr:   jr,
		cbq:  cbq.New[QueueItem](),
		open: make(map[uint64]QueueItem),
	}
}

// populateAvailable enqueues every item from items that jr has not yet
// acknowledged, in ascending id order.
func populateAvailable(r *Reader, items []journal.Item) {
	for _, it := range items {
		if !r.jr.IsDone(it.ID) {
			r.cbq.Put(toQueueItem(it))
		}
	}
}

func toQueueItem(it journal.Item) QueueItem {
	return QueueItem{ID: it.ID, AddTimeMs: it.AddTimeMs, ExpireTimeMs: it.ExpireTimeMs, Payload: it.Payload}
}

// Put appends payload to the journal and fans it out to every currently
// known reader's in-memory queue. ttl of 0 means no
// expiry. The returned future completes once the record is durable.
//
// Held exclusively (not RLock) across journal assignment and the fan-out
// loop below: two concurrent Puts already serialize their id assignment
// inside journal.Put's own lock, but without this lock a second Put could
// still win the race to fan out to a reader's queue before the first,
// delivering ids out of order. Spec's per-reader ordering guarantee is
// unqualified, unlike CBQ's own single-producer-only one.
func (q *Queue) Put(payload []byte, ttl time.Duration) (QueueItem, *future.Future[struct{}], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return QueueItem{}, nil, ErrClosed
	}

	addTime := q.opts.Clock.NowMs()
	var expire int64
	if ttl > 0 {
		expire = addTime + ttl.Milliseconds()
	}

	it, fut, err := q.j.Put(payload, addTime, expire)
	if err != nil {
		return QueueItem{}, nil, err
	}
	qi := toQueueItem(it)

	for _, r := range q.readers {
		r.cbq.Put(qi)
	}

	q.opts.MetricsCollector.RecordPut(len(payload))
	q.opts.MetricsCollector.SetJournalBytes(q.j.TotalBytes())

	return qi, fut, nil
}

// Reader returns the named reader, creating it (and, if it is the first
// named reader, removing the implicit default's checkpoint file) if absent.
// A freshly created reader's head is 0, so it is populated with every item
// the journal currently retains.
func (q *Queue) Reader(name string) (*Reader, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrClosed
	}
	if r, ok := q.readers[name]; ok {
		return r, nil
	}

	jr, err := q.j.Reader(name)
	if err != nil {
		return nil, err
	}
	items, err := q.j.ReplayAll()
	if err != nil {
		return nil, err
	}

	r := q.newReaderHandle(jr)
	populateAvailable(r, items)
	q.readers[name] = r
	return r, nil
}

// DefaultReader is a convenience wrapper around Reader(DefaultReaderName)
// for the common single-reader case.
func (q *Queue) DefaultReader() (*Reader, error) {
	return q.Reader(DefaultReaderName)
}

// ExistingReader returns the named reader without creating it, for
// observability callers that must not materialize a reader as a side
// effect of inspecting it.
func (q *Queue) ExistingReader(name string) (*Reader, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return nil, ErrClosed
	}
	r, ok := q.readers[name]
	if !ok {
		return nil, ErrUnknownReader
	}
	return r, nil
}

// Readers returns every currently known reader.
func (q *Queue) Readers() []*Reader {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]*Reader, 0, len(q.readers))
	for _, r := range q.readers {
		out = append(out, r)
	}
	return out
}

// Checkpoint durably records every reader's (head, doneSet) and reclaims
// writer files no live reader still needs.
func (q *Queue) Checkpoint() error {
	return q.j.Checkpoint()
}

// Erase deletes every file this queue owns and tears down all readers.
// The Queue is unusable afterward.
func (q *Queue) Erase() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopCheckpointTimerLocked()
	if err := q.j.Erase(); err != nil {
		return err
	}
	q.readers = make(map[string]*Reader)
	q.closed = true
	return nil
}

// Close closes the active writer file without deleting anything.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.stopCheckpointTimerLocked()
	q.closed = true
	return q.j.Close()
}

func (q *Queue) startCheckpointTimer() {
	q.checkpointTimer = time.AfterFunc(q.opts.CheckpointInterval, q.runCheckpointTick)
	q.checkpointTimerActive = true
}

func (q *Queue) stopCheckpointTimerLocked() {
	if q.checkpointTimerActive {
		q.checkpointTimer.Stop()
		q.checkpointTimerActive = false
	}
}

// runCheckpointTick fires on the background checkpoint schedule. Failures
// are logged, never fatal to the queue, and retried on the next tick.
func (q *Queue) runCheckpointTick() {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return
	}

	if err := q.j.Checkpoint(); err != nil {
		q.logger.Warn("background checkpoint failed", logging.F("err", err))
	}

	q.mu.Lock()
	if !q.closed && q.checkpointTimerActive {
		q.checkpointTimer.Reset(q.opts.CheckpointInterval)
	}
	q.mu.Unlock()
}

// Name returns this reader's name (empty string for the default reader).
func (r *Reader) Name() string {
	return r.jr.Name()
}

// Get acquires the next item as an open read: removed from the in-memory
// queue but not yet committed. A
// zero deadline means wait forever, bounded only by ctx.
func (r *Reader) Get(ctx context.Context, deadline time.Time) (QueueItem, bool) {
	item, ok := r.cbq.Get(ctx, deadline)
	if !ok {
		return QueueItem{}, false
	}

	r.mu.Lock()
	r.open[item.ID] = item
	openCount := len(r.open)
	r.mu.Unlock()

	r.q.opts.MetricsCollector.RecordGet(r.Name())
	r.q.opts.MetricsCollector.SetOpenReadCount(r.Name(), openCount)
	r.q.opts.MetricsCollector.SetQueueSize(r.Name(), r.cbq.Size())

	return item, true
}

// Commit acknowledges id: it is removed from this reader's open-read set
// and durably recorded as done, advancing head if id is contiguous with it.
// Returns ErrUnknownID if id is not currently open for this reader.
func (r *Reader) Commit(id ItemID) error {
	r.mu.Lock()
	_, ok := r.open[id]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownID
	}
	delete(r.open, id)
	openCount := len(r.open)
	r.mu.Unlock()

	if err := r.jr.Commit(id); err != nil {
		if errors.Is(err, journal.ErrUnknownID) {
			return ErrUnknownID
		}
		return err
	}

	r.q.opts.MetricsCollector.SetOpenReadCount(r.Name(), openCount)
	return nil
}

// Abort returns id to the head of this reader's in-memory queue — ahead of
// anything freshly put — rather than acknowledging it. Returns ErrUnknownID if id is not currently
// open for this reader.
func (r *Reader) Abort(id ItemID) error {
	r.mu.Lock()
	item, ok := r.open[id]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownID
	}
	delete(r.open, id)
	openCount := len(r.open)
	r.mu.Unlock()

	r.cbq.PutFront(item)

	r.q.opts.MetricsCollector.SetOpenReadCount(r.Name(), openCount)
	r.q.opts.MetricsCollector.SetQueueSize(r.Name(), r.cbq.Size())
	return nil
}

// Checkpoint durably records this reader's (head, doneSet) and asks the
// owning Journal to attempt reclamation.
func (r *Reader) Checkpoint() error {
	return r.jr.Checkpoint()
}
