package fanoutq

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testOptions() *Options {
	o := DefaultOptions()
	o.AutoSync = true
	o.Clock = NewFrozenClock(1000)
	return o
}

func mustOpen(t *testing.T, dir string) *Queue {
	t.Helper()
	q, err := Open(dir, "test", testOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return q
}

func mustPut(t *testing.T, q *Queue, payload string) QueueItem {
	t.Helper()
	item, fut, err := q.Put([]byte(payload), 0)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	fut.Wait()
	return item
}

func TestPutGetCommitRoundTrip(t *testing.T) {
	dir := t.TempDir()
	q := mustOpen(t, dir)
	defer q.Close()

	put := mustPut(t, q, "hello")

	r, err := q.DefaultReader()
	if err != nil {
		t.Fatalf("DefaultReader: %v", err)
	}

	got, ok := r.Get(context.Background(), time.Time{})
	if !ok {
		t.Fatal("expected an item")
	}
	if got.ID != put.ID || string(got.Payload) != "hello" {
		t.Fatalf("got %+v, want id=%d payload=hello", got, put.ID)
	}

	if err := r.Commit(got.ID); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if r.Stats().Head != got.ID {
		t.Fatalf("head = %d, want %d", r.Stats().Head, got.ID)
	}
}

func TestCommitUnopenIDRejected(t *testing.T) {
	dir := t.TempDir()
	q := mustOpen(t, dir)
	defer q.Close()

	r, err := q.DefaultReader()
	if err != nil {
		t.Fatalf("DefaultReader: %v", err)
	}
	if err := r.Commit(1); err != ErrUnknownID {
		t.Fatalf("Commit on never-delivered id = %v, want ErrUnknownID", err)
	}
}

func TestDoubleCommitRejected(t *testing.T) {
	dir := t.TempDir()
	q := mustOpen(t, dir)
	defer q.Close()

	mustPut(t, q, "a")
	r, err := q.DefaultReader()
	if err != nil {
		t.Fatalf("DefaultReader: %v", err)
	}
	item, ok := r.Get(context.Background(), time.Time{})
	if !ok {
		t.Fatal("expected an item")
	}
	if err := r.Commit(item.ID); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := r.Commit(item.ID); err != ErrUnknownID {
		t.Fatalf("second commit = %v, want ErrUnknownID", err)
	}
}

func TestAbortReturnsItemToHeadAheadOfFreshPuts(t *testing.T) {
	dir := t.TempDir()
	q := mustOpen(t, dir)
	defer q.Close()

	first := mustPut(t, q, "first")
	r, err := q.DefaultReader()
	if err != nil {
		t.Fatalf("DefaultReader: %v", err)
	}

	got, ok := r.Get(context.Background(), time.Time{})
	if !ok || got.ID != first.ID {
		t.Fatalf("got %+v, want id=%d", got, first.ID)
	}
	if err := r.Abort(got.ID); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	mustPut(t, q, "second")

	redelivered, ok := r.Get(context.Background(), time.Time{})
	if !ok || redelivered.ID != first.ID {
		t.Fatalf("got %+v, want the aborted item (id=%d) ahead of the fresh put", redelivered, first.ID)
	}
}

func TestAbortUnopenIDRejected(t *testing.T) {
	dir := t.TempDir()
	q := mustOpen(t, dir)
	defer q.Close()

	r, err := q.DefaultReader()
	if err != nil {
		t.Fatalf("DefaultReader: %v", err)
	}
	if err := r.Abort(99); err != ErrUnknownID {
		t.Fatalf("Abort on never-delivered id = %v, want ErrUnknownID", err)
	}
}

func TestMultipleReadersFanOutIndependently(t *testing.T) {
	dir := t.TempDir()
	q := mustOpen(t, dir)
	defer q.Close()

	a, err := q.Reader("a")
	if err != nil {
		t.Fatalf("Reader(a): %v", err)
	}
	b, err := q.Reader("b")
	if err != nil {
		t.Fatalf("Reader(b): %v", err)
	}

	put := mustPut(t, q, "fan-out")

	gotA, ok := a.Get(context.Background(), time.Time{})
	if !ok || gotA.ID != put.ID {
		t.Fatalf("reader a got %+v, want id=%d", gotA, put.ID)
	}
	if err := a.Commit(gotA.ID); err != nil {
		t.Fatalf("a.Commit: %v", err)
	}

	// b has not consumed yet: its copy of the item is independent of a's.
	gotB, ok := b.Get(context.Background(), time.Time{})
	if !ok || gotB.ID != put.ID {
		t.Fatalf("reader b got %+v, want id=%d", gotB, put.ID)
	}
	if err := b.Commit(gotB.ID); err != nil {
		t.Fatalf("b.Commit: %v", err)
	}
}

// TestConcurrentPutsDeliverInAscendingOrder guards against a fan-out race:
// Put must assign a journal id and deliver it to every reader's in-memory
// queue as one atomic step, or a later id could win the race to fan out
// before an earlier one.
func TestConcurrentPutsDeliverInAscendingOrder(t *testing.T) {
	dir := t.TempDir()
	q := mustOpen(t, dir)
	defer q.Close()

	r, err := q.Reader("r")
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}

	const n = 200
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, _, err := q.Put([]byte("x"), 0); err != nil {
				t.Errorf("Put: %v", err)
			}
		}()
	}
	wg.Wait()

	var lastID ItemID
	for i := 0; i < n; i++ {
		item, ok := r.Get(context.Background(), time.Time{})
		if !ok {
			t.Fatalf("Get: expected item %d of %d", i+1, n)
		}
		if item.ID <= lastID {
			t.Fatalf("got id %d after %d, want strictly ascending order", item.ID, lastID)
		}
		lastID = item.ID
		if err := r.Commit(item.ID); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}
}

func TestGetTimesOutOnEmptyQueue(t *testing.T) {
	dir := t.TempDir()
	q := mustOpen(t, dir)
	defer q.Close()

	r, err := q.DefaultReader()
	if err != nil {
		t.Fatalf("DefaultReader: %v", err)
	}
	_, ok := r.Get(context.Background(), time.Now().Add(20*time.Millisecond))
	if ok {
		t.Fatal("expected timeout on empty queue")
	}
}

func TestUncommittedItemReplaysAfterRecovery(t *testing.T) {
	dir := t.TempDir()
	q := mustOpen(t, dir)

	put := mustPut(t, q, "pending")
	r, err := q.Reader("r")
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	got, ok := r.Get(context.Background(), time.Time{})
	if !ok || got.ID != put.ID {
		t.Fatalf("got %+v, want id=%d", got, put.ID)
	}
	// Crash: closed without committing or checkpointing.
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	q2, err := Open(dir, "test", testOptions())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer q2.Close()

	r2, err := q2.Reader("r")
	if err != nil {
		t.Fatalf("Reader after recovery: %v", err)
	}
	redelivered, ok := r2.Get(context.Background(), time.Now().Add(50*time.Millisecond))
	if !ok || redelivered.ID != put.ID {
		t.Fatalf("got %+v, want the uncommitted item (id=%d) to replay", redelivered, put.ID)
	}
}

func TestCheckpointReclaimsViaQueue(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions()
	opts.MaxFileSize = 1024
	q, err := Open(dir, "test", opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer q.Close()

	r, err := q.Reader("r")
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}

	payload := make([]byte, 512)
	var last QueueItem
	for i := 0; i < 5; i++ {
		last, _, err = q.Put(payload, 0)
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	for i := uint64(1); i <= last.ID; i++ {
		item, ok := r.Get(context.Background(), time.Time{})
		if !ok {
			t.Fatalf("expected item %d", i)
		}
		if err := r.Commit(item.ID); err != nil {
			t.Fatalf("Commit(%d): %v", item.ID, err)
		}
	}

	if err := q.Checkpoint(); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	// F1 (ids 1-2) and F2 (ids 3-4) are fully below head=5 and get
	// reclaimed; F3 (id 5) is still the active file and is never deleted,
	// even though its sole id is fully committed.
	if stats := q.Stats(); stats.JournalBytes != int64(len(payload)) {
		t.Fatalf("journal bytes after partial reclamation = %d, want %d (only F3 remains)", stats.JournalBytes, len(payload))
	}
}

func TestClosedQueueRejectsPut(t *testing.T) {
	dir := t.TempDir()
	q := mustOpen(t, dir)
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, _, err := q.Put([]byte("x"), 0); err != ErrClosed {
		t.Fatalf("Put after Close = %v, want ErrClosed", err)
	}
}

func TestExistingReaderDoesNotCreate(t *testing.T) {
	dir := t.TempDir()
	q := mustOpen(t, dir)
	defer q.Close()

	if _, err := q.ExistingReader("ghost"); err != ErrUnknownReader {
		t.Fatalf("ExistingReader(ghost) = %v, want ErrUnknownReader", err)
	}
	if _, err := q.Reader("ghost"); err != nil {
		t.Fatalf("Reader(ghost): %v", err)
	}
	if _, err := q.ExistingReader("ghost"); err != nil {
		t.Fatalf("ExistingReader(ghost) after creation: %v", err)
	}
}
