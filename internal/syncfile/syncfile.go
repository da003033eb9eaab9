// Package syncfile provides a buffered, write-through file handle that
// flushes durability syncs on a configurable cadence.
//
// Grounded on the teacher's internal/segment.Writer: a bufio.Writer over an
// *os.File, a needsSync flag, and a time.AfterFunc-driven sync timer
// (startSyncTimer/syncLocked there). This package pulls that pattern out of
// the segment writer into a standalone, reusable primitive so the journal's
// writer files (component E) can use it without depending on
// segment-specific bookkeeping. Reader checkpoint files do not go through
// it; the journal rewrites them directly.
package syncfile

import (
	"bufio"
	"os"
	"sync"
	"time"

	"github.com/vnykmshr/fanoutq/internal/future"
)

// SyncPolicy determines when buffered writes become durable.
type SyncPolicy int

const (
	// SyncImmediate fsyncs after every Append (safest, slowest).
	SyncImmediate SyncPolicy = iota
	// SyncInterval fsyncs on a fixed cadence via a background timer.
	SyncInterval
	// SyncManual only fsyncs when Flush or Close is called explicitly.
	SyncManual
)

// Options configures a File.
type Options struct {
	Policy       SyncPolicy
	SyncInterval time.Duration
	BufferSize   int
}

// DefaultOptions returns sensible defaults: interval-synced, 1s cadence,
// 64KiB buffer.
func DefaultOptions() Options {
	return Options{
		Policy:       SyncInterval,
		SyncInterval: time.Second,
		BufferSize:   64 * 1024,
	}
}

// File is a buffered, append-only, write-through file handle.
//
// Contract: after Close returns successfully all bytes are
// durable. After a crash, only a suffix of the stream may be missing — no
// interior bytes are ever lost or reordered, because writes only ever
// append to the buffer in call order and syncs only ever flush a prefix of
// what's buffered.
type File struct {
	opts Options

	mu        sync.Mutex
	file      *os.File
	buf       *bufio.Writer
	waiters   []*future.Future[struct{}]
	needsSync bool
	closed    bool

	timer       *time.Timer
	timerActive bool
}

// Create creates a new file for append-only writing, failing if it exists.
func Create(path string, opts Options) (*File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // G304: caller-controlled journal directory
	if err != nil {
		return nil, err
	}
	return newFile(f, opts), nil
}

// Open opens an existing file for append, positioning the OS file offset at
// the end.
func Open(path string, opts Options) (*File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // G304: caller-controlled journal directory
	if err != nil {
		return nil, err
	}
	return newFile(f, opts), nil
}

func newFile(f *os.File, opts Options) *File {
	sf := &File{
		opts: opts,
		file: f,
		buf:  bufio.NewWriterSize(f, opts.BufferSize),
	}
	if opts.Policy == SyncInterval && opts.SyncInterval > 0 {
		sf.startTimer()
	}
	return sf
}

// Append buffers data for writing and returns a future that completes once
// the write is durable — immediately under SyncImmediate, or after the next
// scheduled/explicit sync otherwise.
func (sf *File) Append(data []byte) (*future.Future[struct{}], error) {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	if sf.closed {
		return nil, os.ErrClosed
	}

	if _, err := sf.buf.Write(data); err != nil {
		return nil, err
	}
	sf.needsSync = true

	fut := future.New[struct{}]()
	if sf.opts.Policy == SyncImmediate {
		if err := sf.syncLocked(); err != nil {
			return nil, err
		}
		fut.Complete(struct{}{})
		return fut, nil
	}

	sf.waiters = append(sf.waiters, fut)
	return fut, nil
}

// Flush forces a durability sync now, regardless of policy, and resolves
// every pending Append future.
func (sf *File) Flush() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.syncLocked()
}

// syncLocked must be called with mu held.
func (sf *File) syncLocked() error {
	if sf.closed {
		return os.ErrClosed
	}
	if err := sf.buf.Flush(); err != nil {
		return err
	}
	if err := sf.file.Sync(); err != nil {
		return err
	}
	sf.needsSync = false
	for _, w := range sf.waiters {
		w.Complete(struct{}{})
	}
	sf.waiters = sf.waiters[:0]
	return nil
}

func (sf *File) startTimer() {
	sf.timer = time.AfterFunc(sf.opts.SyncInterval, func() {
		sf.mu.Lock()
		if !sf.closed && sf.needsSync {
			_ = sf.syncLocked() //nolint:errcheck // background sync errors surface on the next explicit op
		}
		closed := sf.closed
		if !closed {
			sf.timer.Reset(sf.opts.SyncInterval)
		}
		sf.mu.Unlock()
	})
	sf.timerActive = true
}

// Close flushes, syncs, and closes the underlying file. All pending Append
// futures are resolved before Close returns.
func (sf *File) Close() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	if sf.closed {
		return nil
	}
	if sf.timerActive {
		sf.timer.Stop()
		sf.timerActive = false
	}
	if sf.needsSync {
		if err := sf.syncLocked(); err != nil {
			return err
		}
	}
	sf.closed = true
	return sf.file.Close()
}

// Size returns the current OS-visible file size (stat, not buffered bytes).
func (sf *File) Size() (int64, error) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	info, err := sf.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
