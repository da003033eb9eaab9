package journal

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/vnykmshr/fanoutq/internal/format"
	"github.com/vnykmshr/fanoutq/internal/future"
	"github.com/vnykmshr/fanoutq/internal/idset"
	"github.com/vnykmshr/fanoutq/internal/logging"
	"github.com/vnykmshr/fanoutq/internal/syncfile"
)

// Journal owns the writer files and reader checkpoint files for one queue
// directory. All mutation of the file list, the active writer, and the id
// counter goes through mu; reclamation takes mu only for the file-list edit
// (including removing the reclaimed files), not while querying reader heads.
type Journal struct {
	dir   string
	queue string
	opts  Options

	mu      sync.Mutex
	files   []*FileInfo
	current *syncfile.File
	nextID  uint64
	readers map[string]*Reader
	closed  bool

	// activeTailID/activeItemCount/activeBytes track the file currently
	// being written to. They back the rotation threshold and TotalBytes;
	// they are deliberately not written into that file's FileInfo until
	// it is rotated out, so FileInfoForID reports the just-opened
	// (tail=0, count=0, bytes=0) tuple for the active file, per spec §8
	// scenario 2 ("file₃ is still being written").
	activeTailID    uint64
	activeItemCount int
	activeBytes     int64
}

// Open discovers, recovers, and opens a journal for queue in dir, creating
// the directory's first writer file if none exists.
// The returned slice is every item recovered from the on-disk writer
// files, in ascending id order, for the caller to redistribute into each
// reader's in-memory queue (component G owns that fan-out; this package
// only owns durable state).
func Open(dir, queue string, opts Options) (*Journal, []Item, error) {
	opts = opts.withDefaults()

	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: caller-controlled journal directory
		return nil, nil, err
	}

	disc, err := discover(dir, queue)
	if err != nil {
		return nil, nil, err
	}

	items, infos, nextID, err := scanWriterFiles(disc.writerPaths, opts.Logger)
	if err != nil {
		return nil, nil, err
	}

	j := &Journal{
		dir:     dir,
		queue:   queue,
		opts:    opts,
		files:   infos,
		nextID:  nextID,
		readers: make(map[string]*Reader),
	}

	if len(infos) == 0 {
		if err := j.openFreshWriter(); err != nil {
			return nil, nil, err
		}
	} else {
		last := infos[len(infos)-1]
		f, err := syncfile.Open(last.Path, opts.SyncOptions)
		if err != nil {
			return nil, nil, err
		}
		j.current = f
		// Recovery reads the active file's real tail/count/bytes straight off
		// disk, unlike the in-session stub Put leaves in place until rotation;
		// seed the rotation counters from it so the threshold check is correct
		// immediately after a restart.
		j.activeTailID = last.TailID
		j.activeItemCount = last.ItemCount
		j.activeBytes = last.TotalBytes
	}

	readerNames := dedupe(disc.readerNames)
	if hasNamedReader(readerNames) {
		// I2: the default reader's file exists iff no named reader exists.
		// A prior crash between "create first named reader" and "delete the
		// default's file" can leave both on disk; enforce the invariant on
		// every open, not just at the moment a named reader is first created.
		readerNames = removeName(readerNames, defaultReaderName)
		if err := os.Remove(filepath.Join(dir, checkpointFileName(queue, defaultReaderName))); err != nil && !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("journal: removing stray default reader file: %w", err)
		}
	}
	if len(readerNames) == 0 {
		j.readers[defaultReaderName] = &Reader{j: j, name: defaultReaderName, head: 0, done: idset.New()}
	} else {
		for _, name := range readerNames {
			path := filepath.Join(dir, checkpointFileName(queue, name))
			head, done, err := replayCheckpoint(path)
			if err != nil {
				return nil, nil, err
			}
			head, done = clampRecoveredState(head, done, items)
			j.readers[name] = &Reader{j: j, name: name, head: head, done: done}
		}
	}

	return j, items, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// hasNamedReader reports whether names contains anything other than the
// default reader's empty name.
func hasNamedReader(names []string) bool {
	for _, n := range names {
		if n != defaultReaderName {
			return true
		}
	}
	return false
}

// removeName returns names with every occurrence of target dropped.
func removeName(names []string, target string) []string {
	out := names[:0:0]
	for _, n := range names {
		if n != target {
			out = append(out, n)
		}
	}
	return out
}

func (j *Journal) openFreshWriter() error {
	ts := j.opts.Clock.NowMs()
	if n := len(j.files); n > 0 {
		// Two rotations within one clock tick would reuse the previous
		// file's name; keep names unique and ascending instead.
		if lastTs, ok := parseWriterFileName(j.queue, filepath.Base(j.files[n-1].Path)); ok && ts <= lastTs {
			ts = lastTs + 1
		}
	}
	path := filepath.Join(j.dir, writerFileName(j.queue, ts))
	f, err := syncfile.Create(path, j.opts.SyncOptions)
	if err != nil {
		return err
	}
	info := &FileInfo{Path: path, HeadID: j.nextID}
	j.files = append(j.files, info)
	j.current = f
	j.activeTailID = 0
	j.activeItemCount = 0
	j.activeBytes = 0
	return nil
}

// Put assigns the next id, appends a framed record, and returns the
// assigned item plus a future that completes once the record is durable.
func (j *Journal) Put(payload []byte, addTimeMs, expireTimeMs int64) (Item, *future.Future[struct{}], error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return Item{}, nil, os.ErrClosed
	}

	id := j.nextID
	rec := &format.PutRecord{ID: id, AddTimeMs: addTimeMs, ExpireTimeMs: expireTimeMs, Payload: payload}
	frame := rec.Marshal()

	// Rotation is sized against payload bytes, not on-disk frame bytes.
	if j.activeItemCount > 0 && j.activeBytes+int64(len(payload)) > j.opts.MaxFileSize {
		if err := j.rotateLocked(); err != nil {
			return Item{}, nil, err
		}
	}

	fut, err := j.current.Append(frame)
	if err != nil {
		return Item{}, nil, err
	}

	j.activeTailID = id
	j.activeItemCount++
	j.activeBytes += int64(len(payload))

	j.nextID = id + 1

	return Item{ID: id, AddTimeMs: addTimeMs, ExpireTimeMs: expireTimeMs, Payload: payload}, fut, nil
}

// rotateLocked must be called with mu held. It finalizes the outgoing
// file's FileInfo with its real tail/count/bytes — the values it was
// withholding while still active — closes it, then opens a fresh writer
// named by the current wall-clock millisecond.
func (j *Journal) rotateLocked() error {
	outgoing := j.files[len(j.files)-1]
	outgoing.TailID = j.activeTailID
	outgoing.ItemCount = j.activeItemCount
	outgoing.TotalBytes = j.activeBytes

	if err := j.current.Close(); err != nil {
		return err
	}
	return j.openFreshWriter()
}

// FileInfoForID returns the writer file that logically contains id. id == 0
// always misses, but any other id below the first file's head resolves to
// that first file, since ids are assigned continuously from 1 even across
// file rotation and reclamation.
func (j *Journal) FileInfoForID(id uint64) (*FileInfo, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if id == 0 || len(j.files) == 0 {
		return nil, false
	}
	if id < j.files[0].HeadID {
		return j.files[0], true
	}
	var best *FileInfo
	for _, fi := range j.files {
		if fi.HeadID <= id {
			best = fi
		} else {
			break
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// ReplayAll re-reads every currently live writer file from disk and
// returns every item they hold, in ascending id order. Journal.Open uses
// the same scan internally at startup; this lets a reader created after
// Open (one with no persisted checkpoint of its own) start from a
// complete view of everything still on disk, exactly as if it had existed
// since Open — a fresh reader's head is 0, so everything currently
// retained is by definition still available to it.
func (j *Journal) ReplayAll() ([]Item, error) {
	j.mu.Lock()
	paths := make([]string, len(j.files))
	for i, fi := range j.files {
		paths[i] = fi.Path
	}
	j.mu.Unlock()

	items, _, _, err := scanWriterFiles(paths, j.opts.Logger)
	return items, err
}

// TotalBytes returns the sum of payload bytes currently retained across
// every writer file this journal still owns, including whatever the
// still-active file holds but hasn't had folded into its FileInfo yet.
func (j *Journal) TotalBytes() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	var total int64
	for i, fi := range j.files {
		if i == len(j.files)-1 {
			// The active file: counted through activeBytes below, which
			// Open seeds from this same FileInfo after a restart.
			continue
		}
		total += fi.TotalBytes
	}
	return total + j.activeBytes
}

// Lookup returns the named reader without creating it, for callers (such
// as an admin/metrics collaborator) that want to inspect a reader's state
// without the side effect Reader() has of materializing a brand new one.
func (j *Journal) Lookup(name string) (*Reader, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	r, ok := j.readers[name]
	if !ok {
		return nil, ErrUnknownReader
	}
	return r, nil
}

// Reader returns the named reader, creating it if absent. Creating the
// first named reader removes the implicit default's checkpoint file.
func (j *Journal) Reader(name string) (*Reader, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if r, ok := j.readers[name]; ok {
		return r, nil
	}

	if name != defaultReaderName {
		if _, hasDefault := j.readers[defaultReaderName]; hasDefault {
			delete(j.readers, defaultReaderName)
			defaultPath := filepath.Join(j.dir, checkpointFileName(j.queue, defaultReaderName))
			if err := os.Remove(defaultPath); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("journal: removing default reader file: %w", err)
			}
		}
	}

	r := &Reader{j: j, name: name, head: 0, done: idset.New()}
	j.readers[name] = r
	return r, nil
}

// Readers returns every currently known reader.
func (j *Journal) Readers() []*Reader {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]*Reader, 0, len(j.readers))
	for _, r := range j.readers {
		out = append(out, r)
	}
	return out
}

// Checkpoint durably records every reader's (head, doneSet) and then
// reclaims writer files no live reader still needs.
func (j *Journal) Checkpoint() error {
	for _, r := range j.Readers() {
		r.mu.Lock()
		head := r.head
		doneIDs := r.done.Ascending()
		r.mu.Unlock()
		if err := j.writeCheckpoint(r.name, head, doneIDs); err != nil {
			return err
		}
	}
	j.reclaim()
	return nil
}

// writeCheckpoint atomically rewrites one reader's checkpoint file: write
// to a `~~` sibling, fsync, rename over the target.
func (j *Journal) writeCheckpoint(name string, head uint64, doneIDs []uint64) error {
	path := filepath.Join(j.dir, checkpointFileName(j.queue, name))
	tmp := tempPath(path)

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644) //nolint:gosec // G304: caller-controlled journal directory
	if err != nil {
		return err
	}

	headRec := &format.ReadHeadRecord{ID: head}
	doneRec := &format.ReadDoneRecord{IDs: doneIDs}
	if _, err := f.Write(headRec.Marshal()); err != nil {
		f.Close()
		return err
	}
	if _, err := f.Write(doneRec.Marshal()); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// reclaim deletes every writer file whose tailId is at or below the minimum
// head across all live readers (a reader's head is the last id it has fully
// consumed), never touching the active file.
func (j *Journal) reclaim() {
	readers := j.Readers()
	if len(readers) == 0 {
		return
	}

	minHead := uint64(math.MaxUint64)
	for _, r := range readers {
		if h := r.Head(); h < minHead {
			minHead = h
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	kept := j.files[:0:0]
	for i, fi := range j.files {
		isActive := i == len(j.files)-1
		if !isActive && fi.ItemCount > 0 && fi.TailID <= minHead {
			if err := os.Remove(fi.Path); err != nil {
				j.opts.Logger.Warn("reclaim: failed to remove writer file, will retry", logging.F("path", fi.Path), logging.F("err", err))
				kept = append(kept, fi)
				continue
			}
			j.opts.Logger.Debug("reclaim: removed writer file", logging.F("path", fi.Path), logging.F("tailId", fi.TailID), logging.F("minHead", minHead))
			continue
		}
		kept = append(kept, fi)
	}
	j.files = kept
}

// Erase deletes every file this journal owns — writer files, checkpoint
// files, and any stray temporaries — leaving files of other queues in the
// same directory untouched.
func (j *Journal) Erase() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.current != nil {
		_ = j.current.Close() //nolint:errcheck // best-effort on a path we're about to delete
	}
	for _, fi := range j.files {
		if err := os.Remove(fi.Path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	for name := range j.readers {
		path := filepath.Join(j.dir, checkpointFileName(j.queue, name))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	j.files = nil
	j.readers = make(map[string]*Reader)
	j.closed = true
	return nil
}

// Close closes the active writer file without deleting anything.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.current.Close()
}
