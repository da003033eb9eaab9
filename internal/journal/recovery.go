package journal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/vnykmshr/fanoutq/internal/format"
	"github.com/vnykmshr/fanoutq/internal/idset"
	"github.com/vnykmshr/fanoutq/internal/logging"
)

// countingReader wraps an io.Reader and tracks total bytes successfully
// delivered to callers, used to find the exact offset at which a torn tail
// begins so it can be truncated away.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// discoveredFiles is the result of classifying one queue directory's
// entries.
type discoveredFiles struct {
	writerPaths     []string // sorted ascending by timestamp suffix
	writerTimestamps []int64
	readerNames     []string // names found among checkpoint files, "" = default
}

// discover scans dir for files belonging to queue, deleting any `~~`
// temporaries it finds along the way.
func discover(dir, queue string) (*discoveredFiles, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	result := &discoveredFiles{}
	type writerEntry struct {
		path string
		ts   int64
	}
	var writers []writerEntry

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		if isTempFile(name) {
			if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("journal: removing stale temp file %s: %w", name, err)
			}
			continue
		}

		if readerName, ok := parseCheckpointFileName(queue, name); ok {
			result.readerNames = append(result.readerNames, readerName)
			continue
		}

		if ts, ok := parseWriterFileName(queue, name); ok {
			writers = append(writers, writerEntry{path: filepath.Join(dir, name), ts: ts})
			continue
		}

		// Belongs to neither pattern: spec §4.E step 1, "other names are
		// ignored".
	}

	sort.Slice(writers, func(i, j int) bool { return writers[i].ts < writers[j].ts })
	for _, w := range writers {
		result.writerPaths = append(result.writerPaths, w.path)
		result.writerTimestamps = append(result.writerTimestamps, w.ts)
	}

	return result, nil
}

// scanWriterFiles replays every writer file in order, building the full
// ordered item list (needed to re-populate every reader's in-memory queue
// on recovery) and the per-file FileInfo summaries. A torn tail on the
// *last* file is truncated and treated as recoverable (I5) only when the
// error actually occurred at the file's physical end — a corrupt record
// with intact records still following it, wherever it occurs, is fatal
// interior corruption; truncating past it would silently drop whatever
// comes after.
func scanWriterFiles(paths []string, logger logging.Logger) (items []Item, infos []*FileInfo, nextID uint64, err error) {
	nextID = 1
	for i, path := range paths {
		isLast := i == len(paths)-1
		fileItems, info, truncated, atPhysicalEnd, scanErr := scanOneWriterFile(path, nextID)
		if scanErr != nil {
			recoverable := isLast && atPhysicalEnd && errors.Is(scanErr, format.ErrTornRecord)
			if recoverable {
				logger.Warn("truncating torn tail", logging.F("path", path), logging.F("offset", truncated), logging.F("err", scanErr))
				if truncErr := os.Truncate(path, truncated); truncErr != nil {
					return nil, nil, 0, fmt.Errorf("journal: truncating torn tail of %s: %w", path, truncErr)
				}
			} else {
				logger.Error("interior corruption, refusing to start", logging.F("path", path), logging.F("offset", truncated), logging.F("err", scanErr))
				return nil, nil, 0, &CorruptJournalError{Path: path, Interior: true, Err: scanErr}
			}
		}
		items = append(items, fileItems...)
		infos = append(infos, info)
		if info.ItemCount > 0 {
			nextID = info.TailID + 1
		} else {
			info.HeadID = nextID
		}
	}
	return items, infos, nextID, nil
}

// scanOneWriterFile reads every intact Put record from path. headIDHint is
// the id that would be assigned to the first record of this file were it
// empty (used to stamp an empty file's HeadID per spec §3 FileInfo: "for an
// empty/just-opened file both are 0" is superseded by §4.E's "a just-opened
// empty file has headId = nextExpectedId"). atPhysicalEnd reports whether a
// returned error occurred with no further bytes left in the file — only
// then is the error a true torn tail rather than corruption with intact
// data still following it.
func scanOneWriterFile(path string, headIDHint uint64) (items []Item, info *FileInfo, truncateAt int64, atPhysicalEnd bool, err error) {
	f, err := os.Open(path) //nolint:gosec // G304: caller-controlled journal directory
	if err != nil {
		return nil, nil, 0, false, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, nil, 0, false, err
	}
	fileSize := stat.Size()

	cr := &countingReader{r: f}
	info = &FileInfo{Path: path}

	for {
		lastGood := cr.n
		rec, readErr := format.ReadNextPut(cr)
		if readErr != nil {
			if errors.Is(readErr, format.ErrEndOfFile) {
				break
			}
			return items, info, lastGood, cr.n >= fileSize, readErr
		}
		items = append(items, Item{
			ID:           rec.ID,
			AddTimeMs:    rec.AddTimeMs,
			ExpireTimeMs: rec.ExpireTimeMs,
			Payload:      rec.Payload,
		})
		info.ItemCount++
		info.TailID = rec.ID
		if info.ItemCount == 1 {
			info.HeadID = rec.ID
		}
		// TotalBytes tracks payload content, matching Put's rotation
		// accounting, not the on-disk frame size (which includes header
		// and CRC overhead).
		info.TotalBytes += int64(len(rec.Payload))
	}

	if info.ItemCount == 0 {
		info.HeadID = headIDHint
	}
	return items, info, cr.n, true, nil
}

// replayCheckpoint reads every record in a reader's checkpoint file and
// reduces it to the effective state: the *last* ReadHead plus the *last*
// ReadDone.
func replayCheckpoint(path string) (head uint64, done *idset.Set, err error) {
	f, err := os.Open(path) //nolint:gosec // G304: caller-controlled journal directory
	if err != nil {
		if os.IsNotExist(err) {
			return 0, idset.New(), nil
		}
		return 0, nil, err
	}
	defer f.Close()

	done = idset.New()
	cr := &countingReader{r: f}
	for {
		rec, readErr := format.ReadNextCheckpoint(cr)
		if readErr != nil {
			if errors.Is(readErr, format.ErrEndOfFile) {
				break
			}
			if errors.Is(readErr, format.ErrTornRecord) {
				// A checkpoint file's tail tear just means we lose the
				// last, not-yet-synced update; fall back to whatever
				// reduced state was built from the intact prefix.
				break
			}
			return 0, nil, readErr
		}
		switch rec.Kind {
		case format.ReaderRecordKindHead:
			head = rec.Head.ID
		case format.ReaderRecordKindDone:
			done = idset.New(rec.Done.IDs...)
		}
	}
	return head, done, nil
}

// clampRecoveredState applies invariant I6: a persisted head beyond the
// latest id on disk is clamped to the greatest existing id, and doneSet is
// filtered to ids that still exist.
func clampRecoveredState(head uint64, done *idset.Set, items []Item) (uint64, *idset.Set) {
	if len(items) == 0 {
		// No writer file currently holds any record — either a brand new
		// queue (head is already 0) or a reader fully caught up with
		// everything it once had reclaimed out from under it. Neither
		// case has a "latest id present on disk" to clamp against, so
		// leave head untouched; only drop doneSet entries, since none of
		// them can possibly still exist.
		done.FilterFunc(func(uint64) bool { return false })
		return head, done
	}

	exists := make(map[uint64]bool, len(items))
	for _, it := range items {
		exists[it.ID] = true
	}
	greatest := items[len(items)-1].ID

	// Clamping to exactly the greatest existing id, rather than
	// greatest+1: a persisted head past that id means the reader had
	// already consumed it, and head covers ids at or below itself, so the
	// greatest id stays acknowledged and is not redelivered.
	if head > greatest {
		head = greatest
	}

	done.FilterFunc(func(id uint64) bool { return exists[id] })
	return head, done
}
