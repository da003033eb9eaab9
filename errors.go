package fanoutq

import (
	"errors"
	"fmt"

	"github.com/vnykmshr/fanoutq/internal/journal"
)

// ErrUnknownReader is returned by ExistingReader for a reader name that has
// never been created.
var ErrUnknownReader = errors.New("fanoutq: unknown reader")

// ErrUnknownID is returned by Commit/Abort for an id that is not currently
// open in that reader — never fatal.
var ErrUnknownID = errors.New("fanoutq: id not open for this reader")

// ErrClosed is returned by Put, Reader and ExistingReader once the Queue
// has been closed or erased. The methods of an existing Reader handle and
// Queue.Checkpoint do not check for it.
var ErrClosed = errors.New("fanoutq: closed")

// CorruptionKind distinguishes a recoverable tail tear from a fatal
// interior corruption.
type CorruptionKind int

const (
	// CorruptionTail is a torn trailing record: recoverable by truncation.
	CorruptionTail CorruptionKind = iota
	// CorruptionInterior is damage earlier in a file: fatal, refuses to start.
	CorruptionInterior
)

func (k CorruptionKind) String() string {
	switch k {
	case CorruptionTail:
		return "tail"
	case CorruptionInterior:
		return "interior"
	default:
		return "unknown"
	}
}

// CorruptJournalError reports journal corruption detected during recovery
// or normal reads, tagged with whether it was safe to truncate past.
type CorruptJournalError struct {
	Path string
	Kind CorruptionKind
	Err  error
}

func (e *CorruptJournalError) Error() string {
	return fmt.Sprintf("fanoutq: corrupt journal file %s (%s): %v", e.Path, e.Kind, e.Err)
}

func (e *CorruptJournalError) Unwrap() error {
	return e.Err
}

// translateCorruption maps the journal package's internal corruption error
// onto this package's public CorruptJournalError, keeping internal/journal
// out of the public API surface callers write errors.As against.
func translateCorruption(err error) error {
	var jerr *journal.CorruptJournalError
	if errors.As(err, &jerr) {
		kind := CorruptionTail
		if jerr.Interior {
			kind = CorruptionInterior
		}
		return &CorruptJournalError{Path: jerr.Path, Kind: kind, Err: jerr.Err}
	}
	return err
}
