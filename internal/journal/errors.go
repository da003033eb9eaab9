package journal

import (
	"errors"
	"fmt"
)

// ErrUnknownReader is returned by Lookup when name has never been created.
var ErrUnknownReader = errors.New("journal: unknown reader")

// ErrUnknownID is returned by Reader.Commit for an id not currently
// recognized as open by that reader (never fatal, spec §7 UnknownId).
var ErrUnknownID = errors.New("journal: id not open")

// CorruptJournalError reports corruption found during recovery. Interior
// corruption (or an unrecognized record kind anywhere) is fatal; a torn
// tail on the active writer file is not — recovery truncates and logs it
// and returns no error, so Open only ever returns this with Interior=true.
type CorruptJournalError struct {
	Path     string
	Interior bool
	Err      error
}

func (e *CorruptJournalError) Error() string {
	kind := "tail"
	if e.Interior {
		kind = "interior"
	}
	return fmt.Sprintf("journal: corrupt file %s (%s): %v", e.Path, kind, e.Err)
}

func (e *CorruptJournalError) Unwrap() error {
	return e.Err
}
