package journal

import (
	"time"

	"github.com/vnykmshr/fanoutq/internal/logging"
	"github.com/vnykmshr/fanoutq/internal/syncfile"
)

// Clock is an injectable wall-clock source, duplicated from the root package's Clock interface rather
// than imported, for the same reason Item is duplicated rather than reused.
type Clock interface {
	NowMs() int64
}

type systemClock struct{}

func (systemClock) NowMs() int64 { return time.Now().UnixMilli() }

// DefaultMaxFileSize is the writer-file rotation threshold.
const DefaultMaxFileSize = 16 * 1024 * 1024

// Options configures a Journal.
type Options struct {
	// MaxFileSize is the rotation threshold; 0 selects DefaultMaxFileSize.
	MaxFileSize int64
	// SyncOptions configures the durability cadence of writer files.
	SyncOptions syncfile.Options
	// Clock is the time source for writer-file naming; record timestamps
	// are supplied by the caller of Put. Defaults to the system clock.
	Clock Clock
	// Logger receives recovery and reclamation diagnostics (torn-tail
	// truncation, interior corruption, file reclaim). Defaults to a no-op
	// logger.
	Logger logging.Logger
}

// DefaultOptions returns sensible production defaults.
func DefaultOptions() Options {
	return Options{
		MaxFileSize: DefaultMaxFileSize,
		SyncOptions: syncfile.DefaultOptions(),
		Clock:       systemClock{},
		Logger:      logging.NoopLogger{},
	}
}

func (o Options) withDefaults() Options {
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if o.Clock == nil {
		o.Clock = systemClock{}
	}
	if o.SyncOptions.BufferSize <= 0 {
		o.SyncOptions = syncfile.DefaultOptions()
	}
	if o.Logger == nil {
		o.Logger = logging.NoopLogger{}
	}
	return o
}
