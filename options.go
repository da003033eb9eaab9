package fanoutq

import (
	"time"

	"github.com/vnykmshr/fanoutq/internal/journal"
	"github.com/vnykmshr/fanoutq/internal/logging"
	"github.com/vnykmshr/fanoutq/internal/metrics"
	"github.com/vnykmshr/fanoutq/internal/syncfile"
)

// DefaultMaxFileSize is the writer-file rotation threshold.
const DefaultMaxFileSize = journal.DefaultMaxFileSize

// MetricsCollector is the interface Options.MetricsCollector accepts.
// *metrics.Collector (Prometheus-backed) and metrics.NoopCollector both
// satisfy it; callers may also supply their own, which keeps Prometheus
// out of this package's exported API surface.
type MetricsCollector interface {
	RecordPut(payloadBytes int)
	SetJournalBytes(n int64)
	RecordGet(reader string)
	SetQueueSize(reader string, n int)
	SetOpenReadCount(reader string, n int)
}

// NewMetricsCollector creates a Prometheus-backed MetricsCollector for a
// queue named queueName, ready to pass as Options.MetricsCollector and to
// register with a scrape registry.
func NewMetricsCollector(queueName string) *metrics.Collector {
	return metrics.NewCollector(queueName)
}

// Options configures a Queue.
type Options struct {
	// MaxFileSize is the writer-file rotation threshold; 0 selects
	// DefaultMaxFileSize.
	MaxFileSize int64

	// AutoSync fsyncs the active writer file after every Put. When false,
	// durability syncs run on SyncInterval instead.
	AutoSync bool

	// SyncInterval is the durability-sync cadence when AutoSync is false.
	// Default: 1 second.
	SyncInterval time.Duration

	// CheckpointInterval, if nonzero, runs Checkpoint on a background
	// schedule in addition to any explicit caller-driven checkpoints.
	// Default: 0 (disabled; the caller checkpoints explicitly).
	CheckpointInterval time.Duration

	// Clock is the time source for record timestamps and writer-file
	// naming. Defaults to SystemClock. Tests inject a FrozenClock.
	Clock Clock

	// Logger receives structured diagnostics for recovery, reclamation,
	// and background-checkpoint failures. Defaults to a no-op logger.
	Logger logging.Logger

	// MetricsCollector receives put/get/queue-size/journal-bytes/
	// open-read-count counters. Defaults to a no-op collector.
	MetricsCollector MetricsCollector
}

// DefaultOptions returns sensible production defaults.
func DefaultOptions() *Options {
	return &Options{
		MaxFileSize:        DefaultMaxFileSize,
		AutoSync:           false,
		SyncInterval:       time.Second,
		CheckpointInterval: 0,
		Clock:              SystemClock{},
		Logger:             logging.NoopLogger{},
		MetricsCollector:   metrics.NoopCollector{},
	}
}

func (o *Options) withDefaults() *Options {
	out := *DefaultOptions()
	if o == nil {
		return &out
	}
	out = *o
	if out.MaxFileSize <= 0 {
		out.MaxFileSize = DefaultMaxFileSize
	}
	if out.SyncInterval <= 0 {
		out.SyncInterval = time.Second
	}
	if out.Clock == nil {
		out.Clock = SystemClock{}
	}
	if out.Logger == nil {
		out.Logger = logging.NoopLogger{}
	}
	if out.MetricsCollector == nil {
		out.MetricsCollector = metrics.NoopCollector{}
	}
	return &out
}

func (o *Options) syncPolicy() syncfile.SyncPolicy {
	if o.AutoSync {
		return syncfile.SyncImmediate
	}
	return syncfile.SyncInterval
}

func (o *Options) journalOptions(queueName string) journal.Options {
	return journal.Options{
		MaxFileSize: o.MaxFileSize,
		SyncOptions: syncfile.Options{
			Policy:       o.syncPolicy(),
			SyncInterval: o.SyncInterval,
			BufferSize:   64 * 1024,
		},
		Clock:  o.Clock,
		Logger: o.Logger.With(logging.F("queue", queueName)),
	}
}
