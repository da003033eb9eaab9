// Package metrics exposes queue counters as Prometheus metrics.
//
// A Collector is a prometheus.Collector: callers register it with whatever
// registry their (out-of-scope) admin server uses, and never need to poll
// it directly. The five counters named in spec §6 — put-count, get-count,
// queue-size, journal-bytes, and open-read-count — are all present, plus a
// per-reader breakdown via labels, since a single queue fans out to many
// independently-advancing readers.
//
// Per-reader metrics are created lazily as readers are seen, so Describe
// intentionally emits nothing: this is an "unchecked" Prometheus collector,
// the documented escape hatch for a label set that isn't known up front.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector tracks one queue's operation counts and gauges, and presents
// them to Prometheus on scrape.
type Collector struct {
	queueName string

	putTotal     prometheus.Counter
	putBytes     prometheus.Counter
	journalBytes prometheus.Gauge

	mu             sync.Mutex
	readerGetTotal map[string]prometheus.Counter
	readerQueueLen map[string]prometheus.Gauge
	readerOpenLen  map[string]prometheus.Gauge
}

// NewCollector creates a Collector for a queue named queueName. It
// implements prometheus.Collector, so register it directly:
// prometheus.MustRegister(collector).
func NewCollector(queueName string) *Collector {
	return &Collector{
		queueName: queueName,
		putTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "fanoutq",
			Name:        "put_total",
			Help:        "Total number of items successfully put.",
			ConstLabels: prometheus.Labels{"queue": queueName},
		}),
		putBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "fanoutq",
			Name:        "put_bytes_total",
			Help:        "Total payload bytes successfully put.",
			ConstLabels: prometheus.Labels{"queue": queueName},
		}),
		journalBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "fanoutq",
			Name:        "journal_bytes",
			Help:        "Total payload bytes currently retained across writer files.",
			ConstLabels: prometheus.Labels{"queue": queueName},
		}),
		readerGetTotal: make(map[string]prometheus.Counter),
		readerQueueLen: make(map[string]prometheus.Gauge),
		readerOpenLen:  make(map[string]prometheus.Gauge),
	}
}

// RecordPut records one successful put of payloadBytes bytes.
func (c *Collector) RecordPut(payloadBytes int) {
	c.putTotal.Inc()
	c.putBytes.Add(float64(payloadBytes))
}

// SetJournalBytes updates the total payload bytes currently retained.
func (c *Collector) SetJournalBytes(n int64) {
	c.journalBytes.Set(float64(n))
}

func (c *Collector) readerName(reader string) string {
	if reader == "" {
		return "<default>"
	}
	return reader
}

func (c *Collector) getCounter(reader string) prometheus.Counter {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := c.readerName(reader)
	if ctr, ok := c.readerGetTotal[name]; ok {
		return ctr
	}
	ctr := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "fanoutq",
		Name:        "get_total",
		Help:        "Total number of items delivered via get, per reader.",
		ConstLabels: prometheus.Labels{"queue": c.queueName, "reader": name},
	})
	c.readerGetTotal[name] = ctr
	return ctr
}

func (c *Collector) queueSizeGauge(reader string) prometheus.Gauge {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := c.readerName(reader)
	if g, ok := c.readerQueueLen[name]; ok {
		return g
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "fanoutq",
		Name:        "queue_size",
		Help:        "Items not yet delivered to this reader.",
		ConstLabels: prometheus.Labels{"queue": c.queueName, "reader": name},
	})
	c.readerQueueLen[name] = g
	return g
}

func (c *Collector) openReadGauge(reader string) prometheus.Gauge {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := c.readerName(reader)
	if g, ok := c.readerOpenLen[name]; ok {
		return g
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "fanoutq",
		Name:        "open_read_count",
		Help:        "Items delivered to this reader but not yet committed or aborted.",
		ConstLabels: prometheus.Labels{"queue": c.queueName, "reader": name},
	})
	c.readerOpenLen[name] = g
	return g
}

// RecordGet records one successful delivery to reader.
func (c *Collector) RecordGet(reader string) {
	c.getCounter(reader).Inc()
}

// SetQueueSize updates the number of items not yet delivered to reader.
func (c *Collector) SetQueueSize(reader string, n int) {
	c.queueSizeGauge(reader).Set(float64(n))
}

// SetOpenReadCount updates the number of items delivered to reader but not
// yet committed or aborted.
func (c *Collector) SetOpenReadCount(reader string, n int) {
	c.openReadGauge(reader).Set(float64(n))
}

// Describe implements prometheus.Collector. It intentionally emits nothing:
// the per-reader metric set is not known until readers are created, so this
// collector relies on Prometheus's "unchecked collector" allowance.
func (c *Collector) Describe(chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- c.putTotal
	ch <- c.putBytes
	ch <- c.journalBytes

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ctr := range c.readerGetTotal {
		ch <- ctr
	}
	for _, g := range c.readerQueueLen {
		ch <- g
	}
	for _, g := range c.readerOpenLen {
		ch <- g
	}
}

// NoopCollector discards everything; used when metrics are disabled.
type NoopCollector struct{}

func (NoopCollector) RecordPut(int)               {}
func (NoopCollector) SetJournalBytes(int64)        {}
func (NoopCollector) RecordGet(string)             {}
func (NoopCollector) SetQueueSize(string, int)     {}
func (NoopCollector) SetOpenReadCount(string, int) {}
