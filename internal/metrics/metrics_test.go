package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorRegistersAndCollects(t *testing.T) {
	c := NewCollector("orders")
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}

	c.RecordPut(100)
	c.RecordPut(50)
	c.SetJournalBytes(4096)
	c.RecordGet("client1")
	c.SetQueueSize("client1", 3)
	c.SetOpenReadCount("client1", 1)

	if got := testutil.ToFloat64(c.putTotal); got != 2 {
		t.Errorf("put_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.putBytes); got != 150 {
		t.Errorf("put_bytes_total = %v, want 150", got)
	}
	if got := testutil.ToFloat64(c.journalBytes); got != 4096 {
		t.Errorf("journal_bytes = %v, want 4096", got)
	}
}

func TestDefaultReaderNameIsLabeled(t *testing.T) {
	c := NewCollector("orders")
	c.RecordGet("")
	if got := testutil.ToFloat64(c.getCounter("")); got != 1 {
		t.Errorf("default reader get_total = %v, want 1", got)
	}
}

func TestNoopCollectorDoesNothing(t *testing.T) {
	var c NoopCollector
	c.RecordPut(10)
	c.SetJournalBytes(10)
	c.RecordGet("x")
	c.SetQueueSize("x", 1)
	c.SetOpenReadCount("x", 1)
}
