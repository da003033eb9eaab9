package journal

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
}

// TestStartupDiscovery mirrors spec scenario 1 verbatim: a directory with a
// mix of writer files, checkpoint files, a temp file, and unrelated names.
func TestStartupDiscovery(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"test.901", "test.8000", "test.1", "test.5005",
		"test.read.client1", "test.read.client2",
		"test.read.client1~~",
		"test.readmenot",
		"test.read.",
	} {
		touch(t, filepath.Join(dir, name))
	}

	disc, err := discover(dir, "test")
	if err != nil {
		t.Fatalf("discover: %v", err)
	}

	wantWriters := []int64{1, 901, 5005, 8000}
	if len(disc.writerTimestamps) != len(wantWriters) {
		t.Fatalf("got %d writer files, want %d", len(disc.writerTimestamps), len(wantWriters))
	}
	for i, ts := range wantWriters {
		if disc.writerTimestamps[i] != ts {
			t.Errorf("writer[%d] = %d, want %d", i, disc.writerTimestamps[i], ts)
		}
	}

	gotReaders := map[string]bool{}
	for _, n := range disc.readerNames {
		gotReaders[n] = true
	}
	// test.read.client1~~ was erased as a temp file, not counted as a
	// reader; test.read. (the default) and test.readmenot are both present
	// in readerNames/ignored respectively per the classification rules —
	// "test.read." parses as reader name "" (the default), which is a
	// legitimate (if unusual) thing to find on disk alongside named
	// readers; journal.Open is what suppresses it per I2, not discover.
	if !gotReaders["client1"] || !gotReaders["client2"] {
		t.Fatalf("expected client1 and client2 among discovered readers, got %v", disc.readerNames)
	}

	if _, err := os.Stat(filepath.Join(dir, "test.read.client1~~")); !os.IsNotExist(err) {
		t.Error("expected temp file to be removed by discover")
	}
}
