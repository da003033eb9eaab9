package syncfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func manualOptions() Options {
	return Options{Policy: SyncManual, BufferSize: 4096}
}

func immediateOptions() Options {
	return Options{Policy: SyncImmediate, BufferSize: 4096}
}

func TestCreateFailsIfFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")

	f, err := Create(path, manualOptions())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := Create(path, manualOptions()); err == nil {
		t.Fatal("Create on existing path succeeded, want error")
	}
}

func TestOpenAppendsAtEndOfExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")

	f, err := Create(path, immediateOptions())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	fut, err := f.Append([]byte("abc"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	fut.Wait()
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f2, err := Open(path, immediateOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	fut2, err := f2.Append([]byte("def"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	fut2.Wait()
	if err := f2.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "abcdef" {
		t.Fatalf("file contents = %q, want %q", got, "abcdef")
	}
}

func TestSyncImmediateCompletesFutureSynchronously(t *testing.T) {
	dir := t.TempDir()
	f, err := Create(filepath.Join(dir, "f"), immediateOptions())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()

	fut, err := f.Append([]byte("x"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	select {
	case <-fut.Done():
	default:
		t.Fatal("Append future not settled immediately under SyncImmediate")
	}
}

func TestSyncManualRequiresExplicitFlush(t *testing.T) {
	dir := t.TempDir()
	f, err := Create(filepath.Join(dir, "f"), manualOptions())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()

	fut, err := f.Append([]byte("x"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	select {
	case <-fut.Done():
		t.Fatal("Append future settled before any Flush under SyncManual")
	default:
	}

	if err := f.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	select {
	case <-fut.Done():
	default:
		t.Fatal("Append future still unsettled after Flush")
	}
}

func TestCloseResolvesPendingFutures(t *testing.T) {
	dir := t.TempDir()
	f, err := Create(filepath.Join(dir, "f"), manualOptions())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	fut, err := f.Append([]byte("x"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-fut.Done():
	default:
		t.Fatal("Append future unsettled after Close")
	}
}

func TestAppendAfterCloseFails(t *testing.T) {
	dir := t.TempDir()
	f, err := Create(filepath.Join(dir, "f"), manualOptions())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := f.Append([]byte("x")); err != os.ErrClosed {
		t.Fatalf("Append after Close = %v, want os.ErrClosed", err)
	}
}

func TestSyncIntervalFlushesOnSchedule(t *testing.T) {
	dir := t.TempDir()
	f, err := Create(filepath.Join(dir, "f"), Options{
		Policy:       SyncInterval,
		SyncInterval: 10 * time.Millisecond,
		BufferSize:   4096,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()

	fut, err := f.Append([]byte("x"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	select {
	case <-fut.Done():
	case <-time.After(time.Second):
		t.Fatal("Append future never settled via the interval timer")
	}
}

func TestSizeReflectsFlushedBytes(t *testing.T) {
	dir := t.TempDir()
	f, err := Create(filepath.Join(dir, "f"), immediateOptions())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()

	if _, err := f.Append([]byte("hello")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	size, err := f.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 5 {
		t.Fatalf("Size() = %d, want 5", size)
	}
}
