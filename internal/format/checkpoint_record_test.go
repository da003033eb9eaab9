package format

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestReadHeadRoundTrip(t *testing.T) {
	rec := &ReadHeadRecord{ID: 12345}
	got, err := ReadNextCheckpoint(bytes.NewReader(rec.Marshal()))
	if err != nil {
		t.Fatalf("ReadNextCheckpoint: %v", err)
	}
	if got.Kind != ReaderRecordKindHead || got.Head.ID != rec.ID {
		t.Fatalf("got %+v, want Head.ID=%d", got, rec.ID)
	}
}

func TestReadDoneRoundTrip(t *testing.T) {
	rec := &ReadDoneRecord{IDs: []uint64{3, 1, 4, 1, 5}}
	got, err := ReadNextCheckpoint(bytes.NewReader(rec.Marshal()))
	if err != nil {
		t.Fatalf("ReadNextCheckpoint: %v", err)
	}
	if got.Kind != ReaderRecordKindDone || !reflect.DeepEqual(got.Done.IDs, rec.IDs) {
		t.Fatalf("got %+v, want Done.IDs=%v", got, rec.IDs)
	}
}

func TestReadDoneEmptyIDs(t *testing.T) {
	rec := &ReadDoneRecord{IDs: nil}
	got, err := ReadNextCheckpoint(bytes.NewReader(rec.Marshal()))
	if err != nil {
		t.Fatalf("ReadNextCheckpoint: %v", err)
	}
	if len(got.Done.IDs) != 0 {
		t.Fatalf("Done.IDs = %v, want empty", got.Done.IDs)
	}
}

// TestEffectiveStateIsLastHeadPlusLastDone mirrors spec §3: "the effective
// reader state is the last ReadHead in the file plus the last ReadDone."
func TestEffectiveStateIsLastHeadPlusLastDone(t *testing.T) {
	var buf bytes.Buffer
	buf.Write((&ReadHeadRecord{ID: 10}).Marshal())
	buf.Write((&ReadDoneRecord{IDs: []uint64{11}}).Marshal())
	buf.Write((&ReadHeadRecord{ID: 20}).Marshal())
	buf.Write((&ReadDoneRecord{IDs: []uint64{21, 22}}).Marshal())

	var lastHead uint64
	var lastDone []uint64
	r := bytes.NewReader(buf.Bytes())
	for {
		rec, err := ReadNextCheckpoint(r)
		if errors.Is(err, ErrEndOfFile) {
			break
		}
		if err != nil {
			t.Fatalf("ReadNextCheckpoint: %v", err)
		}
		switch rec.Kind {
		case ReaderRecordKindHead:
			lastHead = rec.Head.ID
		case ReaderRecordKindDone:
			lastDone = rec.Done.IDs
		}
	}

	if lastHead != 20 {
		t.Fatalf("lastHead = %d, want 20", lastHead)
	}
	if !reflect.DeepEqual(lastDone, []uint64{21, 22}) {
		t.Fatalf("lastDone = %v, want [21 22]", lastDone)
	}
}

func TestCheckpointTornTailAtEveryTruncationOffset(t *testing.T) {
	rec := &ReadDoneRecord{IDs: []uint64{100, 200, 300}}
	frame := rec.Marshal()
	for n := 0; n < len(frame); n++ {
		_, err := ReadNextCheckpoint(bytes.NewReader(frame[:n]))
		if n == 0 {
			// Nothing left at all is a clean record boundary, not a tear.
			if !errors.Is(err, ErrEndOfFile) {
				t.Fatalf("truncated to 0/%d bytes: err = %v, want ErrEndOfFile", len(frame), err)
			}
			continue
		}
		if !errors.Is(err, ErrTornRecord) {
			t.Fatalf("truncated to %d/%d bytes: err = %v, want ErrTornRecord", n, len(frame), err)
		}
	}
}
