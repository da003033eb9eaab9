package format

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Reader checkpoint record kinds.
const (
	ReaderRecordKindHead uint8 = 1 // ReadHead(id)
	ReaderRecordKindDone uint8 = 2 // ReadDone(ids[])
)

// ReadHeadRecord is "all ids <= ID are fully consumed".
type ReadHeadRecord struct {
	ID uint64
}

// ReadDoneRecord is "these ids above head are individually acknowledged".
type ReadDoneRecord struct {
	IDs []uint64
}

// Marshal encodes a ReadHead frame: [Length:4][Kind:1][ID:8][CRC32C:4].
func (r *ReadHeadRecord) Marshal() []byte {
	bodyLen := 1 + 8 + 4
	buf := make([]byte, 4+bodyLen)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(bodyLen))
	buf[4] = ReaderRecordKindHead
	binary.LittleEndian.PutUint64(buf[5:], r.ID)
	crc := ComputeCRC32C(buf[:13])
	binary.LittleEndian.PutUint32(buf[13:], crc)
	return buf
}

// Marshal encodes a ReadDone frame: [Length:4][Kind:1][Count:4][ID:8]*Count[CRC32C:4].
func (r *ReadDoneRecord) Marshal() []byte {
	bodyLen := 1 + 4 + 8*len(r.IDs) + 4
	buf := make([]byte, 4+bodyLen)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(bodyLen))
	off := 4
	buf[off] = ReaderRecordKindDone
	off++
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(r.IDs))) //nolint:gosec // G115: doneSet stays small per spec §4.B
	off += 4
	for _, id := range r.IDs {
		binary.LittleEndian.PutUint64(buf[off:], id)
		off += 8
	}
	crc := ComputeCRC32C(buf[:off])
	binary.LittleEndian.PutUint32(buf[off:], crc)
	return buf
}

// CheckpointRecord is the decoded union of ReadHead/ReadDone, tagged by Kind.
type CheckpointRecord struct {
	Kind uint8
	Head ReadHeadRecord
	Done ReadDoneRecord
}

// ReadNextCheckpoint reads and decodes the next checkpoint record from r.
// Error semantics mirror ReadNextPut: ErrEndOfFile at a clean boundary,
// ErrTornRecord for truncation/checksum failure.
func ReadNextCheckpoint(r io.Reader) (*CheckpointRecord, error) {
	body, err := readFrame(r)
	if err != nil {
		return nil, err
	}
	if len(body) < 1+4 {
		return nil, fmt.Errorf("%w: short checkpoint body", ErrTornRecord)
	}

	switch kind := body[0]; kind {
	case ReaderRecordKindHead:
		if len(body) != 1+8+4 {
			return nil, fmt.Errorf("%w: bad ReadHead length", ErrTornRecord)
		}
		id := binary.LittleEndian.Uint64(body[1:9])
		return &CheckpointRecord{Kind: kind, Head: ReadHeadRecord{ID: id}}, nil

	case ReaderRecordKindDone:
		count := binary.LittleEndian.Uint32(body[1:5])
		want := 1 + 4 + int(count)*8 + 4
		if want != len(body) {
			return nil, fmt.Errorf("%w: bad ReadDone length", ErrTornRecord)
		}
		ids := make([]uint64, count)
		off := 5
		for i := range ids {
			ids[i] = binary.LittleEndian.Uint64(body[off:])
			off += 8
		}
		return &CheckpointRecord{Kind: kind, Done: ReadDoneRecord{IDs: ids}}, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownRecordKind, kind)
	}
}
