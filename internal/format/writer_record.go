package format

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Writer record kinds. Only Put exists today; any other byte read from disk
// is corruption, never a silently-ignored future kind.
const (
	WriterRecordKindPut uint8 = 1
)

// WriterHeaderSize is the fixed portion of a writer record, excluding the
// length prefix, the payload, and the trailing CRC:
// Kind(1) + ID(8) + AddTimeMs(8) + ExpireTimeMs(8) + PayloadLen(4) = 29 bytes.
const WriterHeaderSize = 1 + 8 + 8 + 8 + 4

// ErrEndOfFile is returned by ReadNext when the file ends exactly on a
// record boundary: the prior record was the last intact one.
var ErrEndOfFile = errors.New("format: end of file")

// ErrTornRecord is returned by ReadNext when the remaining bytes do not form
// a complete, checksum-valid record. The caller truncates to the last good
// offset; this is never returned for a cleanly terminated file.
var ErrTornRecord = errors.New("format: torn record")

// ErrUnknownRecordKind is returned when a record's kind byte is not one
// this codec understands. Unlike ErrTornRecord this is never "fix by
// truncating" — an unknown kind earlier in the file is the fatal/interior
// corruption case from spec §3 I5.
var ErrUnknownRecordKind = errors.New("format: unknown record kind")

// PutRecord is the on-disk representation of spec §3's "Writer record: Put(QueueItem)".
//
// Wire format (little-endian), per spec §6:
//
//	[Length:4][Kind:1][ID:8][AddTimeMs:8][ExpireTimeMs:8][PayloadLen:4][Payload:N][CRC32C:4]
//
// Length covers everything after itself (header + payload + CRC).
type PutRecord struct {
	ID           uint64
	AddTimeMs    int64
	ExpireTimeMs int64
	Payload      []byte
}

// Marshal encodes the record into a complete on-disk frame, ready to append.
func (p *PutRecord) Marshal() []byte {
	bodyLen := WriterHeaderSize + len(p.Payload) + 4
	buf := make([]byte, 4+bodyLen)

	binary.LittleEndian.PutUint32(buf[0:4], uint32(bodyLen)) //nolint:gosec // G115: payload bounded by journal.MaxFileSize

	off := 4
	buf[off] = WriterRecordKindPut
	off++
	binary.LittleEndian.PutUint64(buf[off:], p.ID)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(p.AddTimeMs))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(p.ExpireTimeMs))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(p.Payload))) //nolint:gosec // G115: payload bounded by journal.MaxFileSize
	off += 4
	copy(buf[off:], p.Payload)
	off += len(p.Payload)

	crc := ComputeCRC32C(buf[:off])
	binary.LittleEndian.PutUint32(buf[off:], crc)

	return buf
}

// UnmarshalPutRecord decodes a single frame's body (everything after the
// length prefix, length bytes long) previously validated for length and CRC
// by the caller (ReadNextPut, through readFrame).
func UnmarshalPutRecord(body []byte) (*PutRecord, error) {
	if len(body) < WriterHeaderSize+4 {
		return nil, fmt.Errorf("%w: short body (%d bytes)", ErrTornRecord, len(body))
	}
	kind := body[0]
	if kind != WriterRecordKindPut {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRecordKind, kind)
	}

	off := 1
	id := binary.LittleEndian.Uint64(body[off:])
	off += 8
	addTime := int64(binary.LittleEndian.Uint64(body[off:]))
	off += 8
	expireTime := int64(binary.LittleEndian.Uint64(body[off:]))
	off += 8
	payloadLen := binary.LittleEndian.Uint32(body[off:])
	off += 4

	wantLen := off + int(payloadLen) + 4
	if wantLen != len(body) {
		return nil, fmt.Errorf("%w: payload length mismatch", ErrTornRecord)
	}

	payload := make([]byte, payloadLen)
	copy(payload, body[off:off+int(payloadLen)])

	return &PutRecord{ID: id, AddTimeMs: addTime, ExpireTimeMs: expireTime, Payload: payload}, nil
}

// readFrame reads one length-prefixed, CRC-checked frame from r and returns
// its body (everything between the length prefix and the end of the CRC,
// CRC included). It distinguishes a clean EOF (no bytes read at all) from a
// torn frame (a partial length prefix or a short/corrupt body).
func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	n, err := io.ReadFull(r, lenBuf[:])
	if err != nil {
		if err == io.EOF && n == 0 {
			return nil, ErrEndOfFile
		}
		return nil, fmt.Errorf("%w: %v", ErrTornRecord, err)
	}

	bodyLen := binary.LittleEndian.Uint32(lenBuf[:])
	if bodyLen < 4 {
		return nil, fmt.Errorf("%w: implausible length %d", ErrTornRecord, bodyLen)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTornRecord, err)
	}

	storedCRC := binary.LittleEndian.Uint32(body[len(body)-4:])
	computed := ComputeCRC32C(append(lenBuf[:], body[:len(body)-4]...))
	if storedCRC != computed {
		return nil, fmt.Errorf("%w: crc mismatch", ErrTornRecord)
	}

	return body, nil
}

// ReadNextPut reads and decodes the next Put record from r.
// Returns ErrEndOfFile at a clean boundary, ErrTornRecord for any
// truncation or checksum failure, or ErrUnknownRecordKind for a kind byte
// this codec doesn't recognize (never reached today; Put is the only kind).
func ReadNextPut(r io.Reader) (*PutRecord, error) {
	body, err := readFrame(r)
	if err != nil {
		return nil, err
	}
	return UnmarshalPutRecord(body)
}
