package recorder

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"main/internal/schema"
)

// Reader iterates the records of one segment file.
type Reader struct {
	file            *os.File
	buf             *bufio.Reader
	disableChecksum bool
	maxPayloadSize  int

	head    [recordHeaderSize]byte
	payload []byte
}

// OpenReader opens a segment for sequential reading.
func OpenReader(path string, disableChecksum bool, maxPayloadSize int) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file:            f,
		buf:             bufio.NewReader(f),
		disableChecksum: disableChecksum,
		maxPayloadSize:  maxPayloadSize,
	}, nil
}

// Next returns the next record. It returns io.EOF at the clean end of
// the segment. The payload slice is reused between calls.
func (r *Reader) Next() (schema.EventHeader, []byte, error) {
	if _, err := io.ReadFull(r.buf, r.head[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return schema.EventHeader{}, nil, err
	}
	header, payloadLen, err := decodeRecordHeader(r.head[:])
	if err != nil {
		return schema.EventHeader{}, nil, err
	}
	if r.maxPayloadSize > 0 && int(payloadLen) > r.maxPayloadSize {
		return schema.EventHeader{}, nil, ErrPayloadTooLarge
	}
	if cap(r.payload) < int(payloadLen) {
		r.payload = make([]byte, payloadLen)
	}
	r.payload = r.payload[:payloadLen]
	if _, err := io.ReadFull(r.buf, r.payload); err != nil {
		return schema.EventHeader{}, nil, err
	}

	var tail [recordChecksumSize]byte
	if _, err := io.ReadFull(r.buf, tail[:]); err != nil {
		return schema.EventHeader{}, nil, err
	}
	if !r.disableChecksum {
		if binary.LittleEndian.Uint32(tail[:]) != checksum(r.head[:], r.payload) {
			return schema.EventHeader{}, nil, ErrChecksumMismatch
		}
	}
	return header, r.payload, nil
}

// Close closes the segment file.
func (r *Reader) Close() error {
	return r.file.Close()
}
