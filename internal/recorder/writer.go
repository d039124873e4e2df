package recorder

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"main/internal/schema"
)

const (
	defaultFilePrefix   = "events"
	defaultMaxFileBytes = 64 << 20
)

// Config controls the event log writer.
type Config struct {
	Dir          string
	FilePrefix   string
	MaxFileBytes int64
	// SyncOnRotate fsyncs a segment before moving to the next one.
	SyncOnRotate bool
}

// DefaultConfig returns a writer config for the given directory.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:          dir,
		FilePrefix:   defaultFilePrefix,
		MaxFileBytes: defaultMaxFileBytes,
		SyncOnRotate: true,
	}
}

// Writer appends framed events to rotating segment files.
type Writer struct {
	cfg     Config
	file    *os.File
	buf     *bufio.Writer
	written int64
	segment int
	scratch [recordHeaderSize + recordChecksumSize]byte
}

// NewWriter creates the log directory and opens the first segment.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("log dir is empty")
	}
	if cfg.FilePrefix == "" {
		cfg.FilePrefix = defaultFilePrefix
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = defaultMaxFileBytes
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	w := &Writer{cfg: cfg}
	if err := w.rotate(); err != nil {
		return nil, err
	}
	return w, nil
}

// Append writes one event record.
func (w *Writer) Append(header schema.EventHeader, payload []byte) error {
	if w.file == nil {
		return fmt.Errorf("log writer is closed")
	}
	recordSize := int64(recordHeaderSize + len(payload) + recordChecksumSize)
	if w.written > 0 && w.written+recordSize > w.cfg.MaxFileBytes {
		if err := w.rotate(); err != nil {
			return err
		}
	}

	head := w.scratch[:recordHeaderSize]
	encodeRecordHeader(head, header, len(payload))
	if _, err := w.buf.Write(head); err != nil {
		return err
	}
	if _, err := w.buf.Write(payload); err != nil {
		return err
	}
	tail := w.scratch[recordHeaderSize:]
	binary.LittleEndian.PutUint32(tail, checksum(head, payload))
	if _, err := w.buf.Write(tail); err != nil {
		return err
	}
	w.written += recordSize
	return nil
}

func (w *Writer) rotate() error {
	if err := w.closeSegment(w.cfg.SyncOnRotate); err != nil {
		return err
	}
	w.segment++
	name := fmt.Sprintf("%s-%06d.log", w.cfg.FilePrefix, w.segment)
	f, err := os.OpenFile(filepath.Join(w.cfg.Dir, name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.buf = bufio.NewWriter(f)
	w.written = 0
	return nil
}

func (w *Writer) closeSegment(sync bool) error {
	if w.file == nil {
		return nil
	}
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if sync {
		if err := w.file.Sync(); err != nil {
			return err
		}
	}
	err := w.file.Close()
	w.file = nil
	w.buf = nil
	return err
}

// Close flushes and closes the current segment.
func (w *Writer) Close() error {
	return w.closeSegment(true)
}
