package hpos

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/motionlab/handrec/internal/domain"
)

// Writer appends frame chunks to a recording file. Appends are
// single-writer, owned exclusively by the consumer goroutine; the row
// and chunk counters are atomic so other goroutines can observe
// progress while a session is live.
type Writer struct {
	f      *os.File
	path   string
	rows   atomic.Uint64
	chunks atomic.Uint64
	closed bool
}

// Create opens path for writing and persists the file header, so even
// a session that records zero events leaves a well-formed file.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}

	hdr := make([]byte, fileHeaderSize)
	copy(hdr, magic)
	binary.LittleEndian.PutUint16(hdr[4:], version)
	if _, err := f.Write(hdr); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, fmt.Errorf("sync header: %w", err)
	}

	return &Writer{f: f, path: path}, nil
}

// AppendChunk durably appends recs as one self-contained chunk: a
// single contiguous write followed by fsync. On error the file is left
// with all previously appended chunks intact; a partially written
// trailing chunk is detected and excluded by the reader.
// A nil or empty slice is a no-op.
func (w *Writer) AppendChunk(recs []domain.FrameRecord) error {
	if len(recs) == 0 {
		return nil
	}

	payload := encodeChunk(recs)
	buf := make([]byte, chunkHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:], uint32(len(recs)))
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(buf[8:], chunkChecksum(payload))
	copy(buf[chunkHeaderSize:], payload)

	if _, err := w.f.Write(buf); err != nil {
		return fmt.Errorf("%w: append chunk: %v", domain.ErrWriteFailed, err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("%w: sync chunk: %v", domain.ErrWriteFailed, err)
	}

	w.rows.Add(uint64(len(recs)))
	w.chunks.Add(1)
	return nil
}

// Rows returns the number of records appended so far.
func (w *Writer) Rows() uint64 { return w.rows.Load() }

// Chunks returns the number of chunks appended so far.
func (w *Writer) Chunks() uint64 { return w.chunks.Load() }

// Path returns the file path being written.
func (w *Writer) Path() string { return w.path }

// Close syncs and releases the file. Safe to call twice.
// There is no trailer: the chunk framing makes the file self-delimiting.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return fmt.Errorf("%w: sync on close: %v", domain.ErrWriteFailed, err)
	}
	return w.f.Close()
}
