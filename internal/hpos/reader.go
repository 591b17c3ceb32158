package hpos

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/motionlab/handrec/internal/domain"
)

// Reader consumes a recording file chunk by chunk. It can read a file
// incrementally while it grows or as a whole after finalization.
type Reader struct {
	f         *os.File
	br        *bufio.Reader
	truncated bool
}

// Open validates the file header and positions the reader at the first
// chunk. Returns domain.ErrBadFormat for a wrong magic or version.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	hdr := make([]byte, fileHeaderSize)
	if _, err := io.ReadFull(f, hdr); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: short header", domain.ErrBadFormat)
	}
	if string(hdr[:4]) != magic {
		f.Close()
		return nil, fmt.Errorf("%w: bad magic %q", domain.ErrBadFormat, hdr[:4])
	}
	if v := binary.LittleEndian.Uint16(hdr[4:]); v != version {
		f.Close()
		return nil, fmt.Errorf("%w: unsupported version %d", domain.ErrBadFormat, v)
	}

	return &Reader{f: f, br: bufio.NewReaderSize(f, 1<<16)}, nil
}

// NextChunk returns the records of the next complete chunk.
// io.EOF signals a clean end of file. domain.ErrTruncatedChunk signals
// an incomplete or corrupt trailing chunk (abrupt-kill tail); every
// chunk returned before it is intact.
func (r *Reader) NextChunk() ([]domain.FrameRecord, error) {
	hdr := make([]byte, chunkHeaderSize)
	if _, err := io.ReadFull(r.br, hdr); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		// Partial chunk header.
		r.truncated = true
		return nil, domain.ErrTruncatedChunk
	}

	count := binary.LittleEndian.Uint32(hdr[0:])
	payloadLen := binary.LittleEndian.Uint32(hdr[4:])
	sum := binary.LittleEndian.Uint32(hdr[8:])

	if count == 0 || count > maxChunkRecords || payloadLen != count*uint32(recordBytes) {
		r.truncated = true
		return nil, domain.ErrTruncatedChunk
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r.br, payload); err != nil {
		r.truncated = true
		return nil, domain.ErrTruncatedChunk
	}
	if chunkChecksum(payload) != sum {
		r.truncated = true
		return nil, domain.ErrTruncatedChunk
	}

	return decodeChunk(payload, int(count)), nil
}

// ReadAll returns every record from every complete chunk. A truncated
// tail is excluded rather than reported as an error; check Truncated()
// to distinguish a clean finalization from an abrupt kill.
func (r *Reader) ReadAll() ([]domain.FrameRecord, error) {
	var recs []domain.FrameRecord
	for {
		chunk, err := r.NextChunk()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, domain.ErrTruncatedChunk) {
				return recs, nil
			}
			return recs, err
		}
		recs = append(recs, chunk...)
	}
}

// Truncated reports whether an incomplete trailing chunk was seen.
func (r *Reader) Truncated() bool { return r.truncated }

// Close releases the file.
func (r *Reader) Close() error { return r.f.Close() }
