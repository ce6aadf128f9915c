// Package binary provides low-level positioned reads of VLSV payloads.
//
// A VLSV file is a flat sequence of raw arrays addressed by absolute byte
// offsets, so every read is an io.ReaderAt call at a known position. Readers
// never share a cursor: At returns an independent reader, which makes it safe
// to issue reads from several goroutines against one *os.File.
package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrShortRead is returned when fewer bytes than requested are available.
var ErrShortRead = errors.New("short read")

// Reader reads fixed-width values from an io.ReaderAt.
type Reader struct {
	r     io.ReaderAt
	order binary.ByteOrder
	pos   int64
}

// NewReader creates a reader positioned at offset 0.
func NewReader(r io.ReaderAt, order binary.ByteOrder) *Reader {
	if order == nil {
		order = binary.LittleEndian
	}
	return &Reader{
		r:     r,
		order: order,
	}
}

// At returns a new reader positioned at the given offset.
// The new reader shares the underlying io.ReaderAt but has independent position.
func (r *Reader) At(offset int64) *Reader {
	return &Reader{
		r:     r.r,
		order: r.order,
		pos:   offset,
	}
}

// WithOrder returns a reader at the same position using a different byte order.
func (r *Reader) WithOrder(order binary.ByteOrder) *Reader {
	return &Reader{
		r:     r.r,
		order: order,
		pos:   r.pos,
	}
}

// ReadAt fills dst from the given absolute offset. A partial read is an
// error wrapping ErrShortRead; it never returns truncated data.
func (r *Reader) ReadAt(dst []byte, offset int64) error {
	if len(dst) == 0 {
		return nil
	}
	n, err := r.r.ReadAt(dst, offset)
	if n == len(dst) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: got %d of %d bytes at offset %d", ErrShortRead, n, len(dst), offset)
	}
	return fmt.Errorf("reading %d bytes at offset %d: %w", len(dst), offset, err)
}

// ReadBytes reads exactly n bytes from the current position.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if err := r.ReadAt(buf, r.pos); err != nil {
		return nil, err
	}
	r.pos += int64(n)
	return buf, nil
}

// ReadUint8 reads an unsigned 8-bit integer.
func (r *Reader) ReadUint8() (uint8, error) {
	buf, err := r.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadUint64 reads an unsigned 64-bit integer.
func (r *Reader) ReadUint64() (uint64, error) {
	buf, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(buf), nil
}

// Run is a contiguous byte range [Offset, Offset+Length).
type Run struct {
	Offset int64
	Length int64
}

// Coalesce merges runs that touch or overlap. The input must be sorted by
// offset; the result is a new slice.
func Coalesce(runs []Run) []Run {
	if len(runs) == 0 {
		return nil
	}
	out := make([]Run, 0, len(runs))
	cur := runs[0]
	for _, next := range runs[1:] {
		if next.Offset <= cur.Offset+cur.Length {
			if end := next.Offset + next.Length; end > cur.Offset+cur.Length {
				cur.Length = end - cur.Offset
			}
			continue
		}
		out = append(out, cur)
		cur = next
	}
	return append(out, cur)
}
