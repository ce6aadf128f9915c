package binary

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bufferAt is a growable io.WriterAt.
type bufferAt struct {
	buf []byte
}

func (b *bufferAt) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(b.buf) {
		b.buf = append(b.buf, make([]byte, end-len(b.buf))...)
	}
	copy(b.buf[off:], p)
	return len(p), nil
}

func TestWriterHeaderLayout(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		t.Run(order.String(), func(t *testing.T) {
			out := &bufferAt{}
			w := NewWriter(out, order)
			require.NoError(t, w.WriteUint8(1))
			require.NoError(t, w.WriteZeros(7))
			require.NoError(t, w.WriteUint64(0x0102030405060708))
			assert.Equal(t, int64(16), w.Pos())
			assert.Equal(t, header(1, order, 0x0102030405060708), out.buf)
		})
	}
}

func TestWriterAt(t *testing.T) {
	out := &bufferAt{}
	w := NewWriter(out, nil)

	w2 := w.At(8)
	require.NoError(t, w2.WriteUint8(0xAA))
	assert.Equal(t, int64(0), w.Pos())
	assert.Equal(t, int64(9), w2.Pos())
	assert.Equal(t, byte(0xAA), out.buf[8])

	require.NoError(t, w.WriteZeros(0))
	require.NoError(t, w.WriteBytes(nil))
	assert.Equal(t, int64(0), w.Pos())
}

func TestWriteValues(t *testing.T) {
	out := &bufferAt{}
	w := NewWriter(out, binary.BigEndian).At(16)

	require.NoError(t, w.WriteValues([]float64{1.5, -2}))
	require.NoError(t, w.WriteValues([]uint32{7}))
	assert.Equal(t, int64(36), w.Pos())

	r := NewReader(bytes.NewReader(out.buf), binary.BigEndian).At(16)
	raw, err := r.ReadBytes(20)
	require.NoError(t, err)
	assert.Equal(t, 1.5, math.Float64frombits(binary.BigEndian.Uint64(raw)))
	assert.Equal(t, -2.0, math.Float64frombits(binary.BigEndian.Uint64(raw[8:])))
	assert.Equal(t, uint32(7), binary.BigEndian.Uint32(raw[16:]))

	assert.Error(t, w.WriteValues([]string{"x"}))
}
