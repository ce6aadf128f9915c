package dtype

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"
)

// Number is the set of element types Decode can produce.
type Number interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~int |
		~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint |
		~float32 | ~float64
}

// Decode converts n elements of type t from data into a new slice.
func Decode[T Number](t Type, order binary.ByteOrder, data []byte, n int) ([]T, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if n < 0 || n > len(data)/t.Size {
		return nil, fmt.Errorf("decoding %d %s values: have %d bytes", n, t, len(data))
	}
	out := make([]T, n)
	if err := DecodeInto(t, order, data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeInto converts len(out) elements of type t from data into out.
func DecodeInto[T Number](t Type, order binary.ByteOrder, data []byte, out []T) error {
	if err := t.Validate(); err != nil {
		return err
	}
	n := len(out)
	if n > len(data)/t.Size {
		return fmt.Errorf("decoding %d %s values: have %d bytes, need %d", n, t, len(data), n*t.Size)
	}
	if n == 0 {
		return nil
	}

	// Fast path: identical representation.
	if same[T](t) && IsNative(order) {
		dst := unsafe.Slice((*byte)(unsafe.Pointer(&out[0])), n*t.Size)
		copy(dst, data)
		return nil
	}

	size := t.Size
	switch t.Kind {
	case Float:
		if size == 4 {
			for i := range out {
				out[i] = T(math.Float32frombits(order.Uint32(data[i*4:])))
			}
		} else {
			for i := range out {
				out[i] = T(math.Float64frombits(order.Uint64(data[i*8:])))
			}
		}
	case Int:
		switch size {
		case 1:
			for i := range out {
				out[i] = T(int8(data[i]))
			}
		case 2:
			for i := range out {
				out[i] = T(int16(order.Uint16(data[i*2:])))
			}
		case 4:
			for i := range out {
				out[i] = T(int32(order.Uint32(data[i*4:])))
			}
		case 8:
			for i := range out {
				out[i] = T(int64(order.Uint64(data[i*8:])))
			}
		}
	case Uint:
		switch size {
		case 1:
			for i := range out {
				out[i] = T(data[i])
			}
		case 2:
			for i := range out {
				out[i] = T(order.Uint16(data[i*2:]))
			}
		case 4:
			for i := range out {
				out[i] = T(order.Uint32(data[i*4:]))
			}
		case 8:
			for i := range out {
				out[i] = T(order.Uint64(data[i*8:]))
			}
		}
	}
	return nil
}

// DecodeAny decodes into dest, which must be a pointer to a slice of a
// Number type. The slice is replaced with a new one of n elements.
func DecodeAny(t Type, order binary.ByteOrder, data []byte, n int, dest any) error {
	var err error
	switch d := dest.(type) {
	case *[]float64:
		*d, err = Decode[float64](t, order, data, n)
	case *[]float32:
		*d, err = Decode[float32](t, order, data, n)
	case *[]int64:
		*d, err = Decode[int64](t, order, data, n)
	case *[]int32:
		*d, err = Decode[int32](t, order, data, n)
	case *[]int:
		*d, err = Decode[int](t, order, data, n)
	case *[]uint64:
		*d, err = Decode[uint64](t, order, data, n)
	case *[]uint32:
		*d, err = Decode[uint32](t, order, data, n)
	case *[]uint:
		*d, err = Decode[uint](t, order, data, n)
	case *[]uint8:
		*d, err = Decode[uint8](t, order, data, n)
	default:
		return fmt.Errorf("unsupported destination %T", dest)
	}
	return err
}

// same reports whether T has exactly the in-memory representation of t.
func same[T Number](t Type) bool {
	var zero T
	if int(unsafe.Sizeof(zero)) != t.Size {
		return false
	}
	switch any(zero).(type) {
	case float32, float64:
		return t.Kind == Float
	case int8, int16, int32, int64, int:
		return t.Kind == Int
	case uint8, uint16, uint32, uint64, uint:
		return t.Kind == Uint
	}
	return false
}
