package dtype

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"
)

// ErrUnsupported is returned for datatype/size combinations VLSV never writes.
var ErrUnsupported = errors.New("unsupported datatype")

// Kind is the datatype class of a stored array.
type Kind uint8

const (
	Invalid Kind = iota
	Int
	Uint
	Float
)

// ParseKind parses the footer's datatype attribute.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "int":
		return Int, nil
	case "uint":
		return Uint, nil
	case "float":
		return Float, nil
	default:
		return Invalid, fmt.Errorf("%w: datatype %q", ErrUnsupported, s)
	}
}

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Uint:
		return "uint"
	case Float:
		return "float"
	default:
		return "invalid"
	}
}

// Type is a datatype class together with its element size in bytes.
type Type struct {
	Kind Kind
	Size int
}

var (
	Float32 = Type{Float, 4}
	Float64 = Type{Float, 8}
	Int32   = Type{Int, 4}
	Int64   = Type{Int, 8}
	Uint32  = Type{Uint, 4}
	Uint64  = Type{Uint, 8}
)

// Validate reports whether t can be decoded.
func (t Type) Validate() error {
	switch t.Kind {
	case Int, Uint:
		switch t.Size {
		case 1, 2, 4, 8:
			return nil
		}
	case Float:
		if t.Size == 4 || t.Size == 8 {
			return nil
		}
	}
	return fmt.Errorf("%w: %s with size %d", ErrUnsupported, t.Kind, t.Size)
}

// IsInteger reports whether t is an int or uint type.
func (t Type) IsInteger() bool {
	return t.Kind == Int || t.Kind == Uint
}

func (t Type) String() string {
	return fmt.Sprintf("%s%d", t.Kind, t.Size*8)
}

var nativeLittleEndian = func() bool {
	b := [2]byte{}
	*(*uint16)(unsafe.Pointer(&b[0])) = uint16(0x0001)
	return b[0] == 1
}()

// IsNative reports whether order matches the platform byte order.
func IsNative(order binary.ByteOrder) bool {
	var b [2]byte
	order.PutUint16(b[:], 1)
	return (b[0] == 1) == nativeLittleEndian
}
