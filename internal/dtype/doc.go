// Package dtype describes VLSV element types and decodes raw payload bytes
// into Go slices.
//
// VLSV footers describe every array with a datatype class and an element
// size in bytes:
//
//	datatype | datasize | Go type
//	---------|----------|------------------
//	int      | 1,2,4,8  | int8..int64
//	uint     | 1,2,4,8  | uint8..uint64
//	float    | 4,8      | float32, float64
//
// # Decoding
//
// [Decode] converts raw bytes into any supported numeric slice, widening or
// narrowing values as Go conversions do:
//
//	values, err := dtype.Decode[float64](t, order, raw, n)
//
// When the stored type matches the destination exactly and the file byte
// order matches the platform, the bytes are copied directly without a
// per-element loop.
package dtype
