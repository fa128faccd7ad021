// Package native defines the value and type model shared by every lowering
// stage and execution backend.
//
// There are three base kinds: 32-bit signed integers, 32-bit IEEE-754 floats
// and one-byte booleans. Array types add an ordered list of dimensions, each
// with a length and a ProxyMode describing how it takes part in broadcasts.
//
// Binary encoding is fixed-width little-endian:
//
//	b8  -> 1 byte, 0 or 1
//	i32 -> 4 bytes, two's complement
//	f32 -> 4 bytes, IEEE-754
//	array -> element encodings concatenated in row-major order
package native
