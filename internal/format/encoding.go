package format

import "encoding/binary"

// Binary encoding utilities for descriptor words.
//
// Descriptors are stored little-endian regardless of the host so that a heap
// image is portable between the slice-backed and the reserved breaker.
// encoding/binary is inlined by the compiler and needs no unsafe.

// PutU64 writes a uint64 value to the buffer at the specified offset in little-endian format.
func PutU64(b []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(b[off:off+8], v)
}

// ReadU64 reads a uint64 value from the buffer at the specified offset in little-endian format.
func ReadU64(b []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(b[off : off+8])
}
