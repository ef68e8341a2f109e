// Package buf contains endian-safe decoding and encoding helpers shared by
// every on-disk codec in this module. Every multi-byte integer in the store
// is little-endian, so that is all this package speaks.
package buf

import (
	"encoding/binary"
	"fmt"
)

// U16 reads a little-endian uint16 from b. Returns 0 when b is too short.
func U16(b []byte) uint16 {
	if len(b) < 2 {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// U32 reads a little-endian uint32 from b. Returns 0 when b is too short.
func U32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// U64 reads a little-endian uint64 from b. Returns 0 when b is too short.
func U64(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// PutU16 writes a little-endian uint16 into b[0:2].
func PutU16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }

// PutU32 writes a little-endian uint32 into b[0:4].
func PutU32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }

// PutU64 writes a little-endian uint64 into b[0:8].
func PutU64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }

// CheckedU16 reads a little-endian uint16 at off, bounds-checked.
func CheckedU16(b []byte, off int) (uint16, error) {
	s, err := Slice(b, off, 2)
	if err != nil {
		return 0, fmt.Errorf("buf: u16 at %d: %w", off, err)
	}
	return binary.LittleEndian.Uint16(s), nil
}

// CheckedU32 reads a little-endian uint32 at off, bounds-checked.
func CheckedU32(b []byte, off int) (uint32, error) {
	s, err := Slice(b, off, 4)
	if err != nil {
		return 0, fmt.Errorf("buf: u32 at %d: %w", off, err)
	}
	return binary.LittleEndian.Uint32(s), nil
}

// CheckedU64 reads a little-endian uint64 at off, bounds-checked.
func CheckedU64(b []byte, off int) (uint64, error) {
	s, err := Slice(b, off, 8)
	if err != nil {
		return 0, fmt.Errorf("buf: u64 at %d: %w", off, err)
	}
	return binary.LittleEndian.Uint64(s), nil
}

// CheckedBytes returns b[off:off+n], bounds-checked.
func CheckedBytes(b []byte, off, n int) ([]byte, error) {
	return Slice(b, off, n)
}
