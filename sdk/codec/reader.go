// Package codec implements the canonical binary encoding shared by every
// on-chain account payload: length-prefixed variable fields, little-endian
// scalars, and tagged enums.
//
// Decoding is forward-compatible by construction. Reader exposes two families
// of accessors: the strict Read* methods, which error when a field is
// genuinely truncated mid-value, and the TryRead* methods, which return a
// caller-supplied default when the cursor sits at end-of-buffer — the
// signature of a field added to the schema after this payload was written.
// TryRead* also returns the default when fewer bytes remain than the field
// needs, or when the field's strict read fails; it does not tell a clean
// end-of-buffer apart from a field cut short.
// The entity decoders in sdk/serviceability use the strict form for their
// original fields and TryRead* only for fields appended later.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Reader is a cursor-based reader over a Borsh-shaped binary payload.
type Reader struct {
	data   []byte
	offset int
}

// NewReader creates a Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Offset returns the current read position.
func (r *Reader) Offset() int { return r.offset }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.offset }

// readFixed advances the cursor past n bytes, every fixed-width Read*
// method's only source of bounds-checking, so truncation messages stay
// consistent across scalar, pubkey, and network-prefix reads alike.
func (r *Reader) readFixed(n int, kind string) ([]byte, error) {
	if r.offset+n > len(r.data) {
		return nil, fmt.Errorf("codec: not enough data for %s at offset %d", kind, r.offset)
	}
	v := r.data[r.offset : r.offset+n]
	r.offset += n
	return v, nil
}

// --- strict reads: error on truncated-mid-field data ---

func (r *Reader) ReadU8() (uint8, error) {
	v, err := r.readFixed(1, "u8")
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadU8()
	return v != 0, err
}

func (r *Reader) ReadU16() (uint16, error) {
	v, err := r.readFixed(2, "u16")
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(v), nil
}

func (r *Reader) ReadU32() (uint32, error) {
	v, err := r.readFixed(4, "u32")
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(v), nil
}

func (r *Reader) ReadU64() (uint64, error) {
	v, err := r.readFixed(8, "u64")
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(v), nil
}

func (r *Reader) ReadF64() (float64, error) {
	v, err := r.ReadU64()
	return math.Float64frombits(v), err
}

func (r *Reader) ReadPubkey() ([32]byte, error) {
	v, err := r.readFixed(32, "pubkey")
	if err != nil {
		return [32]byte{}, err
	}
	return [32]byte(v), nil
}

func (r *Reader) ReadIPv4() ([4]byte, error) {
	v, err := r.readFixed(4, "ipv4")
	if err != nil {
		return [4]byte{}, err
	}
	return [4]byte(v), nil
}

// ReadNetworkV4 reads an IPv4 prefix: 4 address bytes followed by a 1-byte
// prefix length.
func (r *Reader) ReadNetworkV4() ([5]byte, error) {
	v, err := r.readFixed(5, "network_v4")
	if err != nil {
		return [5]byte{}, err
	}
	return [5]byte(v), nil
}

func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	v, err := r.readFixed(int(n), fmt.Sprintf("string of length %d", n))
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (r *Reader) ReadBytes(n int) ([]byte, error) {
	v, err := r.readFixed(n, fmt.Sprintf("%d bytes", n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, v)
	return out, nil
}

func (r *Reader) ReadPubkeySlice() ([][32]byte, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if int(n)*32 > r.Remaining() {
		return nil, fmt.Errorf("codec: not enough data for %d pubkeys at offset %d", n, r.offset)
	}
	out := make([][32]byte, n)
	for i := range out {
		if out[i], err = r.ReadPubkey(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Reader) ReadNetworkV4Slice() ([][5]byte, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if int(n)*5 > r.Remaining() {
		return nil, fmt.Errorf("codec: not enough data for %d network_v4 at offset %d", n, r.offset)
	}
	out := make([][5]byte, n)
	for i := range out {
		if out[i], err = r.ReadNetworkV4(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Reader) ReadU32Slice() ([]uint32, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if int(n)*4 > r.Remaining() {
		return nil, fmt.Errorf("codec: not enough data for %d u32s at offset %d", n, r.offset)
	}
	out := make([]uint32, n)
	for i := range out {
		if out[i], err = r.ReadU32(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// --- try-reads: return a default at a clean end-of-buffer boundary ---

// tryRead is the one generic chokepoint every TryRead* method funnels
// through: if fewer than size bytes remain, the field was simply never
// written (an old account predating this field) and def comes back
// untouched; otherwise the strict reader runs and its error is swallowed,
// since a short read past a declared-present field is a schema bug, not a
// caller-facing concern.
func tryRead[T any](r *Reader, size int, def T, read func() (T, error)) T {
	if r.Remaining() < size {
		return def
	}
	v, err := read()
	if err != nil {
		return def
	}
	return v
}

func (r *Reader) TryReadU8(def uint8) uint8 { return tryRead(r, 1, def, r.ReadU8) }

func (r *Reader) TryReadBool(def bool) bool { return tryRead(r, 1, def, r.ReadBool) }

func (r *Reader) TryReadU16(def uint16) uint16 { return tryRead(r, 2, def, r.ReadU16) }

func (r *Reader) TryReadU32(def uint32) uint32 { return tryRead(r, 4, def, r.ReadU32) }

func (r *Reader) TryReadU64(def uint64) uint64 { return tryRead(r, 8, def, r.ReadU64) }

func (r *Reader) TryReadF64(def float64) float64 { return tryRead(r, 8, def, r.ReadF64) }

func (r *Reader) TryReadPubkey(def [32]byte) [32]byte { return tryRead(r, 32, def, r.ReadPubkey) }

func (r *Reader) TryReadIPv4(def [4]byte) [4]byte { return tryRead(r, 4, def, r.ReadIPv4) }

func (r *Reader) TryReadNetworkV4(def [5]byte) [5]byte {
	return tryRead(r, 5, def, r.ReadNetworkV4)
}

func (r *Reader) TryReadString(def string) string { return tryRead(r, 4, def, r.ReadString) }

func (r *Reader) TryReadPubkeySlice(def [][32]byte) [][32]byte {
	return tryRead(r, 4, def, r.ReadPubkeySlice)
}

func (r *Reader) TryReadNetworkV4Slice(def [][5]byte) [][5]byte {
	return tryRead(r, 4, def, r.ReadNetworkV4Slice)
}

func (r *Reader) TryReadU32Slice(def []uint32) []uint32 {
	return tryRead(r, 4, def, r.ReadU32Slice)
}
