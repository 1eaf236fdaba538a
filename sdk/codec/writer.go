package codec

import (
	"encoding/binary"
	"math"
)

// Writer serializes account payloads in the same field order the Reader
// expects them back in. Encoding always emits every field the current schema
// declares; growing the schema is an append, never a reorder.
type Writer struct {
	buf []byte
}

// NewWriter creates an empty Writer, optionally pre-sizing its buffer.
func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the serialized payload.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) WriteU8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteU8(1)
	} else {
		w.WriteU8(0)
	}
}

func (w *Writer) WriteU16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteF64(v float64) { w.WriteU64(math.Float64bits(v)) }

func (w *Writer) WritePubkey(v [32]byte) { w.buf = append(w.buf, v[:]...) }

func (w *Writer) WriteIPv4(v [4]byte) { w.buf = append(w.buf, v[:]...) }

func (w *Writer) WriteNetworkV4(v [5]byte) { w.buf = append(w.buf, v[:]...) }

func (w *Writer) WriteString(v string) {
	w.WriteU32(uint32(len(v)))
	w.buf = append(w.buf, v...)
}

func (w *Writer) WriteBytes(v []byte) { w.buf = append(w.buf, v...) }

func (w *Writer) WritePubkeySlice(v [][32]byte) {
	w.WriteU32(uint32(len(v)))
	for _, p := range v {
		w.WritePubkey(p)
	}
}

func (w *Writer) WriteNetworkV4Slice(v [][5]byte) {
	w.WriteU32(uint32(len(v)))
	for _, n := range v {
		w.WriteNetworkV4(n)
	}
}

func (w *Writer) WriteU32Slice(v []uint32) {
	w.WriteU32(uint32(len(v)))
	for _, n := range v {
		w.WriteU32(n)
	}
}
