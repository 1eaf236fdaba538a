package codec

import "testing"

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter(0)
	w.WriteU8(7)
	w.WriteBool(true)
	w.WriteU16(1234)
	w.WriteU32(567890)
	w.WriteU64(1 << 40)
	w.WriteF64(3.5)
	w.WritePubkey([32]byte{1, 2, 3})
	w.WriteIPv4([4]byte{10, 0, 0, 1})
	w.WriteNetworkV4([5]byte{10, 0, 0, 0, 24})
	w.WriteString("nyc-01")
	w.WritePubkeySlice([][32]byte{{9}, {8}})
	w.WriteNetworkV4Slice([][5]byte{{1, 1, 1, 1, 32}})
	w.WriteU32Slice([]uint32{1, 2, 3})

	r := NewReader(w.Bytes())
	if v, _ := r.ReadU8(); v != 7 {
		t.Fatalf("u8: got %d", v)
	}
	if v, _ := r.ReadBool(); !v {
		t.Fatalf("bool: got %v", v)
	}
	if v, _ := r.ReadU16(); v != 1234 {
		t.Fatalf("u16: got %d", v)
	}
	if v, _ := r.ReadU32(); v != 567890 {
		t.Fatalf("u32: got %d", v)
	}
	if v, _ := r.ReadU64(); v != 1<<40 {
		t.Fatalf("u64: got %d", v)
	}
	if v, _ := r.ReadF64(); v != 3.5 {
		t.Fatalf("f64: got %v", v)
	}
	if v, _ := r.ReadPubkey(); v != ([32]byte{1, 2, 3}) {
		t.Fatalf("pubkey: got %v", v)
	}
	if v, _ := r.ReadIPv4(); v != ([4]byte{10, 0, 0, 1}) {
		t.Fatalf("ipv4: got %v", v)
	}
	if v, _ := r.ReadNetworkV4(); v != ([5]byte{10, 0, 0, 0, 24}) {
		t.Fatalf("network_v4: got %v", v)
	}
	if v, _ := r.ReadString(); v != "nyc-01" {
		t.Fatalf("string: got %q", v)
	}
	if v, _ := r.ReadPubkeySlice(); len(v) != 2 || v[0][0] != 9 {
		t.Fatalf("pubkey slice: got %v", v)
	}
	if v, _ := r.ReadNetworkV4Slice(); len(v) != 1 {
		t.Fatalf("network_v4 slice: got %v", v)
	}
	if v, _ := r.ReadU32Slice(); len(v) != 3 || v[2] != 3 {
		t.Fatalf("u32 slice: got %v", v)
	}
	if r.Remaining() != 0 {
		t.Fatalf("expected fully consumed, %d bytes remaining", r.Remaining())
	}
}

func TestTryReadDefaultsOnTruncatedTrailer(t *testing.T) {
	w := NewWriter(0)
	w.WriteU8(1)
	w.WriteU32(42)
	// Simulate an older schema: no trailing fields written.

	r := NewReader(w.Bytes())
	if v, _ := r.ReadU8(); v != 1 {
		t.Fatalf("u8: got %d", v)
	}
	if v, _ := r.ReadU32(); v != 42 {
		t.Fatalf("u32: got %d", v)
	}
	// Every trailing accessor should now default cleanly, not error.
	if v := r.TryReadU64(99); v != 99 {
		t.Fatalf("expected default 99, got %d", v)
	}
	if v := r.TryReadString("fallback"); v != "fallback" {
		t.Fatalf("expected default string, got %q", v)
	}
	if v := r.TryReadPubkeySlice(nil); v != nil {
		t.Fatalf("expected nil default, got %v", v)
	}
}

func TestReadStrictErrorsOnMidFieldTruncation(t *testing.T) {
	// A u32 length prefix claiming 10 bytes of string data but only 2 supplied.
	w := NewWriter(0)
	w.WriteU32(10)
	w.WriteBytes([]byte{'h', 'i'})

	r := NewReader(w.Bytes())
	if _, err := r.ReadString(); err == nil {
		t.Fatal("expected error for truncated string body")
	}
}
