package serviceability

import (
	"testing"

	"github.com/malbeclabs/doublezero-sub006/sdk/codec"
)

func TestIDAllocatorAssignExhaustUnassign(t *testing.T) {
	a := NewIDAllocator(10, 13)

	got, err := a.Allocate()
	if err != nil || got != 10 {
		t.Fatalf("first allocate: got %d, err %v", got, err)
	}
	got, err = a.Allocate()
	if err != nil || got != 11 {
		t.Fatalf("second allocate: got %d, err %v", got, err)
	}
	got, err = a.Allocate()
	if err != nil || got != 12 {
		t.Fatalf("third allocate: got %d, err %v", got, err)
	}
	if _, err := a.Allocate(); err == nil {
		t.Fatal("expected exhaustion error")
	}

	if err := a.Unassign(11); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if err := a.Unassign(11); err != nil {
		t.Fatalf("unassign is idempotent, re-unassigning a free id must not error: %v", err)
	}
	next, ok := a.NextAvailable()
	if !ok || next != 11 {
		t.Fatalf("expected 11 free again, got %d ok=%v", next, ok)
	}
}

func TestIDAllocatorAssignConflict(t *testing.T) {
	a := NewIDAllocator(0, 4)
	if err := a.Assign(2); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := a.Assign(2); err == nil {
		t.Fatal("expected conflict assigning an already-assigned id")
	}
	if err := a.Assign(100); err == nil {
		t.Fatal("expected error assigning out-of-range id")
	}
}

func TestIDAllocatorEncodeDecodeRoundTrip(t *testing.T) {
	a := NewIDAllocator(0, 100)
	for _, id := range []uint32{1, 2, 3, 50, 51, 99} {
		if err := a.Assign(id); err != nil {
			t.Fatalf("assign %d: %v", id, err)
		}
	}

	w := codec.NewWriter(0)
	a.Encode(w)

	r := codec.NewReader(w.Bytes())
	b, err := DecodeIDAllocator(r)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.Lo != a.Lo || b.Hi != a.Hi {
		t.Fatalf("bounds mismatch: got [%d,%d)", b.Lo, b.Hi)
	}
	for _, id := range []uint32{1, 2, 3, 50, 51, 99} {
		if err := b.Assign(id); err == nil {
			t.Fatalf("expected %d to still be assigned after round trip", id)
		}
	}
	if next, ok := b.NextAvailable(); !ok || next != 0 {
		t.Fatalf("expected 0 free after round trip, got %d ok=%v", next, ok)
	}
}
