package serviceability

import (
	"testing"

	"github.com/malbeclabs/doublezero-sub006/sdk/codec"
)

func parseNet(ip IPv4, prefix uint8) NetworkV4 { return NewNetworkV4(ip, prefix) }

func TestIPBlockAllocatorAllocateAndContains(t *testing.T) {
	parent := parseNet(IPv4{10, 0, 0, 0}, 24)
	a := NewIPBlockAllocator(parent, 30) // 64 /30 blocks inside a /24

	first, err := a.Allocate()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if first != parseNet(IPv4{10, 0, 0, 0}, 30) {
		t.Fatalf("unexpected first block: %s", first)
	}
	second, err := a.Allocate()
	if err != nil || second != parseNet(IPv4{10, 0, 0, 4}, 30) {
		t.Fatalf("unexpected second block: %s, err %v", second, err)
	}

	if !a.Contains(first) {
		t.Fatal("expected allocator to contain first block")
	}
	outside := parseNet(IPv4{10, 0, 1, 0}, 30)
	if a.Contains(outside) {
		t.Fatal("expected allocator not to contain block outside parent")
	}

	if err := a.Unassign(first); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	next, ok := a.NextAvailable()
	if !ok || next != first {
		t.Fatalf("expected first block free again, got %s ok=%v", next, ok)
	}
	if err := a.Unassign(first); err != nil {
		t.Fatalf("unassign is idempotent, re-unassigning a free block must not error: %v", err)
	}
}

func TestIPBlockAllocatorRejectsMisalignedBlock(t *testing.T) {
	parent := parseNet(IPv4{10, 0, 0, 0}, 24)
	a := NewIPBlockAllocator(parent, 30)

	misaligned := parseNet(IPv4{10, 0, 0, 1}, 30)
	if err := a.Assign(misaligned); err == nil {
		t.Fatal("expected error assigning a misaligned block")
	}
}

func TestIPBlockAllocatorEncodeDecodeRoundTrip(t *testing.T) {
	parent := parseNet(IPv4{172, 16, 0, 0}, 20)
	a := NewIPBlockAllocator(parent, 31)
	allocated, err := a.Allocate()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	w := codec.NewWriter(0)
	a.Encode(w)
	r := codec.NewReader(w.Bytes())
	b, err := DecodeIPBlockAllocator(r)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := b.Assign(allocated); err == nil {
		t.Fatalf("expected %s to still be assigned after round trip", allocated)
	}
}
