package serviceability

import (
	"encoding/binary"

	"github.com/malbeclabs/doublezero-sub006/sdk/codec"
)

// IPBlockAllocator hands out fixed-size subnets of BlockPrefixLen carved
// out of Parent. Internally it reduces to an IDAllocator over block
// indices, so the same sorted-run-list representation and the same
// exhaustion/conflict semantics apply; IP arithmetic only happens at the
// Assign/Allocate/Unassign boundary.
type IPBlockAllocator struct {
	Parent         NetworkV4
	BlockPrefixLen uint8
	ids            *IDAllocator
}

// NewIPBlockAllocator creates an allocator that carves Parent into
// contiguous /blockPrefixLen subnets, with every subnet initially free.
func NewIPBlockAllocator(parent NetworkV4, blockPrefixLen uint8) *IPBlockAllocator {
	nBlocks := uint32(1) << uint(blockPrefixLen-parent.PrefixLen())
	return &IPBlockAllocator{
		Parent:         parent,
		BlockPrefixLen: blockPrefixLen,
		ids:            NewIDAllocator(0, nBlocks),
	}
}

func ipToUint32(ip IPv4) uint32 { return binary.BigEndian.Uint32(ip[:]) }

func uint32ToIP(v uint32) IPv4 {
	var ip IPv4
	binary.BigEndian.PutUint32(ip[:], v)
	return ip
}

func (a *IPBlockAllocator) blockSize() uint32 { return 1 << uint(32-a.BlockPrefixLen) }

func (a *IPBlockAllocator) blockIndex(block NetworkV4) (uint32, error) {
	if block.PrefixLen() != a.BlockPrefixLen {
		return 0, Err(CodeInvalidArgument, "block prefix /%d does not match allocator block size /%d", block.PrefixLen(), a.BlockPrefixLen)
	}
	base := ipToUint32(a.Parent.IP())
	off := ipToUint32(block.IP())
	if off < base {
		return 0, Err(CodeInvalidArgument, "block %s outside parent %s", block, a.Parent)
	}
	idx := (off - base) / a.blockSize()
	if idx*a.blockSize()+base != off {
		return 0, Err(CodeInvalidArgument, "block %s is not aligned to /%d", block, a.BlockPrefixLen)
	}
	return idx, nil
}

func (a *IPBlockAllocator) blockAt(idx uint32) NetworkV4 {
	base := ipToUint32(a.Parent.IP())
	return NewNetworkV4(uint32ToIP(base+idx*a.blockSize()), a.BlockPrefixLen)
}

// Contains reports whether block lies within Parent at the allocator's
// block granularity, regardless of assignment state.
func (a *IPBlockAllocator) Contains(block NetworkV4) bool {
	idx, err := a.blockIndex(block)
	return err == nil && a.ids.Contains(idx)
}

// NextAvailable returns the lowest free block without reserving it.
func (a *IPBlockAllocator) NextAvailable() (NetworkV4, bool) {
	idx, ok := a.ids.NextAvailable()
	if !ok {
		return NetworkV4{}, false
	}
	return a.blockAt(idx), true
}

// Assign reserves a specific block.
func (a *IPBlockAllocator) Assign(block NetworkV4) error {
	idx, err := a.blockIndex(block)
	if err != nil {
		return err
	}
	return a.ids.Assign(idx)
}

// Allocate reserves and returns the lowest free block.
func (a *IPBlockAllocator) Allocate() (NetworkV4, error) {
	idx, err := a.ids.Allocate()
	if err != nil {
		return NetworkV4{}, err
	}
	return a.blockAt(idx), nil
}

// Unassign releases block back to the free pool.
func (a *IPBlockAllocator) Unassign(block NetworkV4) error {
	idx, err := a.blockIndex(block)
	if err != nil {
		return err
	}
	return a.ids.Unassign(idx)
}

func (a *IPBlockAllocator) Encode(w *codec.Writer) {
	w.WriteNetworkV4([5]byte(a.Parent))
	w.WriteU8(a.BlockPrefixLen)
	a.ids.Encode(w)
}

func DecodeIPBlockAllocator(r *codec.Reader) (*IPBlockAllocator, error) {
	parentBytes, err := r.ReadNetworkV4()
	if err != nil {
		return nil, err
	}
	prefixLen, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	ids, err := DecodeIDAllocator(r)
	if err != nil {
		return nil, err
	}
	return &IPBlockAllocator{Parent: NetworkV4(parentBytes), BlockPrefixLen: prefixLen, ids: ids}, nil
}
