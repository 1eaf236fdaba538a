package serviceability

import (
	"github.com/malbeclabs/doublezero-sub006/sdk/codec"
)

// ResourceKind tags which allocator a ResourceExtension account carries,
// and therefore which parent entity and slot it extends.
type ResourceKind uint8

const (
	ResourceDeviceTunnelBlock ResourceKind = iota
	ResourceUserTunnelBlock
	ResourceMulticastGroupBlock
	ResourceDzPrefixBlock
	ResourceTunnelIDs
)

func (k ResourceKind) String() string { return statusName(resourceKindNames, uint8(k)) }

var resourceKindNames = []string{
	"device_tunnel_block",
	"user_tunnel_block",
	"multicastgroup_block",
	"dz_prefix_block",
	"tunnel_ids",
}

// ResourceExtension is an account that carries one allocator's state,
// separate from the entity account it extends, so that a device with
// many dz_ip blocks or a link pool with many tunnel IDs does not bloat
// the parent account's own resize footprint.
type ResourceExtension struct {
	BumpSeed uint8
	Kind     ResourceKind
	Parent   Pubkey
	Slot     uint16

	// Exactly one of these is populated, selected by Kind.
	IDs *IDAllocator
	IPs *IPBlockAllocator
}

// NewIDResourceExtension creates an extension backed by an ID allocator,
// used for link tunnel IDs.
func NewIDResourceExtension(kind ResourceKind, parent Pubkey, slot uint16, lo, hi uint32) *ResourceExtension {
	return &ResourceExtension{Kind: kind, Parent: parent, Slot: slot, IDs: NewIDAllocator(lo, hi)}
}

// NewIPResourceExtension creates an extension backed by an IP block
// allocator, used for device/user tunnel blocks, multicast group blocks,
// and dz_ip prefix blocks.
func NewIPResourceExtension(kind ResourceKind, parent Pubkey, slot uint16, parentNet NetworkV4, blockPrefixLen uint8) *ResourceExtension {
	return &ResourceExtension{Kind: kind, Parent: parent, Slot: slot, IPs: NewIPBlockAllocator(parentNet, blockPrefixLen)}
}

// Capacity returns the total number of allocatable units this extension
// manages.
func (r *ResourceExtension) Capacity() uint32 {
	if r.IDs != nil {
		return r.IDs.Hi - r.IDs.Lo
	}
	nBlocks := uint32(1) << uint(r.IPs.BlockPrefixLen-r.IPs.Parent.PrefixLen())
	return nBlocks
}

func (r *ResourceExtension) Encode(w *codec.Writer) {
	w.WriteU8(r.BumpSeed)
	w.WriteU8(uint8(r.Kind))
	w.WritePubkey([32]byte(r.Parent))
	w.WriteU16(r.Slot)
	if r.IDs != nil {
		r.IDs.Encode(w)
	} else {
		r.IPs.Encode(w)
	}
}

func DecodeResourceExtension(r *codec.Reader) (*ResourceExtension, error) {
	bump, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	kindByte, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	kind := ResourceKind(kindByte)
	parent, err := r.ReadPubkey()
	if err != nil {
		return nil, err
	}
	slot, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	ext := &ResourceExtension{BumpSeed: bump, Kind: kind, Parent: Pubkey(parent), Slot: slot}
	if kind == ResourceTunnelIDs {
		ext.IDs, err = DecodeIDAllocator(r)
	} else {
		ext.IPs, err = DecodeIPBlockAllocator(r)
	}
	if err != nil {
		return nil, err
	}
	return ext, nil
}
