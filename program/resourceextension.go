package program

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/doublezero-sub006/sdk/serviceability"
)

func (p *Program) loadResourceExtension(ctx context.Context, addr solana.PublicKey) (*serviceability.ResourceExtension, error) {
	acc, ok, err := p.Store.Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, serviceability.Err(serviceability.CodeAccountDoesNotExist, "resource extension %s does not exist", addr)
	}
	tag, v, err := serviceability.Decode(acc.Data)
	if err != nil {
		return nil, err
	}
	if tag != serviceability.AccountTypeResourceExtension {
		return nil, serviceability.Err(serviceability.CodeInvalidAccountType, "expected resource extension, got %s", tag)
	}
	return v.(*serviceability.ResourceExtension), nil
}

// CreateResourceExtension initializes the allocator account backing one
// resource kind for a parent entity (a link-ID pool, a device's tunnel
// block, ...). Only the foundation may create one, and only once per
// (parent, kind, slot) — CodeParentDeviceAlreadyExists style duplication
// is rejected the same way every other PDA creation is.
func (p *Program) CreateResourceExtension(ctx context.Context, signer solana.PublicKey, parent solana.PublicKey, kind serviceability.ResourceKind, slot uint16, ext *serviceability.ResourceExtension) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return err
	}
	addr, err := serviceability.ResourceExtensionPDA(p.Program, parent, kind, slot)
	if err != nil {
		return err
	}
	if _, ok, err := p.Store.Get(ctx, addr.Pubkey); err != nil {
		return err
	} else if ok {
		return serviceability.Err(serviceability.CodeAccountAlreadyInitialized, "resource extension for %s/%s/%d already exists", parent, kind, slot)
	}
	ext.BumpSeed = addr.Bump
	ext.Parent = serviceability.Pubkey(parent)
	ext.Kind = kind
	ext.Slot = slot
	return p.persist(ctx, addr.Pubkey, p.Program, serviceability.AccountTypeResourceExtension, ext)
}

// LoadIDAllocator fetches a ResourceExtension and returns its embedded
// IDAllocator, for handlers (ActivateLink, BanUser, ...) that need to
// mutate it directly and then persist it back via PersistResourceExtension.
func (p *Program) LoadIDAllocator(ctx context.Context, addr solana.PublicKey) (*serviceability.IDAllocator, error) {
	ext, err := p.loadResourceExtension(ctx, addr)
	if err != nil {
		return nil, err
	}
	if ext.IDs == nil {
		return nil, serviceability.Err(serviceability.CodeInvalidAccountType, "resource extension at %s is not an id allocator", addr)
	}
	return ext.IDs, nil
}

func (p *Program) LoadIPBlockAllocator(ctx context.Context, addr solana.PublicKey) (*serviceability.IPBlockAllocator, error) {
	ext, err := p.loadResourceExtension(ctx, addr)
	if err != nil {
		return nil, err
	}
	if ext.IPs == nil {
		return nil, serviceability.Err(serviceability.CodeInvalidAccountType, "resource extension at %s is not an ip block allocator", addr)
	}
	return ext.IPs, nil
}

// PersistResourceExtension re-encodes and writes back a ResourceExtension
// whose allocator a handler has just mutated in place.
func (p *Program) PersistResourceExtension(ctx context.Context, addr solana.PublicKey, ids *serviceability.IDAllocator, ips *serviceability.IPBlockAllocator, kind serviceability.ResourceKind, parent solana.PublicKey, slot uint16, bump uint8) error {
	ext := &serviceability.ResourceExtension{BumpSeed: bump, Kind: kind, Parent: serviceability.Pubkey(parent), Slot: slot, IDs: ids, IPs: ips}
	return p.persist(ctx, addr, p.Program, serviceability.AccountTypeResourceExtension, ext)
}
