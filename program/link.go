package program

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/doublezero-sub006/sdk/serviceability"
)

type CreateLinkArgs struct {
	Code           string
	Contributor    solana.PublicKey
	LinkType       serviceability.LinkType
	SideA          solana.PublicKey
	SideAIfaceName string
	SideZ          solana.PublicKey
	SideZIfaceName string
	Bandwidth      uint64
	Mtu            uint32
	DelayNs        uint64
	JitterNs       uint64
}

// CreateLink creates a Link PDA in Requested status. The side-A device's
// owner proposes the link; side-Z's owner must still Accept before an
// activator will ever activate it.
func (p *Program) CreateLink(ctx context.Context, signer solana.PublicKey, args CreateLinkArgs) (solana.PublicKey, error) {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	sideA, _, err := p.loadDevice(ctx, args.SideA)
	if err != nil {
		return solana.PublicKey{}, err
	}
	owner := sideA.Owner
	if err := AuthorizeAny([]Role{RoleFoundation, RoleOwner}, gs, signer, &owner); err != nil {
		return solana.PublicKey{}, err
	}
	if sideA.Status != serviceability.DeviceActivated {
		return solana.PublicKey{}, serviceability.Err(serviceability.CodeInvalidStatus, "side A device is %s, expected activated", sideA.Status)
	}

	addr, err := serviceability.LinkPDA(p.Program, args.Code)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if _, ok, err := p.Store.Get(ctx, addr.Pubkey); err != nil {
		return solana.PublicKey{}, err
	} else if ok {
		return solana.PublicKey{}, serviceability.Err(serviceability.CodeAccountAlreadyInitialized, "link %s already exists", args.Code)
	}

	l := &serviceability.Link{
		BumpSeed:       addr.Bump,
		Code:           args.Code,
		Contributor:    serviceability.Pubkey(args.Contributor),
		LinkType:       args.LinkType,
		SideA:          serviceability.Pubkey(args.SideA),
		SideAIfaceName: args.SideAIfaceName,
		SideZ:          serviceability.Pubkey(args.SideZ),
		SideZIfaceName: args.SideZIfaceName,
		Bandwidth:      args.Bandwidth,
		Mtu:            args.Mtu,
		DelayNs:        args.DelayNs,
		JitterNs:       args.JitterNs,
		LinkHealth:     serviceability.LinkHealthPending,
		Status:         serviceability.LinkRequested,
	}
	if err := p.persist(ctx, addr.Pubkey, p.Program, serviceability.AccountTypeLink, l); err != nil {
		return solana.PublicKey{}, err
	}
	if err := p.bindDeviceInterface(ctx, args.SideA, args.SideAIfaceName); err != nil {
		return solana.PublicKey{}, err
	}
	return addr.Pubkey, nil
}

// AcceptLink moves a Requested link to Pending once side Z's owner agrees
// to the peering. No resources are allocated yet; that happens only at
// ActivateLink.
func (p *Program) AcceptLink(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	l, acc, err := p.loadLink(ctx, addr)
	if err != nil {
		return err
	}
	sideZ, _, err := p.loadDevice(ctx, solana.PublicKey(l.SideZ))
	if err != nil {
		return err
	}
	owner := sideZ.Owner
	if err := AuthorizeAny([]Role{RoleFoundation, RoleOwner}, gs, signer, &owner); err != nil {
		return err
	}
	if l.Status != serviceability.LinkRequested {
		return serviceability.Err(serviceability.CodeInvalidStatus, "link %s is %s, expected requested", l.Code, l.Status)
	}
	l.Status = serviceability.LinkPending
	if err := p.persist(ctx, addr, acc.Owner, serviceability.AccountTypeLink, l); err != nil {
		return err
	}
	if err := p.bindDeviceInterface(ctx, solana.PublicKey(l.SideZ), l.SideZIfaceName); err != nil {
		return err
	}

	// Both sides are now committed to this link, so both devices carry a
	// live reference to it until the link closes.
	if err := p.bumpDeviceReferenceCount(ctx, solana.PublicKey(l.SideA), 1); err != nil {
		return err
	}
	return p.bumpDeviceReferenceCount(ctx, solana.PublicKey(l.SideZ), 1)
}

// ActivateLink assigns the link's tunnel ID and tunnel network from the
// shared link-ID and device-tunnel-block resource extensions and moves it
// to Activated. Only the activator may do this.
func (p *Program) ActivateLink(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey, tunnelIDs *serviceability.IDAllocator, tunnelBlock *serviceability.IPBlockAllocator) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleActivator, gs, signer, nil); err != nil {
		return err
	}
	l, acc, err := p.loadLink(ctx, addr)
	if err != nil {
		return err
	}
	if l.Status != serviceability.LinkPending {
		return serviceability.Err(serviceability.CodeInvalidStatus, "link %s is %s, expected pending", l.Code, l.Status)
	}

	tunnelID, err := tunnelIDs.Allocate()
	if err != nil {
		return err
	}
	tunnelNet, err := tunnelBlock.Allocate()
	if err != nil {
		tunnelIDs.Unassign(tunnelID)
		return err
	}

	l.TunnelID = uint16(tunnelID)
	l.TunnelNet = tunnelNet
	l.Status = serviceability.LinkActivated
	if err := p.persist(ctx, addr, acc.Owner, serviceability.AccountTypeLink, l); err != nil {
		return err
	}
	if err := p.setDeviceInterfaceStatus(ctx, solana.PublicKey(l.SideA), l.SideAIfaceName, serviceability.InterfaceActivated, tunnelNet); err != nil {
		return err
	}
	return p.setDeviceInterfaceStatus(ctx, solana.PublicKey(l.SideZ), l.SideZIfaceName, serviceability.InterfaceActivated, tunnelNet)
}

func (p *Program) SuspendLink(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey) error {
	return p.setLinkStatus(ctx, signer, addr, serviceability.LinkActivated, serviceability.LinkSuspended,
		[]Role{RoleFoundation, RoleSentinel})
}

func (p *Program) ResumeLink(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey) error {
	return p.setLinkStatus(ctx, signer, addr, serviceability.LinkSuspended, serviceability.LinkActivated,
		[]Role{RoleFoundation})
}

func (p *Program) setLinkStatus(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey, from, to serviceability.LinkStatus, roles []Role) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := AuthorizeAny(roles, gs, signer, nil); err != nil {
		return err
	}
	l, acc, err := p.loadLink(ctx, addr)
	if err != nil {
		return err
	}
	if l.Status != from {
		return serviceability.Err(serviceability.CodeInvalidStatus, "link %s is %s, expected %s", l.Code, l.Status, from)
	}
	l.Status = to
	return p.persist(ctx, addr, acc.Owner, serviceability.AccountTypeLink, l)
}

// DeleteLink marks a link Deleting. Resources are deliberately not
// released here: per spec, deletion must release previously-assigned
// resources in the same transaction that closes the account, so the
// tunnel ID and tunnel network stay assigned until CloseAccountLink runs.
func (p *Program) DeleteLink(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := AuthorizeAny([]Role{RoleFoundation, RoleActivator}, gs, signer, nil); err != nil {
		return err
	}
	l, acc, err := p.loadLink(ctx, addr)
	if err != nil {
		return err
	}
	l.Status = serviceability.LinkDeleting
	return p.persist(ctx, addr, acc.Owner, serviceability.AccountTypeLink, l)
}

// CloseAccountLink releases the link's tunnel ID and tunnel network back
// to their allocators and removes the account, in the same call, so a
// closed link never leaves its resources stranded assigned. Only valid
// once DeleteLink has moved the link to Deleting.
func (p *Program) CloseAccountLink(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey, receiver solana.PublicKey, tunnelIDs *serviceability.IDAllocator, tunnelBlock *serviceability.IPBlockAllocator) error {
	if addr == receiver {
		return serviceability.Err(serviceability.CodeInvalidArgument, "close and receiver accounts must differ")
	}
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := AuthorizeAny([]Role{RoleFoundation, RoleActivator}, gs, signer, nil); err != nil {
		return err
	}
	l, _, err := p.loadLink(ctx, addr)
	if err != nil {
		return err
	}
	if l.Status != serviceability.LinkDeleting {
		return serviceability.Err(serviceability.CodeInvalidStatus, "link %s is %s, expected deleting", l.Code, l.Status)
	}
	if tunnelIDs != nil {
		_ = tunnelIDs.Unassign(uint32(l.TunnelID))
	}
	if tunnelBlock != nil {
		_ = tunnelBlock.Unassign(l.TunnelNet)
	}
	if err := p.bumpDeviceReferenceCount(ctx, solana.PublicKey(l.SideA), -1); err != nil {
		return err
	}
	if err := p.bumpDeviceReferenceCount(ctx, solana.PublicKey(l.SideZ), -1); err != nil {
		return err
	}
	if err := p.setDeviceInterfaceStatus(ctx, solana.PublicKey(l.SideA), l.SideAIfaceName, serviceability.InterfaceUnlinked, serviceability.NetworkV4{}); err != nil {
		return err
	}
	if err := p.setDeviceInterfaceStatus(ctx, solana.PublicKey(l.SideZ), l.SideZIfaceName, serviceability.InterfaceUnlinked, serviceability.NetworkV4{}); err != nil {
		return err
	}
	return p.Store.Close(ctx, addr, receiver)
}
