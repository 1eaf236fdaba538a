package program

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/doublezero-sub006/sdk/serviceability"
)

func (p *Program) loadMulticastGroup(ctx context.Context, addr solana.PublicKey) (*serviceability.MulticastGroup, error) {
	acc, ok, err := p.Store.Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, serviceability.Err(serviceability.CodeAccountDoesNotExist, "multicast group %s does not exist", addr)
	}
	tag, v, err := serviceability.Decode(acc.Data)
	if err != nil {
		return nil, err
	}
	if tag != serviceability.AccountTypeMulticastGroup {
		return nil, serviceability.Err(serviceability.CodeInvalidAccountType, "expected multicast group, got %s", tag)
	}
	return v.(*serviceability.MulticastGroup), nil
}

func (p *Program) CreateMulticastGroup(ctx context.Context, signer solana.PublicKey, code string, tenant solana.PublicKey, maxBandwidth uint64) (solana.PublicKey, error) {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return solana.PublicKey{}, err
	}
	addr, err := serviceability.MulticastGroupPDA(p.Program, code)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if _, ok, err := p.Store.Get(ctx, addr.Pubkey); err != nil {
		return solana.PublicKey{}, err
	} else if ok {
		return solana.PublicKey{}, serviceability.Err(serviceability.CodeAccountAlreadyInitialized, "multicast group %s already exists", code)
	}
	m := &serviceability.MulticastGroup{
		BumpSeed:     addr.Bump,
		Code:         code,
		Tenant:       serviceability.Pubkey(tenant),
		MaxBandwidth: maxBandwidth,
		Status:       serviceability.MulticastGroupPending,
	}
	if err := p.persist(ctx, addr.Pubkey, p.Program, serviceability.AccountTypeMulticastGroup, m); err != nil {
		return solana.PublicKey{}, err
	}
	return addr.Pubkey, nil
}

// ActivateMulticastGroup assigns the group's multicast IP from the shared
// multicast-group-block resource extension and moves it to Activated.
func (p *Program) ActivateMulticastGroup(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey, block *serviceability.IPBlockAllocator) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleActivator, gs, signer, nil); err != nil {
		return err
	}
	m, err := p.loadMulticastGroup(ctx, addr)
	if err != nil {
		return err
	}
	if m.Status != serviceability.MulticastGroupPending {
		return serviceability.Err(serviceability.CodeInvalidStatus, "multicast group %s is %s, expected pending", m.Code, m.Status)
	}
	ip, err := block.Allocate()
	if err != nil {
		return err
	}
	m.MulticastIP = ip.IP()
	m.Status = serviceability.MulticastGroupActivated
	return p.persist(ctx, addr, p.Program, serviceability.AccountTypeMulticastGroup, m)
}

func (p *Program) SubscribeMulticastGroup(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey, subscriber solana.PublicKey) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return err
	}
	m, err := p.loadMulticastGroup(ctx, addr)
	if err != nil {
		return err
	}
	m.SubscriberAllow = append(m.SubscriberAllow, serviceability.Pubkey(subscriber))
	m.SubscriberCount++
	return p.persist(ctx, addr, p.Program, serviceability.AccountTypeMulticastGroup, m)
}

// PublishMulticastGroup adds a publisher to the group's allowlist,
// mirroring SubscribeMulticastGroup for the publishing side of the same
// group.
func (p *Program) PublishMulticastGroup(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey, publisher solana.PublicKey) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return err
	}
	m, err := p.loadMulticastGroup(ctx, addr)
	if err != nil {
		return err
	}
	m.PublisherAllow = append(m.PublisherAllow, serviceability.Pubkey(publisher))
	m.PublisherCount++
	return p.persist(ctx, addr, p.Program, serviceability.AccountTypeMulticastGroup, m)
}

// RejectMulticastGroup moves a Pending group to Rejected, permanently, the
// same terminal rejection RejectDevice uses.
func (p *Program) RejectMulticastGroup(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return err
	}
	m, err := p.loadMulticastGroup(ctx, addr)
	if err != nil {
		return err
	}
	if m.Status != serviceability.MulticastGroupPending {
		return serviceability.Err(serviceability.CodeInvalidStatus, "multicast group %s is %s, expected pending", m.Code, m.Status)
	}
	m.Status = serviceability.MulticastGroupRejected
	return p.persist(ctx, addr, p.Program, serviceability.AccountTypeMulticastGroup, m)
}

// SuspendMulticastGroup moves an Activated group to Suspended. The
// sentinel may suspend unilaterally on detected abuse, as with devices and
// links.
func (p *Program) SuspendMulticastGroup(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey) error {
	return p.setMulticastGroupStatus(ctx, signer, addr, serviceability.MulticastGroupActivated, serviceability.MulticastGroupSuspended,
		[]Role{RoleFoundation, RoleSentinel})
}

// ResumeMulticastGroup moves a Suspended group back to Activated. Only the
// foundation may resume.
func (p *Program) ResumeMulticastGroup(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey) error {
	return p.setMulticastGroupStatus(ctx, signer, addr, serviceability.MulticastGroupSuspended, serviceability.MulticastGroupActivated,
		[]Role{RoleFoundation})
}

func (p *Program) setMulticastGroupStatus(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey, from, to serviceability.MulticastGroupStatus, roles []Role) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := AuthorizeAny(roles, gs, signer, nil); err != nil {
		return err
	}
	m, err := p.loadMulticastGroup(ctx, addr)
	if err != nil {
		return err
	}
	if m.Status != from {
		return serviceability.Err(serviceability.CodeInvalidStatus, "multicast group %s is %s, expected %s", m.Code, m.Status, from)
	}
	m.Status = to
	return p.persist(ctx, addr, p.Program, serviceability.AccountTypeMulticastGroup, m)
}

// DeleteMulticastGroup marks a group Deleting. As with links and devices,
// its multicast IP stays assigned until CloseAccountMulticastGroup
// releases it in the same call that closes the account.
func (p *Program) DeleteMulticastGroup(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return err
	}
	m, err := p.loadMulticastGroup(ctx, addr)
	if err != nil {
		return err
	}
	if m.Status == serviceability.MulticastGroupDeleting {
		return serviceability.Err(serviceability.CodeInvalidStatus, "multicast group %s is already deleting", m.Code)
	}
	m.Status = serviceability.MulticastGroupDeleting
	return p.persist(ctx, addr, p.Program, serviceability.AccountTypeMulticastGroup, m)
}

// CloseAccountMulticastGroup releases the group's multicast IP back to its
// block allocator and removes the account. Only valid once
// DeleteMulticastGroup has moved the group to Deleting.
func (p *Program) CloseAccountMulticastGroup(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey, receiver solana.PublicKey, block *serviceability.IPBlockAllocator) error {
	if addr == receiver {
		return serviceability.Err(serviceability.CodeInvalidArgument, "close and receiver accounts must differ")
	}
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return err
	}
	m, err := p.loadMulticastGroup(ctx, addr)
	if err != nil {
		return err
	}
	if m.Status != serviceability.MulticastGroupDeleting {
		return serviceability.Err(serviceability.CodeInvalidStatus, "multicast group %s is %s, expected deleting", m.Code, m.Status)
	}
	if block != nil && m.MulticastIP != (serviceability.IPv4{}) {
		_ = block.Unassign(serviceability.NewNetworkV4(m.MulticastIP, block.BlockPrefixLen))
	}
	return p.Store.Close(ctx, addr, receiver)
}
