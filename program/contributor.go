package program

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/doublezero-sub006/sdk/serviceability"
)

func (p *Program) loadContributor(ctx context.Context, addr solana.PublicKey) (*serviceability.Contributor, error) {
	acc, ok, err := p.Store.Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, serviceability.Err(serviceability.CodeAccountDoesNotExist, "contributor %s does not exist", addr)
	}
	tag, v, err := serviceability.Decode(acc.Data)
	if err != nil {
		return nil, err
	}
	if tag != serviceability.AccountTypeContributor {
		return nil, serviceability.Err(serviceability.CodeInvalidAccountType, "expected contributor, got %s", tag)
	}
	return v.(*serviceability.Contributor), nil
}

func (p *Program) CreateContributor(ctx context.Context, signer solana.PublicKey, code string, ataOwner solana.PublicKey) (solana.PublicKey, error) {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return solana.PublicKey{}, err
	}
	addr, err := serviceability.ContributorPDA(p.Program, code)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if _, ok, err := p.Store.Get(ctx, addr.Pubkey); err != nil {
		return solana.PublicKey{}, err
	} else if ok {
		return solana.PublicKey{}, serviceability.Err(serviceability.CodeAccountAlreadyInitialized, "contributor %s already exists", code)
	}
	c := &serviceability.Contributor{BumpSeed: addr.Bump, Code: code, ATAOwner: serviceability.Pubkey(ataOwner), Status: serviceability.ContributorPending}
	if err := p.persist(ctx, addr.Pubkey, p.Program, serviceability.AccountTypeContributor, c); err != nil {
		return solana.PublicKey{}, err
	}
	return addr.Pubkey, nil
}

func (p *Program) ActivateContributor(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return err
	}
	c, err := p.loadContributor(ctx, addr)
	if err != nil {
		return err
	}
	if c.Status != serviceability.ContributorPending {
		return serviceability.Err(serviceability.CodeInvalidStatus, "contributor %s is %s, expected pending", c.Code, c.Status)
	}
	c.Status = serviceability.ContributorActivated
	return p.persist(ctx, addr, p.Program, serviceability.AccountTypeContributor, c)
}

// SuspendContributor moves an Activated contributor to Suspended. Only the
// foundation may suspend, there being no sentinel-triggered abuse signal
// for a contributor the way there is for a device or user.
func (p *Program) SuspendContributor(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey) error {
	return p.setContributorStatus(ctx, signer, addr, serviceability.ContributorActivated, serviceability.ContributorSuspended)
}

// ResumeContributor moves a Suspended contributor back to Activated. Per
// spec, the contributor's own Owner — its ATAOwner — may resume it, not
// only the foundation.
func (p *Program) ResumeContributor(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	c, err := p.loadContributor(ctx, addr)
	if err != nil {
		return err
	}
	owner := c.ATAOwner
	if err := AuthorizeAny([]Role{RoleFoundation, RoleOwner}, gs, signer, &owner); err != nil {
		return err
	}
	if c.Status != serviceability.ContributorSuspended {
		return serviceability.Err(serviceability.CodeInvalidStatus, "contributor %s is %s, expected suspended", c.Code, c.Status)
	}
	c.Status = serviceability.ContributorActivated
	return p.persist(ctx, addr, p.Program, serviceability.AccountTypeContributor, c)
}

func (p *Program) setContributorStatus(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey, from, to serviceability.ContributorStatus) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return err
	}
	c, err := p.loadContributor(ctx, addr)
	if err != nil {
		return err
	}
	if c.Status != from {
		return serviceability.Err(serviceability.CodeInvalidStatus, "contributor %s is %s, expected %s", c.Code, c.Status, from)
	}
	c.Status = to
	return p.persist(ctx, addr, p.Program, serviceability.AccountTypeContributor, c)
}

// DeleteContributor marks a contributor Deleting, the first half of its
// two-phase delete-then-close (Location, Exchange and Tenant have no
// delete step; their close checks ReferenceCount alone).
func (p *Program) DeleteContributor(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return err
	}
	c, err := p.loadContributor(ctx, addr)
	if err != nil {
		return err
	}
	if c.Status == serviceability.ContributorDeleting {
		return serviceability.Err(serviceability.CodeInvalidStatus, "contributor %s is already deleting", c.Code)
	}
	c.Status = serviceability.ContributorDeleting
	return p.persist(ctx, addr, p.Program, serviceability.AccountTypeContributor, c)
}

// CloseAccountContributor removes a contributor once its ReferenceCount is
// zero and DeleteContributor has moved it to Deleting. No handler
// increments a contributor's ReferenceCount: devices and links created
// under it are not counted, so the count stays zero.
func (p *Program) CloseAccountContributor(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey, receiver solana.PublicKey) error {
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
	c, err := p.loadContributor(ctx, addr)
	if err != nil {
		return err
	}
	if c.Status != serviceability.ContributorDeleting {
		return serviceability.Err(serviceability.CodeInvalidStatus, "contributor %s is %s, expected deleting", c.Code, c.Status)
	}
	if c.ReferenceCount != 0 {
		return serviceability.Err(serviceability.CodeTargetsNotEmpty, "contributor %s still has %d references", c.Code, c.ReferenceCount)
	}
	return p.Store.Close(ctx, addr, receiver)
}
