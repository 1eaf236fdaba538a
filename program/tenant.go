package program

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/doublezero-sub006/sdk/serviceability"
)

func (p *Program) loadTenant(ctx context.Context, addr solana.PublicKey) (*serviceability.Tenant, error) {
	acc, ok, err := p.Store.Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, serviceability.Err(serviceability.CodeAccountDoesNotExist, "tenant %s does not exist", addr)
	}
	tag, v, err := serviceability.Decode(acc.Data)
	if err != nil {
		return nil, err
	}
	if tag != serviceability.AccountTypeTenant {
		return nil, serviceability.Err(serviceability.CodeInvalidAccountType, "expected tenant, got %s", tag)
	}
	return v.(*serviceability.Tenant), nil
}

func (p *Program) CreateTenant(ctx context.Context, signer solana.PublicKey, code string, vrfID uint16, tokenAccount solana.PublicKey, billingRate uint64) (solana.PublicKey, error) {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return solana.PublicKey{}, err
	}
	addr, err := serviceability.TenantPDA(p.Program, code)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if _, ok, err := p.Store.Get(ctx, addr.Pubkey); err != nil {
		return solana.PublicKey{}, err
	} else if ok {
		return solana.PublicKey{}, serviceability.Err(serviceability.CodeAccountAlreadyInitialized, "tenant %s already exists", code)
	}
	t := &serviceability.Tenant{
		BumpSeed:      addr.Bump,
		Code:          code,
		VrfID:         vrfID,
		TokenAccount:  serviceability.Pubkey(tokenAccount),
		BillingRate:   billingRate,
		PaymentStatus: serviceability.TenantPaid,
	}
	if err := p.persist(ctx, addr.Pubkey, p.Program, serviceability.AccountTypeTenant, t); err != nil {
		return solana.PublicKey{}, err
	}
	return addr.Pubkey, nil
}

// AddTenantAdministrator appends admin to a tenant's administrator list.
// Adding the same key twice is rejected rather than silently
// deduplicated, matching CodeAdministratorAlreadyExists in the error
// taxonomy.
func (p *Program) AddTenantAdministrator(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey, admin solana.PublicKey) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return err
	}
	t, err := p.loadTenant(ctx, addr)
	if err != nil {
		return err
	}
	sk := serviceability.Pubkey(admin)
	for _, a := range t.Administrators {
		if a == sk {
			return serviceability.Err(serviceability.CodeAdministratorAlreadyExists, "administrator %s already registered for tenant %s", admin, t.Code)
		}
	}
	t.Administrators = append(t.Administrators, sk)
	return p.persist(ctx, addr, p.Program, serviceability.AccountTypeTenant, t)
}

// SetTenantPaymentStatus transitions a tenant's payment state. It is the
// foundation's own billing sweep that calls this, never the tenant
// itself, since an unpaid tenant setting its own status to Paid would
// defeat the whole mechanism.
func (p *Program) SetTenantPaymentStatus(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey, status serviceability.TenantPaymentStatus) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return err
	}
	t, err := p.loadTenant(ctx, addr)
	if err != nil {
		return err
	}
	if t.PaymentStatus == status {
		return serviceability.Err(serviceability.CodeInvalidPaymentStatus, "tenant %s is already %s", t.Code, status)
	}
	t.PaymentStatus = status
	return p.persist(ctx, addr, p.Program, serviceability.AccountTypeTenant, t)
}

func (p *Program) CloseAccountTenant(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey, receiver solana.PublicKey) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return err
	}
	t, err := p.loadTenant(ctx, addr)
	if err != nil {
		return err
	}
	if t.ReferenceCount != 0 {
		return serviceability.Err(serviceability.CodeTargetsNotEmpty, "tenant %s still has %d references", t.Code, t.ReferenceCount)
	}
	return p.Store.Close(ctx, addr, receiver)
}
