package program

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/doublezero-sub006/sdk/serviceability"
)

func (p *Program) loadLocation(ctx context.Context, addr solana.PublicKey) (*serviceability.Location, []byte, error) {
	acc, ok, err := p.Store.Get(ctx, addr)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, serviceability.Err(serviceability.CodeAccountDoesNotExist, "location %s does not exist", addr)
	}
	tag, v, err := serviceability.Decode(acc.Data)
	if err != nil {
		return nil, nil, err
	}
	if tag != serviceability.AccountTypeLocation {
		return nil, nil, serviceability.Err(serviceability.CodeInvalidAccountType, "expected location, got %s", tag)
	}
	return v.(*serviceability.Location), acc.Data, nil
}

// CreateLocation creates a Location PDA, pending until the foundation
// activates it.
func (p *Program) CreateLocation(ctx context.Context, signer solana.PublicKey, code, name, country string, lat, lng float64) (solana.PublicKey, error) {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return solana.PublicKey{}, err
	}
	addr, err := serviceability.LocationPDA(p.Program, code)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if _, ok, err := p.Store.Get(ctx, addr.Pubkey); err != nil {
		return solana.PublicKey{}, err
	} else if ok {
		return solana.PublicKey{}, serviceability.Err(serviceability.CodeAccountAlreadyInitialized, "location %s already exists", code)
	}
	l := &serviceability.Location{BumpSeed: addr.Bump, Code: code, Name: name, Country: country, Lat: lat, Lng: lng, Status: serviceability.LocationPending}
	if err := p.persist(ctx, addr.Pubkey, p.Program, serviceability.AccountTypeLocation, l); err != nil {
		return solana.PublicKey{}, err
	}
	return addr.Pubkey, nil
}

func (p *Program) ActivateLocation(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return err
	}
	l, _, err := p.loadLocation(ctx, addr)
	if err != nil {
		return err
	}
	if l.Status != serviceability.LocationPending {
		return serviceability.Err(serviceability.CodeInvalidStatus, "location %s is %s, expected pending", l.Code, l.Status)
	}
	l.Status = serviceability.LocationActivated
	return p.persist(ctx, addr, p.Program, serviceability.AccountTypeLocation, l)
}

// CloseAccountLocation removes a Location once nothing references it,
// guarded by ReferenceCount rather than a live dependent scan — the
// bump at CreateDevice and the drop at CloseAccountDevice of this
// location's ReferenceCount keep that count authoritative.
func (p *Program) CloseAccountLocation(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey, receiver solana.PublicKey) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return err
	}
	l, _, err := p.loadLocation(ctx, addr)
	if err != nil {
		return err
	}
	if l.ReferenceCount != 0 {
		return serviceability.Err(serviceability.CodeTargetsNotEmpty, "location %s still has %d references", l.Code, l.ReferenceCount)
	}
	return p.Store.Close(ctx, addr, receiver)
}
