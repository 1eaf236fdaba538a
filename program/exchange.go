package program

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/doublezero-sub006/sdk/serviceability"
)

func (p *Program) loadExchange(ctx context.Context, addr solana.PublicKey) (*serviceability.Exchange, error) {
	acc, ok, err := p.Store.Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, serviceability.Err(serviceability.CodeAccountDoesNotExist, "exchange %s does not exist", addr)
	}
	tag, v, err := serviceability.Decode(acc.Data)
	if err != nil {
		return nil, err
	}
	if tag != serviceability.AccountTypeExchange {
		return nil, serviceability.Err(serviceability.CodeInvalidAccountType, "expected exchange, got %s", tag)
	}
	return v.(*serviceability.Exchange), nil
}

func (p *Program) CreateExchange(ctx context.Context, signer solana.PublicKey, code string, lat, lng float64) (solana.PublicKey, error) {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return solana.PublicKey{}, err
	}
	addr, err := serviceability.ExchangePDA(p.Program, code)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if _, ok, err := p.Store.Get(ctx, addr.Pubkey); err != nil {
		return solana.PublicKey{}, err
	} else if ok {
		return solana.PublicKey{}, serviceability.Err(serviceability.CodeAccountAlreadyInitialized, "exchange %s already exists", code)
	}
	e := &serviceability.Exchange{BumpSeed: addr.Bump, Code: code, Lat: lat, Lng: lng, Status: serviceability.ExchangePending}
	if err := p.persist(ctx, addr.Pubkey, p.Program, serviceability.AccountTypeExchange, e); err != nil {
		return solana.PublicKey{}, err
	}
	return addr.Pubkey, nil
}

func (p *Program) ActivateExchange(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return err
	}
	e, err := p.loadExchange(ctx, addr)
	if err != nil {
		return err
	}
	if e.Status != serviceability.ExchangePending {
		return serviceability.Err(serviceability.CodeInvalidStatus, "exchange %s is %s, expected pending", e.Code, e.Status)
	}
	e.Status = serviceability.ExchangeActivated
	return p.persist(ctx, addr, p.Program, serviceability.AccountTypeExchange, e)
}

func (p *Program) CloseAccountExchange(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey, receiver solana.PublicKey) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return err
	}
	e, err := p.loadExchange(ctx, addr)
	if err != nil {
		return err
	}
	if e.ReferenceCount != 0 {
		return serviceability.Err(serviceability.CodeTargetsNotEmpty, "exchange %s still has %d references", e.Code, e.ReferenceCount)
	}
	return p.Store.Close(ctx, addr, receiver)
}
