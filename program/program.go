package program

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/doublezero-sub006/sdk/ledger"
	"github.com/malbeclabs/doublezero-sub006/sdk/serviceability"
)

// Program bundles the account store and the program's own address, the
// two pieces of context every handler needs to validate PDAs and persist
// results.
type Program struct {
	Store   ledger.AccountStore
	Program solana.PublicKey
}

func New(store ledger.AccountStore, programID solana.PublicKey) *Program {
	return &Program{Store: store, Program: programID}
}

// loadGlobalState fetches and decodes the program's singleton GlobalState
// account, the first step of every handler's account validation.
func (p *Program) loadGlobalState(ctx context.Context) (*serviceability.GlobalState, error) {
	addr, err := serviceability.GlobalStatePDA(p.Program)
	if err != nil {
		return nil, err
	}
	acc, ok, err := p.Store.Get(ctx, addr.Pubkey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, serviceability.Err(serviceability.CodeAccountDoesNotExist, "global state not initialized")
	}
	tag, v, err := serviceability.Decode(acc.Data)
	if err != nil {
		return nil, err
	}
	if tag != serviceability.AccountTypeGlobalState {
		return nil, serviceability.Err(serviceability.CodeInvalidAccountType, "expected global state, got %s", tag)
	}
	return v.(*serviceability.GlobalState), nil
}

func (p *Program) persist(ctx context.Context, addr solana.PublicKey, owner solana.PublicKey, accountType serviceability.AccountType, v any) error {
	data := serviceability.Encode(accountType, v)
	return p.Store.Put(ctx, addr, ledger.Account{Owner: owner, Data: data})
}

// loadDevice fetches and decodes a Device account, verifying the address
// actually is a Device and not some other account type placed there by
// mistake (CodeInvalidAccountType) — the account-validation step of the
// pipeline, ahead of authorization.
func (p *Program) loadDevice(ctx context.Context, addr solana.PublicKey) (*serviceability.Device, ledger.Account, error) {
	acc, ok, err := p.Store.Get(ctx, addr)
	if err != nil {
		return nil, ledger.Account{}, err
	}
	if !ok {
		return nil, ledger.Account{}, serviceability.Err(serviceability.CodeAccountDoesNotExist, "device %s does not exist", addr)
	}
	tag, v, err := serviceability.Decode(acc.Data)
	if err != nil {
		return nil, ledger.Account{}, err
	}
	if tag != serviceability.AccountTypeDevice {
		return nil, ledger.Account{}, serviceability.Err(serviceability.CodeInvalidAccountType, "expected device, got %s", tag)
	}
	return v.(*serviceability.Device), acc, nil
}

func (p *Program) loadLink(ctx context.Context, addr solana.PublicKey) (*serviceability.Link, ledger.Account, error) {
	acc, ok, err := p.Store.Get(ctx, addr)
	if err != nil {
		return nil, ledger.Account{}, err
	}
	if !ok {
		return nil, ledger.Account{}, serviceability.Err(serviceability.CodeAccountDoesNotExist, "link %s does not exist", addr)
	}
	tag, v, err := serviceability.Decode(acc.Data)
	if err != nil {
		return nil, ledger.Account{}, err
	}
	if tag != serviceability.AccountTypeLink {
		return nil, ledger.Account{}, serviceability.Err(serviceability.CodeInvalidAccountType, "expected link, got %s", tag)
	}
	return v.(*serviceability.Link), acc, nil
}

func (p *Program) loadUser(ctx context.Context, addr solana.PublicKey) (*serviceability.User, ledger.Account, error) {
	acc, ok, err := p.Store.Get(ctx, addr)
	if err != nil {
		return nil, ledger.Account{}, err
	}
	if !ok {
		return nil, ledger.Account{}, serviceability.Err(serviceability.CodeAccountDoesNotExist, "user %s does not exist", addr)
	}
	tag, v, err := serviceability.Decode(acc.Data)
	if err != nil {
		return nil, ledger.Account{}, err
	}
	if tag != serviceability.AccountTypeUser {
		return nil, ledger.Account{}, serviceability.Err(serviceability.CodeInvalidAccountType, "expected user, got %s", tag)
	}
	return v.(*serviceability.User), acc, nil
}

func (p *Program) loadAccessPass(ctx context.Context, addr solana.PublicKey) (*serviceability.AccessPass, ledger.Account, error) {
	acc, ok, err := p.Store.Get(ctx, addr)
	if err != nil {
		return nil, ledger.Account{}, err
	}
	if !ok {
		return nil, ledger.Account{}, serviceability.Err(serviceability.CodeAccountDoesNotExist, "access pass %s does not exist", addr)
	}
	tag, v, err := serviceability.Decode(acc.Data)
	if err != nil {
		return nil, ledger.Account{}, err
	}
	if tag != serviceability.AccountTypeAccessPass {
		return nil, ledger.Account{}, serviceability.Err(serviceability.CodeInvalidAccountType, "expected access pass, got %s", tag)
	}
	return v.(*serviceability.AccessPass), acc, nil
}

func (p *Program) loadReservation(ctx context.Context, addr solana.PublicKey) (*serviceability.Reservation, ledger.Account, error) {
	acc, ok, err := p.Store.Get(ctx, addr)
	if err != nil {
		return nil, ledger.Account{}, err
	}
	if !ok {
		return nil, ledger.Account{}, serviceability.Err(serviceability.CodeAccountDoesNotExist, "reservation %s does not exist", addr)
	}
	tag, v, err := serviceability.Decode(acc.Data)
	if err != nil {
		return nil, ledger.Account{}, err
	}
	if tag != serviceability.AccountTypeReservation {
		return nil, ledger.Account{}, serviceability.Err(serviceability.CodeInvalidAccountType, "expected reservation, got %s", tag)
	}
	return v.(*serviceability.Reservation), acc, nil
}
