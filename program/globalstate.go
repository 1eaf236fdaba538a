package program

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/doublezero-sub006/sdk/serviceability"
)

// InitializeGlobalState creates the program's singleton GlobalState
// account. It may only run once: any subsequent call finds the PDA
// already occupied and fails with CodeAccountAlreadyInitialized.
func (p *Program) InitializeGlobalState(ctx context.Context, foundation solana.PublicKey, activator, healthOracle, sentinel, reservationAuth solana.PublicKey) (solana.PublicKey, error) {
	addr, err := serviceability.GlobalStatePDA(p.Program)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if _, ok, err := p.Store.Get(ctx, addr.Pubkey); err != nil {
		return solana.PublicKey{}, err
	} else if ok {
		return solana.PublicKey{}, serviceability.Err(serviceability.CodeAccountAlreadyInitialized, "global state already initialized")
	}
	gs := &serviceability.GlobalState{
		BumpSeed:             addr.Bump,
		FoundationAllowlist:  []serviceability.Pubkey{serviceability.Pubkey(foundation)},
		ActivatorAuthority:   serviceability.Pubkey(activator),
		HealthOracle:         serviceability.Pubkey(healthOracle),
		SentinelAuthority:    serviceability.Pubkey(sentinel),
		ReservationAuthority: serviceability.Pubkey(reservationAuth),
	}
	if err := p.persist(ctx, addr.Pubkey, p.Program, serviceability.AccountTypeGlobalState, gs); err != nil {
		return solana.PublicKey{}, err
	}
	return addr.Pubkey, nil
}

// SetFeatureFlag flips a feature bit (for example FeatureOnChainAllocation)
// on or off. Only the foundation may do this.
func (p *Program) SetFeatureFlag(ctx context.Context, signer solana.PublicKey, flag serviceability.FeatureFlag, enabled bool) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return err
	}
	if enabled {
		gs.FeatureFlags |= uint64(flag)
	} else {
		gs.FeatureFlags &^= uint64(flag)
	}
	addr, err := serviceability.GlobalStatePDA(p.Program)
	if err != nil {
		return err
	}
	return p.persist(ctx, addr.Pubkey, p.Program, serviceability.AccountTypeGlobalState, gs)
}

// AddFoundationAllowlist appends a new foundation authority key. Existing
// foundation members authorize new members, so the allowlist can never
// be grown without at least one already-trusted signature.
func (p *Program) AddFoundationAllowlist(ctx context.Context, signer solana.PublicKey, newMember solana.PublicKey) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return err
	}
	gs.FoundationAllowlist = append(gs.FoundationAllowlist, serviceability.Pubkey(newMember))
	addr, err := serviceability.GlobalStatePDA(p.Program)
	if err != nil {
		return err
	}
	return p.persist(ctx, addr.Pubkey, p.Program, serviceability.AccountTypeGlobalState, gs)
}
