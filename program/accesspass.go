package program

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/doublezero-sub006/sdk/serviceability"
)

// IssueAccessPass creates or refreshes an AccessPass for (clientIP,
// payer), recording the current epoch as its last-access mark. The
// foundation or an authorized device-allowlist signer (the contributor
// sponsoring the seat) may issue one.
func (p *Program) IssueAccessPass(ctx context.Context, signer solana.PublicKey, clientIP serviceability.IPv4, payer solana.PublicKey, accessType serviceability.AccessPassType, epoch uint64) (solana.PublicKey, error) {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err := AuthorizeAny([]Role{RoleFoundation, RoleDeviceAllowlist}, gs, signer, nil); err != nil {
		return solana.PublicKey{}, err
	}
	addr, err := serviceability.AccessPassPDA(p.Program, clientIP, payer)
	if err != nil {
		return solana.PublicKey{}, err
	}
	a := &serviceability.AccessPass{
		BumpSeed:        addr.Bump,
		ClientIP:        clientIP,
		UserPayer:       serviceability.Pubkey(payer),
		AccessType:      accessType,
		LastAccessEpoch: epoch,
	}
	if err := p.persist(ctx, addr.Pubkey, p.Program, serviceability.AccountTypeAccessPass, a); err != nil {
		return solana.PublicKey{}, err
	}
	return addr.Pubkey, nil
}

// RefreshAccessPass bumps LastAccessEpoch for a still-paying user. The
// activator's periodic sweep does not call it; the sweep only runs
// CheckUserAccessPass against the epoch recorded here.
func (p *Program) RefreshAccessPass(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey, epoch uint64) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := AuthorizeAny([]Role{RoleFoundation, RoleSentinel}, gs, signer, nil); err != nil {
		return err
	}
	ap, acc, err := p.loadAccessPass(ctx, addr)
	if err != nil {
		return err
	}
	ap.LastAccessEpoch = epoch
	return p.persist(ctx, addr, acc.Owner, serviceability.AccountTypeAccessPass, ap)
}
