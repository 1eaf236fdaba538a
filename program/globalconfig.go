package program

import (
	"context"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/doublezero-sub006/sdk/serviceability"
)

func (p *Program) loadGlobalConfig(ctx context.Context) (*serviceability.GlobalConfig, error) {
	addr, err := serviceability.GlobalConfigPDA(p.Program)
	if err != nil {
		return nil, err
	}
	acc, ok, err := p.Store.Get(ctx, addr.Pubkey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, serviceability.Err(serviceability.CodeAccountDoesNotExist, "global config not initialized")
	}
	tag, v, err := serviceability.Decode(acc.Data)
	if err != nil {
		return nil, err
	}
	if tag != serviceability.AccountTypeGlobalConfig {
		return nil, serviceability.Err(serviceability.CodeInvalidAccountType, "expected global config, got %s", tag)
	}
	return v.(*serviceability.GlobalConfig), nil
}

// InitializeGlobalConfig creates the program's singleton policy object:
// the BGP ASNs and the three address pools every activation handler
// allocates tunnel IDs, tunnel networks, and multicast IPs from. It may
// only run once, like InitializeGlobalState, and the three pools must be
// non-overlapping or a later allocator built from an overlapping pair
// could hand out the same address twice.
func (p *Program) InitializeGlobalConfig(ctx context.Context, signer solana.PublicKey, localASN, remoteASN uint32, deviceTunnelBlock, userTunnelBlock, multicastGroupBlock serviceability.NetworkV4) (solana.PublicKey, error) {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return solana.PublicKey{}, err
	}
	if localASN == 0 || remoteASN == 0 {
		return solana.PublicKey{}, serviceability.Err(serviceability.CodeInvalidArgument, "ASNs must be non-zero")
	}
	pools := []serviceability.NetworkV4{deviceTunnelBlock, userTunnelBlock, multicastGroupBlock}
	for i := 0; i < len(pools); i++ {
		for j := i + 1; j < len(pools); j++ {
			if networksOverlap(pools[i], pools[j]) {
				return solana.PublicKey{}, serviceability.Err(serviceability.CodeInvalidArgument, "address pools %s and %s overlap", pools[i], pools[j])
			}
		}
	}

	addr, err := serviceability.GlobalConfigPDA(p.Program)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if _, ok, err := p.Store.Get(ctx, addr.Pubkey); err != nil {
		return solana.PublicKey{}, err
	} else if ok {
		return solana.PublicKey{}, serviceability.Err(serviceability.CodeAccountAlreadyInitialized, "global config already initialized")
	}
	gc := &serviceability.GlobalConfig{
		BumpSeed:            addr.Bump,
		LocalASN:            localASN,
		RemoteASN:           remoteASN,
		DeviceTunnelBlock:   deviceTunnelBlock,
		UserTunnelBlock:     userTunnelBlock,
		MulticastGroupBlock: multicastGroupBlock,
	}
	if err := p.persist(ctx, addr.Pubkey, p.Program, serviceability.AccountTypeGlobalConfig, gc); err != nil {
		return solana.PublicKey{}, err
	}
	return addr.Pubkey, nil
}

// SetGlobalConfigASNs updates the local and remote BGP ASNs. The address
// pools are deliberately not mutable here — changing them after devices
// and links have already allocated out of the old pool would strand those
// allocations, so a pool change requires a fresh program deployment.
func (p *Program) SetGlobalConfigASNs(ctx context.Context, signer solana.PublicKey, localASN, remoteASN uint32) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return err
	}
	if localASN == 0 || remoteASN == 0 {
		return serviceability.Err(serviceability.CodeInvalidArgument, "ASNs must be non-zero")
	}
	gc, err := p.loadGlobalConfig(ctx)
	if err != nil {
		return err
	}
	gc.LocalASN = localASN
	gc.RemoteASN = remoteASN
	addr, err := serviceability.GlobalConfigPDA(p.Program)
	if err != nil {
		return err
	}
	return p.persist(ctx, addr.Pubkey, p.Program, serviceability.AccountTypeGlobalConfig, gc)
}

// NextBGPCommunity hands out the next BGP community value and persists the
// bump, so two concurrent link activations never receive the same one.
func (p *Program) NextBGPCommunity(ctx context.Context, signer solana.PublicKey) (uint16, error) {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return 0, err
	}
	if err := Authorize(RoleActivator, gs, signer, nil); err != nil {
		return 0, err
	}
	gc, err := p.loadGlobalConfig(ctx)
	if err != nil {
		return 0, err
	}
	community := gc.NextBGPCommunity
	gc.NextBGPCommunity++
	addr, err := serviceability.GlobalConfigPDA(p.Program)
	if err != nil {
		return 0, err
	}
	if err := p.persist(ctx, addr.Pubkey, p.Program, serviceability.AccountTypeGlobalConfig, gc); err != nil {
		return 0, err
	}
	return community, nil
}

// networksOverlap reports whether a and b share any address, comparing
// each against the other's prefix the way a router's longest-prefix-match
// table would.
func networksOverlap(a, b serviceability.NetworkV4) bool {
	prefix := a.PrefixLen()
	if b.PrefixLen() < prefix {
		prefix = b.PrefixLen()
	}
	mask := uint32(0xFFFFFFFF)
	if prefix < 32 {
		mask <<= 32 - prefix
	}
	aIP := a.IP()
	bIP := b.IP()
	return binary.BigEndian.Uint32(aIP[:])&mask == binary.BigEndian.Uint32(bIP[:])&mask
}
