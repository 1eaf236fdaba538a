package program

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/doublezero-sub006/sdk/serviceability"
)

type CreateUserArgs struct {
	Device   solana.PublicKey
	Tenant   solana.PublicKey
	UserType serviceability.UserType
	CyoaType serviceability.CyoaType
	ClientIP serviceability.IPv4
}

// CreateUser creates a User PDA in Pending status, keyed by (clientIP,
// signer), so a repeat request from the same caller for the same IP fails
// with CodeAccountAlreadyInitialized rather than minting a duplicate. The
// device must already be Activated and have a free reserved seat.
func (p *Program) CreateUser(ctx context.Context, signer solana.PublicKey, args CreateUserArgs) (solana.PublicKey, error) {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err := Authorize(RoleUserAllowlist, gs, signer, nil); err != nil {
		return solana.PublicKey{}, err
	}
	d, dAcc, err := p.loadDevice(ctx, args.Device)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if d.Status != serviceability.DeviceActivated {
		return solana.PublicKey{}, serviceability.Err(serviceability.CodeInvalidStatus, "device %s is %s, expected activated", d.Code, d.Status)
	}
	if d.ReservedSeats >= d.MaxUsers {
		return solana.PublicKey{}, serviceability.Err(serviceability.CodeAllocatorExhausted, "device %s has no free user seats", d.Code)
	}

	addr, err := serviceability.UserPDA(p.Program, args.ClientIP, signer)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if _, ok, err := p.Store.Get(ctx, addr.Pubkey); err != nil {
		return solana.PublicKey{}, err
	} else if ok {
		return solana.PublicKey{}, serviceability.Err(serviceability.CodeAccountAlreadyInitialized, "user for %s already exists", args.ClientIP)
	}

	u := &serviceability.User{
		BumpSeed: addr.Bump,
		Owner:    serviceability.Pubkey(signer),
		Device:   serviceability.Pubkey(args.Device),
		Tenant:   serviceability.Pubkey(args.Tenant),
		UserType: args.UserType,
		CyoaType: args.CyoaType,
		ClientIP: args.ClientIP,
		Status:   serviceability.UserPending,
	}
	if err := p.persist(ctx, addr.Pubkey, p.Program, serviceability.AccountTypeUser, u); err != nil {
		return solana.PublicKey{}, err
	}

	d.ReservedSeats++
	d.ReferenceCount++
	if err := p.persist(ctx, args.Device, dAcc.Owner, serviceability.AccountTypeDevice, d); err != nil {
		return solana.PublicKey{}, err
	}
	return addr.Pubkey, nil
}

// ActivateUserOnChainAllocation moves a Pending user to Activated,
// assigning its tunnel ID and dz_ip from the supplied resource extensions.
// Used when GlobalState.FeatureOnChainAllocation is set (SPEC_FULL.md §11
// Open Question 1).
func (p *Program) ActivateUserOnChainAllocation(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey, tunnelIDs *serviceability.IDAllocator, dzIPs *serviceability.IPBlockAllocator) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if !gs.FeatureEnabled(serviceability.FeatureOnChainAllocation) {
		return serviceability.Err(serviceability.CodeNotAllowed, "on-chain allocation feature is not enabled")
	}
	if err := Authorize(RoleActivator, gs, signer, nil); err != nil {
		return err
	}
	u, acc, err := p.loadUser(ctx, addr)
	if err != nil {
		return err
	}
	if u.Status != serviceability.UserPending {
		return serviceability.Err(serviceability.CodeInvalidStatus, "user is %s, expected pending", u.Status)
	}

	tunnelID, err := tunnelIDs.Allocate()
	if err != nil {
		return err
	}
	dzBlock, err := dzIPs.Allocate()
	if err != nil {
		tunnelIDs.Unassign(tunnelID)
		return err
	}

	u.TunnelID = uint16(tunnelID)
	u.DzIP = dzBlock.IP()
	u.Status = serviceability.UserActivated
	return p.persist(ctx, addr, acc.Owner, serviceability.AccountTypeUser, u)
}

// ActivateUserLegacy moves a Pending user to Activated using a
// caller-supplied dz_ip and tunnel ID rather than allocating one
// on-chain — the legacy path kept alongside on-chain allocation per
// SPEC_FULL.md §11 Open Question 1, for deployments where an
// off-chain IPAM still owns the address space.
func (p *Program) ActivateUserLegacy(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey, tunnelID uint16, dzIP serviceability.IPv4) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleActivator, gs, signer, nil); err != nil {
		return err
	}
	u, acc, err := p.loadUser(ctx, addr)
	if err != nil {
		return err
	}
	if u.Status != serviceability.UserPending {
		return serviceability.Err(serviceability.CodeInvalidStatus, "user is %s, expected pending", u.Status)
	}
	u.TunnelID = tunnelID
	u.DzIP = dzIP
	u.Status = serviceability.UserActivated
	return p.persist(ctx, addr, acc.Owner, serviceability.AccountTypeUser, u)
}

// CheckUserAccessPass compares the supplied AccessPass's LastAccessEpoch,
// plus graceEpochs, with currentEpoch: an Activated user whose pass has
// lapsed moves to OutOfCredits, and an OutOfCredits user whose pass is
// current again moves back to Activated. It does not check that the pass
// is the one keyed by the user's (ClientIP, Owner). The activator's
// periodic access-pass sweep calls it for every seat-holding user with a
// matching pass; the sentinel may also call it.
func (p *Program) CheckUserAccessPass(ctx context.Context, signer solana.PublicKey, userAddr, accessPassAddr solana.PublicKey, currentEpoch uint64, graceEpochs uint64) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := AuthorizeAny([]Role{RoleSentinel, RoleActivator}, gs, signer, nil); err != nil {
		return err
	}
	u, uAcc, err := p.loadUser(ctx, userAddr)
	if err != nil {
		return err
	}
	ap, _, err := p.loadAccessPass(ctx, accessPassAddr)
	if err != nil {
		return err
	}
	if !u.Status.ActiveForSeat() {
		return nil
	}
	expired := currentEpoch > ap.LastAccessEpoch+graceEpochs
	if expired && u.Status == serviceability.UserActivated {
		u.Status = serviceability.UserOutOfCredits
		return p.persist(ctx, userAddr, uAcc.Owner, serviceability.AccountTypeUser, u)
	}
	if !expired && u.Status == serviceability.UserOutOfCredits {
		u.Status = serviceability.UserActivated
		return p.persist(ctx, userAddr, uAcc.Owner, serviceability.AccountTypeUser, u)
	}
	return nil
}

// RequestBanUser marks a user PendingBan without yet releasing its
// resources, giving the foundation a window to review before BanUser
// makes the ban permanent.
func (p *Program) RequestBanUser(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := AuthorizeAny([]Role{RoleSentinel, RoleFoundation}, gs, signer, nil); err != nil {
		return err
	}
	u, acc, err := p.loadUser(ctx, addr)
	if err != nil {
		return err
	}
	if !u.Status.ActiveForSeat() {
		return serviceability.Err(serviceability.CodeInvalidStatus, "user is %s, not eligible for ban", u.Status)
	}
	u.Status = serviceability.UserPendingBan
	return p.persist(ctx, addr, acc.Owner, serviceability.AccountTypeUser, u)
}

// BanUser finalizes a ban, releasing the user's tunnel ID and dz_ip back
// to their allocators (when allocated on-chain) and freeing its device
// seat.
func (p *Program) BanUser(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey, tunnelIDs *serviceability.IDAllocator, dzIPs *serviceability.IPBlockAllocator) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleFoundation, gs, signer, nil); err != nil {
		return err
	}
	u, acc, err := p.loadUser(ctx, addr)
	if err != nil {
		return err
	}
	if u.Status != serviceability.UserPendingBan {
		return serviceability.Err(serviceability.CodeInvalidStatus, "user is %s, expected pending_ban", u.Status)
	}
	if tunnelIDs != nil && u.TunnelID != 0 {
		_ = tunnelIDs.Unassign(uint32(u.TunnelID))
	}
	if dzIPs != nil && u.DzIP != (serviceability.IPv4{}) {
		_ = dzIPs.Unassign(serviceability.NewNetworkV4(u.DzIP, dzIPs.BlockPrefixLen))
	}
	if err := p.releaseDeviceSeat(ctx, solana.PublicKey(u.Device)); err != nil {
		return err
	}
	u.Status = serviceability.UserBanned
	return p.persist(ctx, addr, acc.Owner, serviceability.AccountTypeUser, u)
}

// DeleteUser marks a seat-holding user (Pending, Activated, OutOfCredits
// or Suspended) Deleting at its owner's
// own request, the voluntary counterpart to RequestBanUser/BanUser. The
// device seat is released immediately since, unlike a link's tunnel
// resources, there is no allocator bookkeeping tied to it that needs to
// wait for CloseAccountUser.
func (p *Program) DeleteUser(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	u, acc, err := p.loadUser(ctx, addr)
	if err != nil {
		return err
	}
	owner := u.Owner
	if err := AuthorizeAny([]Role{RoleFoundation, RoleOwner}, gs, signer, &owner); err != nil {
		return err
	}
	if !u.Status.ActiveForSeat() {
		return serviceability.Err(serviceability.CodeInvalidStatus, "user is %s, not deletable", u.Status)
	}
	if err := p.releaseDeviceSeat(ctx, solana.PublicKey(u.Device)); err != nil {
		return err
	}
	u.Status = serviceability.UserDeleting
	return p.persist(ctx, addr, acc.Owner, serviceability.AccountTypeUser, u)
}

// CloseAccountUser removes a Banned, Rejected or Deleting user account and
// drops the device's ReferenceCount for it. It does not change the
// device's ReservedSeats; BanUser and DeleteUser release the seat before a
// user reaches Banned or Deleting.
func (p *Program) CloseAccountUser(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey, receiver solana.PublicKey) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	u, _, err := p.loadUser(ctx, addr)
	if err != nil {
		return err
	}
	owner := u.Owner
	if err := AuthorizeAny([]Role{RoleFoundation, RoleActivator, RoleOwner}, gs, signer, &owner); err != nil {
		return err
	}
	if u.Status != serviceability.UserBanned && u.Status != serviceability.UserRejected && u.Status != serviceability.UserDeleting {
		return serviceability.Err(serviceability.CodeInvalidStatus, "user is %s, not closeable", u.Status)
	}
	if err := p.bumpDeviceReferenceCount(ctx, solana.PublicKey(u.Device), -1); err != nil {
		return err
	}
	return p.Store.Close(ctx, addr, receiver)
}

func (p *Program) releaseDeviceSeat(ctx context.Context, deviceAddr solana.PublicKey) error {
	d, acc, err := p.loadDevice(ctx, deviceAddr)
	if err != nil {
		return err
	}
	if d.ReservedSeats > 0 {
		d.ReservedSeats--
	}
	return p.persist(ctx, deviceAddr, acc.Owner, serviceability.AccountTypeDevice, d)
}
