package program

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/doublezero-sub006/sdk/serviceability"
)

// CreateDeviceArgs carries the caller-supplied fields of a new Device.
// Owner is the signer's own key: devices are always created in Pending
// status, awaiting activator approval.
type CreateDeviceArgs struct {
	Code        string
	Contributor solana.PublicKey
	Location    solana.PublicKey
	Exchange    solana.PublicKey
	PublicIP    serviceability.IPv4
	MaxUsers    uint16
}

// CreateDevice allocates a new Device PDA owned by signer, in Pending
// status. Any device-allowlisted (or foundation) signer may create one;
// the activator is solely responsible for moving it to Activated.
func (p *Program) CreateDevice(ctx context.Context, signer solana.PublicKey, args CreateDeviceArgs) (solana.PublicKey, error) {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err := Authorize(RoleDeviceAllowlist, gs, signer, nil); err != nil {
		return solana.PublicKey{}, err
	}

	addr, err := serviceability.DevicePDA(p.Program, args.Code)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if _, ok, err := p.Store.Get(ctx, addr.Pubkey); err != nil {
		return solana.PublicKey{}, err
	} else if ok {
		return solana.PublicKey{}, serviceability.Err(serviceability.CodeAccountAlreadyInitialized, "device %s already exists", args.Code)
	}

	d := &serviceability.Device{
		BumpSeed:     addr.Bump,
		Owner:        serviceability.Pubkey(signer),
		Code:         args.Code,
		Contributor:  serviceability.Pubkey(args.Contributor),
		Location:     serviceability.Pubkey(args.Location),
		Exchange:     serviceability.Pubkey(args.Exchange),
		PublicIP:     args.PublicIP,
		DeviceHealth: serviceability.DeviceHealthPending,
		Status:       serviceability.DevicePending,
		MaxUsers:     args.MaxUsers,
	}
	if err := p.persist(ctx, addr.Pubkey, p.Program, serviceability.AccountTypeDevice, d); err != nil {
		return solana.PublicKey{}, err
	}

	// Bump the catalog entries this device references so their own
	// ReferenceCount-gated close stays authoritative (mirrors
	// CloseAccountLocation's doc comment: the bump here and the drop in
	// CloseAccountDevice of these counts is what makes the guard
	// meaningful instead of permanently zero).
	if err := p.bumpLocationReferenceCount(ctx, args.Location, 1); err != nil {
		return solana.PublicKey{}, err
	}
	if err := p.bumpExchangeReferenceCount(ctx, args.Exchange, 1); err != nil {
		return solana.PublicKey{}, err
	}
	return addr.Pubkey, nil
}

// bumpLocationReferenceCount adjusts addr's ReferenceCount if addr names
// an actual Location account. A Device's Location field is descriptive
// metadata, not an enforced foreign key — a zero address or one that was
// never registered as a Location is left alone rather than rejected.
func (p *Program) bumpLocationReferenceCount(ctx context.Context, addr solana.PublicKey, delta int32) error {
	if addr == (solana.PublicKey{}) {
		return nil
	}
	l, _, err := p.loadLocation(ctx, addr)
	if err != nil {
		if isAccountDoesNotExist(err) {
			return nil
		}
		return err
	}
	l.ReferenceCount = addReferenceCount(l.ReferenceCount, delta)
	return p.persist(ctx, addr, p.Program, serviceability.AccountTypeLocation, l)
}

func (p *Program) bumpExchangeReferenceCount(ctx context.Context, addr solana.PublicKey, delta int32) error {
	if addr == (solana.PublicKey{}) {
		return nil
	}
	e, err := p.loadExchange(ctx, addr)
	if err != nil {
		if isAccountDoesNotExist(err) {
			return nil
		}
		return err
	}
	e.ReferenceCount = addReferenceCount(e.ReferenceCount, delta)
	return p.persist(ctx, addr, p.Program, serviceability.AccountTypeExchange, e)
}

func isAccountDoesNotExist(err error) bool {
	var svcErr *serviceability.Error
	return errors.As(err, &svcErr) && svcErr.Code == serviceability.CodeAccountDoesNotExist
}

// addReferenceCount applies delta to a ReferenceCount without ever
// underflowing past zero: a release racing ahead of its matching bump
// (which this in-memory model never produces, but a real concurrent
// validator could) should not wrap a uint32 around to the top.
func addReferenceCount(count uint32, delta int32) uint32 {
	if delta < 0 && uint32(-delta) > count {
		return 0
	}
	return uint32(int64(count) + int64(delta))
}

// bumpDeviceReferenceCount adjusts a device's own ReferenceCount, used by
// AcceptLink/CloseAccountLink and CreateUser/CloseAccountUser to keep the
// device's close guard authoritative for every link and user that
// references it.
func (p *Program) bumpDeviceReferenceCount(ctx context.Context, addr solana.PublicKey, delta int32) error {
	if addr == (solana.PublicKey{}) {
		return nil
	}
	d, acc, err := p.loadDevice(ctx, addr)
	if err != nil {
		return err
	}
	d.ReferenceCount = addReferenceCount(d.ReferenceCount, delta)
	return p.persist(ctx, addr, acc.Owner, serviceability.AccountTypeDevice, d)
}

// ActivateDevice moves a Pending device to Activated. Only the activator
// may do this, mirroring the reconciler being the sole authority able to
// advance any pending entity (SPEC_FULL.md §7 / Design Note "cooperative
// concurrency").
func (p *Program) ActivateDevice(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleActivator, gs, signer, nil); err != nil {
		return err
	}
	d, acc, err := p.loadDevice(ctx, addr)
	if err != nil {
		return err
	}
	if d.Status != serviceability.DevicePending {
		return serviceability.Err(serviceability.CodeInvalidStatus, "device %s is %s, expected pending", d.Code, d.Status)
	}
	d.Status = serviceability.DeviceActivated
	return p.persist(ctx, addr, acc.Owner, serviceability.AccountTypeDevice, d)
}

// RejectDevice moves a Pending device to Rejected, permanently — there is
// no path back to Pending once rejected. Either the foundation or the
// activator may reject.
func (p *Program) RejectDevice(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey, reason string) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := AuthorizeAny([]Role{RoleFoundation, RoleActivator}, gs, signer, nil); err != nil {
		return err
	}
	d, acc, err := p.loadDevice(ctx, addr)
	if err != nil {
		return err
	}
	if d.Status != serviceability.DevicePending {
		return serviceability.Err(serviceability.CodeInvalidStatus, "device %s is %s, expected pending", d.Code, d.Status)
	}
	d.Status = serviceability.DeviceRejected
	return p.persist(ctx, addr, acc.Owner, serviceability.AccountTypeDevice, d)
}

// SuspendDevice moves an Activated device to Suspended. Both the
// foundation and the sentinel may suspend: the sentinel acts unilaterally
// on detected abuse, the foundation on policy grounds.
func (p *Program) SuspendDevice(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey) error {
	return p.setDeviceStatus(ctx, signer, addr, serviceability.DeviceActivated, serviceability.DeviceSuspended,
		[]Role{RoleFoundation, RoleSentinel})
}

// ResumeDevice moves a Suspended device back to Activated. Only the
// foundation may resume; the sentinel that suspended it is deliberately
// not given resume authority.
func (p *Program) ResumeDevice(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey) error {
	return p.setDeviceStatus(ctx, signer, addr, serviceability.DeviceSuspended, serviceability.DeviceActivated,
		[]Role{RoleFoundation})
}

func (p *Program) setDeviceStatus(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey, from, to serviceability.DeviceStatus, roles []Role) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := AuthorizeAny(roles, gs, signer, nil); err != nil {
		return err
	}
	d, acc, err := p.loadDevice(ctx, addr)
	if err != nil {
		return err
	}
	if d.Status != from {
		return serviceability.Err(serviceability.CodeInvalidStatus, "device %s is %s, expected %s", d.Code, d.Status, from)
	}
	d.Status = to
	return p.persist(ctx, addr, acc.Owner, serviceability.AccountTypeDevice, d)
}

// SetHealthDevice records the health-oracle's assessment of a device. It
// does not change Status — health and status are orthogonal axes per
// SPEC_FULL.md §5 — and may be called regardless of the device's current
// status so the oracle's view stays current even for a device mid-suspend.
func (p *Program) SetHealthDevice(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey, health serviceability.DeviceHealth) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleHealthOracle, gs, signer, nil); err != nil {
		return err
	}
	d, acc, err := p.loadDevice(ctx, addr)
	if err != nil {
		return err
	}
	d.DeviceHealth = health
	return p.persist(ctx, addr, acc.Owner, serviceability.AccountTypeDevice, d)
}

// DeleteDevice marks a device Deleting. As with DeleteLink, no resources
// are released here — CloseAccountDevice does that once every link and
// user referencing this device has itself been released, in the same
// call that closes the account.
func (p *Program) DeleteDevice(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	d, acc, err := p.loadDevice(ctx, addr)
	if err != nil {
		return err
	}
	owner := d.Owner
	if err := AuthorizeAny([]Role{RoleFoundation, RoleOwner}, gs, signer, &owner); err != nil {
		return err
	}
	if d.Status == serviceability.DeviceDeleting {
		return serviceability.Err(serviceability.CodeInvalidStatus, "device %s is already deleting", d.Code)
	}
	d.Status = serviceability.DeviceDeleting
	return p.persist(ctx, addr, acc.Owner, serviceability.AccountTypeDevice, d)
}

func deviceInterfaceIndex(d *serviceability.Device, name string) int {
	for i := range d.Interfaces {
		if d.Interfaces[i].Name == name {
			return i
		}
	}
	return -1
}

// bindDeviceInterface marks the named interface Pending, creating the
// entry if this is its first use. A physical port serves at most one link
// at a time, so rebinding an Activated interface to a new link is rejected
// rather than silently stealing it.
func (p *Program) bindDeviceInterface(ctx context.Context, deviceAddr solana.PublicKey, name string) error {
	d, acc, err := p.loadDevice(ctx, deviceAddr)
	if err != nil {
		return err
	}
	idx := deviceInterfaceIndex(d, name)
	switch {
	case idx == -1:
		d.Interfaces = append(d.Interfaces, serviceability.Interface{Name: name, Kind: serviceability.InterfacePhysical, Status: serviceability.InterfacePending})
	case d.Interfaces[idx].Status == serviceability.InterfaceActivated:
		return serviceability.Err(serviceability.CodeInvalidStatus, "interface %s is already in use", name)
	default:
		d.Interfaces[idx].Status = serviceability.InterfacePending
		d.Interfaces[idx].IPNet = serviceability.NetworkV4{}
	}
	return p.persist(ctx, deviceAddr, acc.Owner, serviceability.AccountTypeDevice, d)
}

// setDeviceInterfaceStatus moves a named interface to status, optionally
// recording the tunnel network it now carries. Used by ActivateLink
// (Activated, with the link's tunnel net) and CloseAccountLink (Unlinked,
// clearing it).
func (p *Program) setDeviceInterfaceStatus(ctx context.Context, deviceAddr solana.PublicKey, name string, status serviceability.InterfaceStatus, ipNet serviceability.NetworkV4) error {
	d, acc, err := p.loadDevice(ctx, deviceAddr)
	if err != nil {
		return err
	}
	idx := deviceInterfaceIndex(d, name)
	if idx == -1 {
		return serviceability.Err(serviceability.CodeAccountDoesNotExist, "device %s has no interface %s", d.Code, name)
	}
	d.Interfaces[idx].Status = status
	d.Interfaces[idx].IPNet = ipNet
	return p.persist(ctx, deviceAddr, acc.Owner, serviceability.AccountTypeDevice, d)
}

// UnlinkDeviceInterface drops an interface entry entirely, freeing its
// name for reuse by a future link. It never pulls an interface out from
// under a live link — an Activated interface must go through its link's
// DeleteLink/CloseAccountLink first, which leaves it Unlinked.
func (p *Program) UnlinkDeviceInterface(ctx context.Context, signer solana.PublicKey, deviceAddr solana.PublicKey, name string) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	d, acc, err := p.loadDevice(ctx, deviceAddr)
	if err != nil {
		return err
	}
	owner := d.Owner
	if err := AuthorizeAny([]Role{RoleFoundation, RoleActivator, RoleOwner}, gs, signer, &owner); err != nil {
		return err
	}
	idx := deviceInterfaceIndex(d, name)
	if idx == -1 {
		return serviceability.Err(serviceability.CodeAccountDoesNotExist, "device %s has no interface %s", d.Code, name)
	}
	if d.Interfaces[idx].Status == serviceability.InterfaceActivated {
		return serviceability.Err(serviceability.CodeInvalidStatus, "interface %s is still activated by a link", name)
	}
	d.Interfaces = append(d.Interfaces[:idx], d.Interfaces[idx+1:]...)
	return p.persist(ctx, deviceAddr, acc.Owner, serviceability.AccountTypeDevice, d)
}

// CloseAccountDevice removes a device account entirely. It is only valid
// once DeleteDevice has moved the device to Deleting and ReferenceCount
// has dropped to zero — every link and user that referenced this device
// must have released it first, the same live-count gate
// CloseAccountLocation/CloseAccountExchange/CloseAccountTenant use.
func (p *Program) CloseAccountDevice(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey, receiver solana.PublicKey) error {
	if addr == receiver {
		return serviceability.Err(serviceability.CodeInvalidArgument, "close and receiver accounts must differ")
	}
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	d, _, err := p.loadDevice(ctx, addr)
	if err != nil {
		return err
	}
	owner := d.Owner
	if err := AuthorizeAny([]Role{RoleFoundation, RoleActivator, RoleOwner}, gs, signer, &owner); err != nil {
		return err
	}
	if d.Status != serviceability.DeviceDeleting {
		return serviceability.Err(serviceability.CodeInvalidStatus, "device %s is %s, expected deleting", d.Code, d.Status)
	}
	if d.ReferenceCount != 0 {
		return serviceability.Err(serviceability.CodeTargetsNotEmpty, "device %s still has %d references", d.Code, d.ReferenceCount)
	}
	if err := p.bumpLocationReferenceCount(ctx, solana.PublicKey(d.Location), -1); err != nil {
		return err
	}
	if err := p.bumpExchangeReferenceCount(ctx, solana.PublicKey(d.Exchange), -1); err != nil {
		return err
	}
	return p.Store.Close(ctx, addr, receiver)
}

