package program

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/doublezero-sub006/sdk/serviceability"
)

// CreateReservation reserves a seat against a device ahead of a User
// being created for it, so a burst of concurrent requests cannot
// over-subscribe a device's MaxUsers between CheckUserAccessPass and
// CreateUser. Only the reservation authority may create one.
func (p *Program) CreateReservation(ctx context.Context, signer solana.PublicKey, device solana.PublicKey, requester solana.PublicKey) (solana.PublicKey, error) {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err := Authorize(RoleReservationAuth, gs, signer, nil); err != nil {
		return solana.PublicKey{}, err
	}
	d, dAcc, err := p.loadDevice(ctx, device)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if d.ReservedSeats >= d.MaxUsers {
		return solana.PublicKey{}, serviceability.Err(serviceability.CodeAllocatorExhausted, "device %s has no free seats to reserve", d.Code)
	}
	addr, err := serviceability.ReservationPDA(p.Program, device, requester)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if _, ok, err := p.Store.Get(ctx, addr.Pubkey); err != nil {
		return solana.PublicKey{}, err
	} else if ok {
		return solana.PublicKey{}, serviceability.Err(serviceability.CodeAccountAlreadyInitialized, "reservation already exists for this device/requester pair")
	}
	r := &serviceability.Reservation{
		BumpSeed:  addr.Bump,
		Device:    serviceability.Pubkey(device),
		Requester: serviceability.Pubkey(requester),
		Status:    serviceability.ReservationReserved,
	}
	if err := p.persist(ctx, addr.Pubkey, p.Program, serviceability.AccountTypeReservation, r); err != nil {
		return solana.PublicKey{}, err
	}
	d.ReservedSeats++
	if err := p.persist(ctx, device, dAcc.Owner, serviceability.AccountTypeDevice, d); err != nil {
		return solana.PublicKey{}, err
	}
	return addr.Pubkey, nil
}

// SettleReservation marks a reservation Settled once its matching User
// account has actually been created, converting the provisional seat
// hold into a real one. The seat count itself does not move again here:
// CreateReservation already incremented it.
func (p *Program) SettleReservation(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleReservationAuth, gs, signer, nil); err != nil {
		return err
	}
	r, acc, err := p.loadReservation(ctx, addr)
	if err != nil {
		return err
	}
	if r.Status != serviceability.ReservationReserved {
		return serviceability.Err(serviceability.CodeInvalidStatus, "reservation is %s, expected reserved", r.Status)
	}
	r.Status = serviceability.ReservationSettled
	return p.persist(ctx, addr, acc.Owner, serviceability.AccountTypeReservation, r)
}

// ReleaseReservation abandons a reservation that never settled — the
// requester gave up before CreateUser — and frees the seat it was
// holding.
func (p *Program) ReleaseReservation(ctx context.Context, signer solana.PublicKey, addr solana.PublicKey) error {
	gs, err := p.loadGlobalState(ctx)
	if err != nil {
		return err
	}
	if err := Authorize(RoleReservationAuth, gs, signer, nil); err != nil {
		return err
	}
	r, acc, err := p.loadReservation(ctx, addr)
	if err != nil {
		return err
	}
	if r.Status != serviceability.ReservationReserved {
		return serviceability.Err(serviceability.CodeInvalidStatus, "reservation is %s, expected reserved", r.Status)
	}
	r.Status = serviceability.ReservationReleased
	if err := p.persist(ctx, addr, acc.Owner, serviceability.AccountTypeReservation, r); err != nil {
		return err
	}
	return p.releaseDeviceSeat(ctx, solana.PublicKey(r.Device))
}
