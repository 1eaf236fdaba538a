package activator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/doublezero-sub006/sdk/ledger"
	"github.com/malbeclabs/doublezero-sub006/sdk/serviceability"
)

// Projection is the reconciler's own read-only view of every
// serviceability account, rebuilt from a full program snapshot each poll
// and swapped in atomically so concurrent readers (the metrics endpoint,
// the access-pass sweep) never see a half-built map.
type Projection struct {
	mu sync.RWMutex

	devices         map[solana.PublicKey]*serviceability.Device
	links           map[solana.PublicKey]*serviceability.Link
	users           map[solana.PublicKey]*serviceability.User
	multicastGroups map[solana.PublicKey]*serviceability.MulticastGroup
	accessPasses    map[solana.PublicKey]*serviceability.AccessPass
	reservations    map[solana.PublicKey]*serviceability.Reservation

	ready atomic.Bool
}

func NewProjection() *Projection { return &Projection{} }

// Refresh fetches every account of interest from store and atomically
// replaces the projection's contents, mirroring the
// fetch-then-swap-under-lock pattern the rest of the pack uses for any
// periodically-refreshed in-memory view.
func (proj *Projection) Refresh(ctx context.Context, store ledger.AccountStore) error {
	devices, err := fetchTyped[*serviceability.Device](ctx, store, serviceability.AccountTypeDevice)
	if err != nil {
		return fmt.Errorf("activator: refresh devices: %w", err)
	}
	links, err := fetchTyped[*serviceability.Link](ctx, store, serviceability.AccountTypeLink)
	if err != nil {
		return fmt.Errorf("activator: refresh links: %w", err)
	}
	users, err := fetchTyped[*serviceability.User](ctx, store, serviceability.AccountTypeUser)
	if err != nil {
		return fmt.Errorf("activator: refresh users: %w", err)
	}
	groups, err := fetchTyped[*serviceability.MulticastGroup](ctx, store, serviceability.AccountTypeMulticastGroup)
	if err != nil {
		return fmt.Errorf("activator: refresh multicast groups: %w", err)
	}
	passes, err := fetchTyped[*serviceability.AccessPass](ctx, store, serviceability.AccountTypeAccessPass)
	if err != nil {
		return fmt.Errorf("activator: refresh access passes: %w", err)
	}
	reservations, err := fetchTyped[*serviceability.Reservation](ctx, store, serviceability.AccountTypeReservation)
	if err != nil {
		return fmt.Errorf("activator: refresh reservations: %w", err)
	}

	proj.mu.Lock()
	proj.devices = devices
	proj.links = links
	proj.users = users
	proj.multicastGroups = groups
	proj.accessPasses = passes
	proj.reservations = reservations
	proj.mu.Unlock()
	proj.ready.Store(true)
	return nil
}

func fetchTyped[T any](ctx context.Context, store ledger.AccountStore, tag serviceability.AccountType) (map[solana.PublicKey]T, error) {
	raw, err := store.GetAllOfType(ctx, tag)
	if err != nil {
		return nil, err
	}
	out := make(map[solana.PublicKey]T, len(raw))
	for addr, acc := range raw {
		_, v, err := serviceability.Decode(acc.Data)
		if err != nil {
			// A single corrupt account should not take down the whole
			// poll cycle; it is skipped and will be retried next cycle.
			continue
		}
		typed, ok := v.(T)
		if !ok {
			continue
		}
		out[addr] = typed
	}
	return out, nil
}

func (proj *Projection) Ready() bool { return proj.ready.Load() }

func (proj *Projection) Devices() map[solana.PublicKey]*serviceability.Device {
	proj.mu.RLock()
	defer proj.mu.RUnlock()
	return proj.devices
}

func (proj *Projection) Links() map[solana.PublicKey]*serviceability.Link {
	proj.mu.RLock()
	defer proj.mu.RUnlock()
	return proj.links
}

func (proj *Projection) Users() map[solana.PublicKey]*serviceability.User {
	proj.mu.RLock()
	defer proj.mu.RUnlock()
	return proj.users
}

func (proj *Projection) MulticastGroups() map[solana.PublicKey]*serviceability.MulticastGroup {
	proj.mu.RLock()
	defer proj.mu.RUnlock()
	return proj.multicastGroups
}

func (proj *Projection) AccessPasses() map[solana.PublicKey]*serviceability.AccessPass {
	proj.mu.RLock()
	defer proj.mu.RUnlock()
	return proj.accessPasses
}

func (proj *Projection) Reservations() map[solana.PublicKey]*serviceability.Reservation {
	proj.mu.RLock()
	defer proj.mu.RUnlock()
	return proj.reservations
}
