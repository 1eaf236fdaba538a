package activator

import (
	"context"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/malbeclabs/doublezero-sub006/sdk/ledger"
	"github.com/malbeclabs/doublezero-sub006/sdk/serviceability"
	"github.com/prometheus/client_golang/prometheus"
)

// Reconciler is the activator's single cooperative polling loop: refresh
// the local projection, compute at most one next action per object, and
// submit it. It never runs two advancements for the same object
// concurrently, and treats on-chain status as the only source of truth —
// there is no ambient "in-flight" tracking to get out of sync.
type Reconciler struct {
	log     *slog.Logger
	store   ledger.AccountStore
	program solana.PublicKey
	signer  solana.PublicKey
	clock   clockwork.Clock
	metrics *Metrics
	proj    *Projection

	// Activate performs the actual state advancement for a computed
	// Action. It is injected rather than hardcoded so tests can observe
	// computed actions without a full Program+allocator wiring, and so
	// cmd/activator can bind it to the real program handlers plus the
	// well-known resource-extension accounts.
	Activate func(ctx context.Context, action Action) error

	// CheckAccessPass is invoked once per seat-holding user on every
	// access-pass sweep tick. See accesspass_sweep.go.
	CheckAccessPass CheckAccessPassFunc
}

// Action is one computed next step for a single object: which account to
// advance, and what kind of advancement it needs. Receiver is only set for
// the Close* kinds — the wallet that collects the closed account's rent.
type Action struct {
	Kind     ActionKind
	Addr     solana.PublicKey
	Receiver solana.PublicKey
	Device   *serviceability.Device
	Link     *serviceability.Link
	User     *serviceability.User

	// InterfaceName is only set for ActionUnlinkInterface: the name of the
	// Unlinked interface entry on the Device at Addr to drop.
	InterfaceName string
}

type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionActivateDevice
	ActionActivateLink
	ActionActivateUser
	ActionCloseLink
	ActionCloseUser
	ActionCloseDevice
	ActionUnlinkInterface
)

func NewReconciler(log *slog.Logger, store ledger.AccountStore, program, signer solana.PublicKey, clock clockwork.Clock, metrics *Metrics) *Reconciler {
	return &Reconciler{
		log:     log,
		store:   store,
		program: program,
		signer:  signer,
		clock:   clock,
		metrics: metrics,
		proj:    NewProjection(),
	}
}

// Run blocks, polling on PollInterval until ctx is cancelled. The first
// poll happens immediately rather than waiting a full interval, so a
// freshly started activator does not sit idle before its first sweep.
func (r *Reconciler) Run(ctx context.Context, pollInterval, sweepInterval time.Duration) error {
	if err := r.pollOnce(ctx); err != nil {
		r.log.Error("initial poll failed", "error", err)
	}

	pollTicker := r.clock.NewTicker(pollInterval)
	defer pollTicker.Stop()
	sweepTicker := r.clock.NewTicker(sweepInterval)
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pollTicker.Chan():
			if err := r.pollOnce(ctx); err != nil {
				r.log.Error("poll failed", "error", err)
				r.metrics.PollErrors.Inc()
			}
		case <-sweepTicker.Chan():
			if err := r.sweepAccessPasses(ctx); err != nil {
				r.log.Error("access pass sweep failed", "error", err)
			}
		}
	}
}

func (r *Reconciler) pollOnce(ctx context.Context) error {
	timer := prometheus.NewTimer(r.metrics.PollDuration)
	defer timer.ObserveDuration()

	if err := r.proj.Refresh(ctx, r.store); err != nil {
		return err
	}

	for _, action := range r.computeActions() {
		if err := r.apply(ctx, action); err != nil {
			r.log.Warn("action failed, will retry next poll", "kind", action.Kind, "addr", action.Addr, "error", err)
			continue
		}
	}
	return nil
}

// computeActions derives the pending actions: a Device needing
// activation, a Link ready to activate now that both sides exist and are
// healthy, a User ready for allocation, a close for a Deleting Link or
// Device (the latter only once unreferenced) or a Deleting, Banned or
// Rejected User, and an unlink for each Unlinked interface on a Device.
// A Device can therefore appear once per Unlinked interface.
func (r *Reconciler) computeActions() []Action {
	var actions []Action

	for addr, d := range r.proj.Devices() {
		if d.Status == serviceability.DevicePending {
			actions = append(actions, Action{Kind: ActionActivateDevice, Addr: addr, Device: d})
		}
	}

	devices := r.proj.Devices()
	for addr, l := range r.proj.Links() {
		if l.Status != serviceability.LinkPending {
			continue
		}
		sideA, okA := devices[solana.PublicKey(l.SideA)]
		sideZ, okZ := devices[solana.PublicKey(l.SideZ)]
		if !okA || !okZ || sideA.Status != serviceability.DeviceActivated || sideZ.Status != serviceability.DeviceActivated {
			continue
		}
		actions = append(actions, Action{Kind: ActionActivateLink, Addr: addr, Link: l})
	}

	for addr, u := range r.proj.Users() {
		if u.Status != serviceability.UserPending {
			continue
		}
		dev, ok := devices[solana.PublicKey(u.Device)]
		if !ok || dev.Status != serviceability.DeviceActivated {
			continue
		}
		actions = append(actions, Action{Kind: ActionActivateUser, Addr: addr, User: u})
	}

	for addr, l := range r.proj.Links() {
		if l.Status == serviceability.LinkDeleting {
			actions = append(actions, Action{Kind: ActionCloseLink, Addr: addr, Receiver: r.signer, Link: l})
		}
	}

	for addr, u := range r.proj.Users() {
		if u.Status == serviceability.UserDeleting || u.Status == serviceability.UserBanned || u.Status == serviceability.UserRejected {
			actions = append(actions, Action{Kind: ActionCloseUser, Addr: addr, Receiver: r.signer, User: u})
		}
	}

	for addr, d := range r.proj.Devices() {
		if d.Status == serviceability.DeviceDeleting && d.ReferenceCount == 0 {
			actions = append(actions, Action{Kind: ActionCloseDevice, Addr: addr, Receiver: r.signer, Device: d})
			continue
		}
		for _, iface := range d.Interfaces {
			if iface.Status == serviceability.InterfaceUnlinked {
				actions = append(actions, Action{Kind: ActionUnlinkInterface, Addr: addr, Device: d, InterfaceName: iface.Name})
			}
		}
	}

	return actions
}

func (r *Reconciler) apply(ctx context.Context, action Action) error {
	if r.Activate == nil {
		return nil
	}
	before := action.statusLabel()
	if err := r.Activate(ctx, action); err != nil {
		return err
	}
	r.metrics.Transitions.WithLabelValues(action.entityType(), before, action.targetStatusLabel()).Inc()
	return nil
}

func (a Action) entityType() string {
	switch a.Kind {
	case ActionActivateDevice, ActionCloseDevice, ActionUnlinkInterface:
		return "device"
	case ActionActivateLink, ActionCloseLink:
		return "link"
	case ActionActivateUser, ActionCloseUser:
		return "user"
	default:
		return "unknown"
	}
}

func (a Action) statusLabel() string {
	switch a.Kind {
	case ActionActivateDevice, ActionCloseDevice, ActionUnlinkInterface:
		return a.Device.Status.String()
	case ActionActivateLink, ActionCloseLink:
		return a.Link.Status.String()
	case ActionActivateUser, ActionCloseUser:
		return a.User.Status.String()
	default:
		return "unknown"
	}
}

func (a Action) targetStatusLabel() string {
	switch a.Kind {
	case ActionActivateDevice:
		return serviceability.DeviceActivated.String()
	case ActionActivateLink:
		return serviceability.LinkActivated.String()
	case ActionActivateUser:
		return serviceability.UserActivated.String()
	case ActionCloseDevice, ActionCloseLink, ActionCloseUser:
		return "closed"
	case ActionUnlinkInterface:
		return "unlinked"
	default:
		return "unknown"
	}
}
