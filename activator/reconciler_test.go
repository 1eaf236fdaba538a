package activator

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/malbeclabs/doublezero-sub006/sdk/ledger"
	"github.com/malbeclabs/doublezero-sub006/sdk/serviceability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func newTestReconciler(t *testing.T) (*Reconciler, *ledger.Store, solana.PublicKey) {
	t.Helper()
	store := ledger.NewStore()
	programID := solana.NewWallet().PublicKey()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := NewMetrics(prometheus.NewRegistry())
	r := NewReconciler(log, store, programID, solana.NewWallet().PublicKey(), clockwork.NewFakeClock(), metrics)
	return r, store, programID
}

func putDevice(t *testing.T, store *ledger.Store, programID solana.PublicKey, code string, status serviceability.DeviceStatus) solana.PublicKey {
	t.Helper()
	addr, err := serviceability.DevicePDA(programID, code)
	require.NoError(t, err)
	d := &serviceability.Device{BumpSeed: addr.Bump, Code: code, Status: status}
	require.NoError(t, store.Put(context.Background(), addr.Pubkey, ledger.Account{Owner: programID, Data: serviceability.Encode(serviceability.AccountTypeDevice, d)}))
	return addr.Pubkey
}

func TestComputeActionsFindsPendingDevice(t *testing.T) {
	r, store, programID := newTestReconciler(t)
	addr := putDevice(t, store, programID, "lax-dz01", serviceability.DevicePending)

	require.NoError(t, r.proj.Refresh(context.Background(), store))
	actions := r.computeActions()

	require.Len(t, actions, 1)
	require.Equal(t, ActionActivateDevice, actions[0].Kind)
	require.Equal(t, addr, actions[0].Addr)
}

func TestComputeActionsSkipsAlreadyActivatedDevice(t *testing.T) {
	r, store, programID := newTestReconciler(t)
	putDevice(t, store, programID, "lax-dz01", serviceability.DeviceActivated)

	require.NoError(t, r.proj.Refresh(context.Background(), store))
	require.Empty(t, r.computeActions())
}

func TestComputeActionsDefersLinkUntilBothDevicesActivated(t *testing.T) {
	r, store, programID := newTestReconciler(t)
	sideA := putDevice(t, store, programID, "a", serviceability.DevicePending)
	sideZ := putDevice(t, store, programID, "z", serviceability.DeviceActivated)

	linkAddr, err := serviceability.LinkPDA(programID, "a-z")
	require.NoError(t, err)
	l := &serviceability.Link{BumpSeed: linkAddr.Bump, Code: "a-z", SideA: serviceability.Pubkey(sideA), SideZ: serviceability.Pubkey(sideZ), Status: serviceability.LinkPending}
	require.NoError(t, store.Put(context.Background(), linkAddr.Pubkey, ledger.Account{Owner: programID, Data: serviceability.Encode(serviceability.AccountTypeLink, l)}))

	require.NoError(t, r.proj.Refresh(context.Background(), store))
	actions := r.computeActions()

	// Side A is still pending, so the link must not be actioned yet — only
	// the device activation should appear.
	require.Len(t, actions, 1)
	require.Equal(t, ActionActivateDevice, actions[0].Kind)
}

func TestComputeActionsFindsDeletingLinkAndUser(t *testing.T) {
	r, store, programID := newTestReconciler(t)
	ctx := context.Background()

	linkAddr, err := serviceability.LinkPDA(programID, "a-z")
	require.NoError(t, err)
	l := &serviceability.Link{BumpSeed: linkAddr.Bump, Code: "a-z", Status: serviceability.LinkDeleting}
	require.NoError(t, store.Put(ctx, linkAddr.Pubkey, ledger.Account{Owner: programID, Data: serviceability.Encode(serviceability.AccountTypeLink, l)}))

	userAddr, err := serviceability.UserPDA(programID, serviceability.IPv4{203, 0, 113, 9}, solana.NewWallet().PublicKey())
	require.NoError(t, err)
	u := &serviceability.User{BumpSeed: userAddr.Bump, Status: serviceability.UserDeleting}
	require.NoError(t, store.Put(ctx, userAddr.Pubkey, ledger.Account{Owner: programID, Data: serviceability.Encode(serviceability.AccountTypeUser, u)}))

	require.NoError(t, r.proj.Refresh(ctx, store))
	actions := r.computeActions()

	require.Len(t, actions, 2)
	kinds := map[ActionKind]bool{}
	for _, a := range actions {
		kinds[a.Kind] = true
		require.Equal(t, r.signer, a.Receiver)
	}
	require.True(t, kinds[ActionCloseLink])
	require.True(t, kinds[ActionCloseUser])
}

func TestComputeActionsSkipsDeletingDeviceWithReferences(t *testing.T) {
	r, store, programID := newTestReconciler(t)
	ctx := context.Background()

	addr, err := serviceability.DevicePDA(programID, "lax-dz01")
	require.NoError(t, err)
	d := &serviceability.Device{BumpSeed: addr.Bump, Code: "lax-dz01", Status: serviceability.DeviceDeleting, ReferenceCount: 1}
	require.NoError(t, store.Put(ctx, addr.Pubkey, ledger.Account{Owner: programID, Data: serviceability.Encode(serviceability.AccountTypeDevice, d)}))

	require.NoError(t, r.proj.Refresh(ctx, store))
	require.Empty(t, r.computeActions(), "a device still referenced must not be actioned for close")
}

func TestComputeActionsFindsUnlinkedInterface(t *testing.T) {
	r, store, programID := newTestReconciler(t)
	ctx := context.Background()

	addr, err := serviceability.DevicePDA(programID, "lax-dz01")
	require.NoError(t, err)
	d := &serviceability.Device{
		BumpSeed: addr.Bump, Code: "lax-dz01", Status: serviceability.DeviceActivated,
		Interfaces: []serviceability.Interface{{Name: "Ethernet1", Status: serviceability.InterfaceUnlinked}},
	}
	require.NoError(t, store.Put(ctx, addr.Pubkey, ledger.Account{Owner: programID, Data: serviceability.Encode(serviceability.AccountTypeDevice, d)}))

	require.NoError(t, r.proj.Refresh(ctx, store))
	actions := r.computeActions()

	require.Len(t, actions, 1)
	require.Equal(t, ActionUnlinkInterface, actions[0].Kind)
	require.Equal(t, "Ethernet1", actions[0].InterfaceName)
}

func TestApplyIncrementsTransitionCounterOnSuccess(t *testing.T) {
	r, store, programID := newTestReconciler(t)
	addr := putDevice(t, store, programID, "lax-dz01", serviceability.DevicePending)

	calls := 0
	r.Activate = func(ctx context.Context, action Action) error {
		calls++
		return nil
	}

	require.NoError(t, r.proj.Refresh(context.Background(), store))
	require.NoError(t, r.pollOnce(context.Background()))
	require.Equal(t, 1, calls)

	count := testutil.ToFloat64(r.metrics.Transitions.WithLabelValues("device", "pending", "activated"))
	require.Equal(t, 1.0, count)
	_ = addr
}
