package program

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/malbeclabs/doublezero-sub006/sdk/ledger"
	"github.com/malbeclabs/doublezero-sub006/sdk/serviceability"
	"github.com/stretchr/testify/require"
)

func newTestProgram(t *testing.T) (*Program, solana.PublicKey, solana.PublicKey, solana.PublicKey, solana.PublicKey) {
	t.Helper()
	store := ledger.NewStore()
	programID := solana.NewWallet().PublicKey()
	p := New(store, programID)

	foundation := solana.NewWallet().PublicKey()
	activator := solana.NewWallet().PublicKey()
	sentinel := solana.NewWallet().PublicKey()
	reservationAuth := solana.NewWallet().PublicKey()
	healthOracle := solana.NewWallet().PublicKey()

	ctx := context.Background()
	_, err := p.InitializeGlobalState(ctx, foundation, activator, healthOracle, sentinel, reservationAuth)
	require.NoError(t, err)

	return p, foundation, activator, sentinel, reservationAuth
}

// E1: Device activation.
func TestE1DeviceActivation(t *testing.T) {
	p, foundation, activator, _, _ := newTestProgram(t)
	ctx := context.Background()

	contributor := solana.NewWallet().PublicKey()
	location := solana.NewWallet().PublicKey()
	exchange := solana.NewWallet().PublicKey()

	deviceAddr, err := p.CreateDevice(ctx, foundation, CreateDeviceArgs{
		Code: "lax-dz01", Contributor: contributor, Location: location, Exchange: exchange,
		PublicIP: serviceability.IPv4{198, 51, 100, 9}, MaxUsers: 10,
	})
	require.NoError(t, err)

	d, _, err := p.loadDevice(ctx, deviceAddr)
	require.NoError(t, err)
	require.Equal(t, serviceability.DevicePending, d.Status)

	require.NoError(t, p.ActivateDevice(ctx, activator, deviceAddr))

	d, _, err = p.loadDevice(ctx, deviceAddr)
	require.NoError(t, err)
	require.Equal(t, serviceability.DeviceActivated, d.Status)

	// A non-activator may not activate.
	require.Error(t, p.ActivateDevice(ctx, foundation, deviceAddr))
}

// E2: User on-chain allocation.
func TestE2UserOnChainAllocation(t *testing.T) {
	p, foundation, activator, _, _ := newTestProgram(t)
	ctx := context.Background()

	require.NoError(t, p.SetFeatureFlag(ctx, foundation, serviceability.FeatureOnChainAllocation, true))

	deviceAddr, err := p.CreateDevice(ctx, foundation, CreateDeviceArgs{Code: "nyc-dz01", MaxUsers: 4})
	require.NoError(t, err)
	require.NoError(t, p.ActivateDevice(ctx, activator, deviceAddr))

	owner := solana.NewWallet().PublicKey()
	userAddr, err := p.CreateUser(ctx, owner, CreateUserArgs{
		Device: deviceAddr, UserType: serviceability.UserIBRLWithAllocatedIP, ClientIP: serviceability.IPv4{203, 0, 113, 5},
	})
	require.NoError(t, err)

	tunnelIDs := serviceability.NewIDAllocator(500, 600)
	dzIPs := serviceability.NewIPBlockAllocator(serviceability.NewNetworkV4(serviceability.IPv4{100, 64, 0, 0}, 16), 31)

	require.NoError(t, p.ActivateUserOnChainAllocation(ctx, activator, userAddr, tunnelIDs, dzIPs))

	u, _, err := p.loadUser(ctx, userAddr)
	require.NoError(t, err)
	require.Equal(t, serviceability.UserActivated, u.Status)
	require.Equal(t, uint16(500), u.TunnelID)
	require.Equal(t, serviceability.IPv4{100, 64, 0, 0}, u.DzIP)
}

// E3: Link lifecycle.
func TestE3LinkLifecycle(t *testing.T) {
	p, foundation, activator, _, _ := newTestProgram(t)
	ctx := context.Background()

	sideA, err := p.CreateDevice(ctx, foundation, CreateDeviceArgs{Code: "a", MaxUsers: 1})
	require.NoError(t, err)
	sideZ, err := p.CreateDevice(ctx, foundation, CreateDeviceArgs{Code: "z", MaxUsers: 1})
	require.NoError(t, err)
	require.NoError(t, p.ActivateDevice(ctx, activator, sideA))
	require.NoError(t, p.ActivateDevice(ctx, activator, sideZ))

	aDev, _, err := p.loadDevice(ctx, sideA)
	require.NoError(t, err)

	linkAddr, err := p.CreateLink(ctx, solana.PublicKey(aDev.Owner), CreateLinkArgs{
		Code: "a-z", SideA: sideA, SideAIfaceName: "Ethernet1", SideZ: sideZ, SideZIfaceName: "Ethernet1",
		Bandwidth: 10_000_000_000,
	})
	require.NoError(t, err)

	require.NoError(t, p.AcceptLink(ctx, solana.PublicKey(aDev.Owner), linkAddr))

	zDev, _, err := p.loadDevice(ctx, sideZ)
	require.NoError(t, err)
	require.Len(t, zDev.Interfaces, 1, "AcceptLink creates side Z's interface entry")
	require.Equal(t, serviceability.InterfacePending, zDev.Interfaces[0].Status)

	tunnelIDs := serviceability.NewIDAllocator(1, 100)
	tunnelBlock := serviceability.NewIPBlockAllocator(serviceability.NewNetworkV4(serviceability.IPv4{169, 254, 0, 0}, 16), 31)
	require.NoError(t, p.ActivateLink(ctx, activator, linkAddr, tunnelIDs, tunnelBlock))

	l, _, err := p.loadLink(ctx, linkAddr)
	require.NoError(t, err)
	require.Equal(t, serviceability.LinkActivated, l.Status)
	require.NotZero(t, l.TunnelID)

	aDev, _, err = p.loadDevice(ctx, sideA)
	require.NoError(t, err)
	require.Equal(t, serviceability.InterfaceActivated, aDev.Interfaces[0].Status)
	require.Equal(t, l.TunnelNet, aDev.Interfaces[0].IPNet)

	require.NoError(t, p.SuspendLink(ctx, foundation, linkAddr))
	require.NoError(t, p.ResumeLink(ctx, foundation, linkAddr))

	require.NoError(t, p.DeleteLink(ctx, foundation, linkAddr))
	l, _, err = p.loadLink(ctx, linkAddr)
	require.NoError(t, err)
	require.Equal(t, serviceability.LinkDeleting, l.Status)
	require.NotZero(t, l.TunnelID, "resources stay assigned until close, not at delete")

	require.NoError(t, p.CloseAccountLink(ctx, foundation, linkAddr, foundation, tunnelIDs, tunnelBlock))
	if next, ok := tunnelIDs.NextAvailable(); !ok || next != uint32(l.TunnelID) {
		t.Fatalf("expected tunnel id %d released on close, next available is %d (ok=%v)", l.TunnelID, next, ok)
	}
	_, _, err = p.loadLink(ctx, linkAddr)
	require.Error(t, err, "link account should no longer exist after close")

	aDev, _, err = p.loadDevice(ctx, sideA)
	require.NoError(t, err)
	require.Equal(t, serviceability.InterfaceUnlinked, aDev.Interfaces[0].Status)
	require.Equal(t, serviceability.NetworkV4{}, aDev.Interfaces[0].IPNet)

	require.NoError(t, p.UnlinkDeviceInterface(ctx, foundation, sideA, "Ethernet1"))
	aDev, _, err = p.loadDevice(ctx, sideA)
	require.NoError(t, err)
	require.Empty(t, aDev.Interfaces, "unlinked interface should be removed entirely")
}

// E4: Out-of-credits cascade.
func TestE4OutOfCreditsCascade(t *testing.T) {
	p, foundation, activator, sentinel, _ := newTestProgram(t)
	ctx := context.Background()

	deviceAddr, err := p.CreateDevice(ctx, foundation, CreateDeviceArgs{Code: "sjc-dz01", MaxUsers: 4})
	require.NoError(t, err)
	require.NoError(t, p.ActivateDevice(ctx, activator, deviceAddr))

	owner := solana.NewWallet().PublicKey()
	userAddr, err := p.CreateUser(ctx, owner, CreateUserArgs{Device: deviceAddr, ClientIP: serviceability.IPv4{203, 0, 113, 8}})
	require.NoError(t, err)
	require.NoError(t, p.ActivateUserLegacy(ctx, activator, userAddr, 700, serviceability.IPv4{100, 64, 1, 1}))

	apAddr, err := p.IssueAccessPass(ctx, foundation, serviceability.IPv4{203, 0, 113, 8}, owner, serviceability.AccessPassPrepaid, 10)
	require.NoError(t, err)

	// Still within grace: stays activated.
	require.NoError(t, p.CheckUserAccessPass(ctx, sentinel, userAddr, apAddr, 11, 5))
	u, _, err := p.loadUser(ctx, userAddr)
	require.NoError(t, err)
	require.Equal(t, serviceability.UserActivated, u.Status)

	// Past grace: falls to out-of-credits.
	require.NoError(t, p.CheckUserAccessPass(ctx, sentinel, userAddr, apAddr, 20, 5))
	u, _, err = p.loadUser(ctx, userAddr)
	require.NoError(t, err)
	require.Equal(t, serviceability.UserOutOfCredits, u.Status)

	// Refreshed: recovers to activated.
	require.NoError(t, p.RefreshAccessPass(ctx, sentinel, apAddr, 20))
	require.NoError(t, p.CheckUserAccessPass(ctx, sentinel, userAddr, apAddr, 21, 5))
	u, _, err = p.loadUser(ctx, userAddr)
	require.NoError(t, err)
	require.Equal(t, serviceability.UserActivated, u.Status)
}

// E5: Allocator exhaustion.
func TestE5AllocatorExhaustion(t *testing.T) {
	p, foundation, activator, _, _ := newTestProgram(t)
	ctx := context.Background()

	deviceAddr, err := p.CreateDevice(ctx, foundation, CreateDeviceArgs{Code: "den-dz01", MaxUsers: 1})
	require.NoError(t, err)
	require.NoError(t, p.ActivateDevice(ctx, activator, deviceAddr))

	owner1 := solana.NewWallet().PublicKey()
	_, err = p.CreateUser(ctx, owner1, CreateUserArgs{Device: deviceAddr, ClientIP: serviceability.IPv4{1, 1, 1, 1}})
	require.NoError(t, err)

	owner2 := solana.NewWallet().PublicKey()
	_, err = p.CreateUser(ctx, owner2, CreateUserArgs{Device: deviceAddr, ClientIP: serviceability.IPv4{2, 2, 2, 2}})
	require.Error(t, err)
	var svcErr *serviceability.Error
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, serviceability.CodeAllocatorExhausted, svcErr.Code)
}

// E7: Device reference counting gates close, and releases its catalog
// references once it does close.
func TestE7DeviceReferenceCountedClose(t *testing.T) {
	p, foundation, activator, _, _ := newTestProgram(t)
	ctx := context.Background()

	locationAddr, err := p.CreateLocation(ctx, foundation, "lax", "Los Angeles", "US", 34.0, -118.2)
	require.NoError(t, err)
	exchangeAddr, err := p.CreateExchange(ctx, foundation, "lax-ix", 34.0, -118.2)
	require.NoError(t, err)

	deviceAddr, err := p.CreateDevice(ctx, foundation, CreateDeviceArgs{
		Code: "lax-dz01", Location: locationAddr, Exchange: exchangeAddr, MaxUsers: 1,
	})
	require.NoError(t, err)

	loc, _, err := p.loadLocation(ctx, locationAddr)
	require.NoError(t, err)
	require.Equal(t, uint32(1), loc.ReferenceCount, "creating a device under a location bumps its reference count")
	exch, err := p.loadExchange(ctx, exchangeAddr)
	require.NoError(t, err)
	require.Equal(t, uint32(1), exch.ReferenceCount)

	require.NoError(t, p.ActivateDevice(ctx, activator, deviceAddr))

	owner := solana.NewWallet().PublicKey()
	userAddr, err := p.CreateUser(ctx, owner, CreateUserArgs{Device: deviceAddr, ClientIP: serviceability.IPv4{203, 0, 113, 1}})
	require.NoError(t, err)

	require.NoError(t, p.DeleteDevice(ctx, foundation, deviceAddr))

	// Still referenced by the pending user, so close must fail.
	err = p.CloseAccountDevice(ctx, foundation, deviceAddr, foundation)
	require.Error(t, err)
	var svcErr *serviceability.Error
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, serviceability.CodeTargetsNotEmpty, svcErr.Code)

	require.NoError(t, p.RequestBanUser(ctx, foundation, userAddr))
	require.NoError(t, p.BanUser(ctx, foundation, userAddr, nil, nil))
	require.NoError(t, p.CloseAccountUser(ctx, foundation, userAddr, foundation))

	require.NoError(t, p.CloseAccountDevice(ctx, foundation, deviceAddr, foundation))
	_, _, err = p.loadDevice(ctx, deviceAddr)
	require.Error(t, err, "device account should no longer exist after close")

	loc, _, err = p.loadLocation(ctx, locationAddr)
	require.NoError(t, err)
	require.Zero(t, loc.ReferenceCount, "closing the device drops the location's reference count back to zero")
	exch, err = p.loadExchange(ctx, exchangeAddr)
	require.NoError(t, err)
	require.Zero(t, exch.ReferenceCount)
}

// E8: Contributor suspend/resume and two-phase delete/close.
func TestE8ContributorLifecycle(t *testing.T) {
	p, foundation, _, _, _ := newTestProgram(t)
	ctx := context.Background()

	ataOwner := solana.NewWallet().PublicKey()
	addr, err := p.CreateContributor(ctx, foundation, "acme", ataOwner)
	require.NoError(t, err)
	require.NoError(t, p.ActivateContributor(ctx, foundation, addr))

	require.NoError(t, p.SuspendContributor(ctx, foundation, addr))
	require.NoError(t, p.ResumeContributor(ctx, ataOwner, addr), "the contributor's own ATA owner may resume it")

	require.NoError(t, p.DeleteContributor(ctx, foundation, addr))
	require.NoError(t, p.CloseAccountContributor(ctx, foundation, addr, foundation))

	_, err = p.loadContributor(ctx, addr)
	require.Error(t, err)
}

// E9: MulticastGroup publisher allowlist and suspend/reject/delete/close.
func TestE9MulticastGroupLifecycle(t *testing.T) {
	p, foundation, activator, _, _ := newTestProgram(t)
	ctx := context.Background()

	tenant := solana.NewWallet().PublicKey()
	addr, err := p.CreateMulticastGroup(ctx, foundation, "mg01", tenant, 1_000_000_000)
	require.NoError(t, err)

	block := serviceability.NewIPBlockAllocator(serviceability.NewNetworkV4(serviceability.IPv4{239, 0, 0, 0}, 24), 32)
	require.NoError(t, p.ActivateMulticastGroup(ctx, activator, addr, block))

	publisher := solana.NewWallet().PublicKey()
	require.NoError(t, p.PublishMulticastGroup(ctx, foundation, addr, publisher))

	m, err := p.loadMulticastGroup(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, uint32(1), m.PublisherCount)
	require.NotZero(t, m.MulticastIP)

	require.NoError(t, p.SuspendMulticastGroup(ctx, foundation, addr))
	require.NoError(t, p.ResumeMulticastGroup(ctx, foundation, addr))

	require.NoError(t, p.DeleteMulticastGroup(ctx, foundation, addr))
	require.NoError(t, p.CloseAccountMulticastGroup(ctx, foundation, addr, foundation, block))

	if next, ok := block.NextAvailable(); !ok || next != serviceability.NewNetworkV4(m.MulticastIP, 32) {
		t.Fatalf("expected multicast IP released on close, next available is %v (ok=%v)", next, ok)
	}
	_, err = p.loadMulticastGroup(ctx, addr)
	require.Error(t, err)
}

// E10: GlobalConfig init rejects overlapping pools and supports ASN
// updates and BGP community allocation.
func TestE10GlobalConfig(t *testing.T) {
	p, foundation, activator, _, _ := newTestProgram(t)
	ctx := context.Background()

	deviceBlock := serviceability.NewNetworkV4(serviceability.IPv4{169, 254, 0, 0}, 16)
	userBlock := serviceability.NewNetworkV4(serviceability.IPv4{100, 64, 0, 0}, 16)
	overlapping := serviceability.NewNetworkV4(serviceability.IPv4{169, 254, 1, 0}, 24)

	_, err := p.InitializeGlobalConfig(ctx, foundation, 65000, 65001, deviceBlock, userBlock, overlapping)
	require.Error(t, err, "multicast pool overlapping the device pool must be rejected")

	mcastBlock := serviceability.NewNetworkV4(serviceability.IPv4{239, 0, 0, 0}, 16)
	_, err = p.InitializeGlobalConfig(ctx, foundation, 65000, 65001, deviceBlock, userBlock, mcastBlock)
	require.NoError(t, err)

	require.NoError(t, p.SetGlobalConfigASNs(ctx, foundation, 65010, 65011))
	gc, err := p.loadGlobalConfig(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(65010), gc.LocalASN)

	c1, err := p.NextBGPCommunity(ctx, activator)
	require.NoError(t, err)
	c2, err := p.NextBGPCommunity(ctx, activator)
	require.NoError(t, err)
	require.Equal(t, c1+1, c2)
}

// E6: Idempotent re-activation.
func TestE6IdempotentReactivation(t *testing.T) {
	p, foundation, activator, _, _ := newTestProgram(t)
	ctx := context.Background()

	deviceAddr, err := p.CreateDevice(ctx, foundation, CreateDeviceArgs{Code: "iad-dz01", MaxUsers: 1})
	require.NoError(t, err)
	require.NoError(t, p.ActivateDevice(ctx, activator, deviceAddr))

	// Re-activating an already-activated device is rejected, not silently
	// re-applied: the reconciler relies on this to treat a resubmitted
	// activation as a no-op rather than double-allocating resources.
	err = p.ActivateDevice(ctx, activator, deviceAddr)
	require.Error(t, err)
	var svcErr *serviceability.Error
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, serviceability.CodeInvalidStatus, svcErr.Code)
}
