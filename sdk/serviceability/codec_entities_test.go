package serviceability

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDeviceEncodeDecodeRoundTrip(t *testing.T) {
	d := &Device{
		BumpSeed:    255,
		Owner:       Pubkey{1},
		Code:        "lax-dz01",
		Contributor: Pubkey{2},
		Location:    Pubkey{3},
		Exchange:    Pubkey{4},
		PublicIP:    IPv4{198, 51, 100, 1},
		DzPrefixes:  []NetworkV4{NewNetworkV4(IPv4{100, 64, 0, 0}, 29)},
		Interfaces: []Interface{
			{Name: "Loopback255", Kind: InterfaceLoopback, Status: InterfaceActivated, NodeSegmentIdx: 1},
			{Name: "Ethernet1", Kind: InterfacePhysical, Status: InterfacePending, IPNet: NewNetworkV4(IPv4{10, 0, 0, 1}, 31)},
		},
		DeviceHealth:  DeviceHealthReadyForUsers,
		Status:        DeviceActivated,
		ReservedSeats: 3,
		MaxUsers:      512,
	}

	raw := Encode(AccountTypeDevice, d)
	tag, v, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tag != AccountTypeDevice {
		t.Fatalf("unexpected tag: %v", tag)
	}
	got := v.(*Device)
	if diff := cmp.Diff(d, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestUserEncodeDecodeRoundTrip(t *testing.T) {
	u := &User{
		BumpSeed: 254,
		Owner:    Pubkey{9},
		Device:   Pubkey{8},
		Tenant:   Pubkey{7},
		UserType: UserIBRLWithAllocatedIP,
		CyoaType: CyoaGREOverFabric,
		ClientIP: IPv4{203, 0, 113, 9},
		DzIP:     IPv4{100, 64, 0, 5},
		TunnelID: 42,
		Status:   UserActivated,
	}
	raw := Encode(AccountTypeUser, u)
	_, v, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(u, v.(*User)); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestGlobalStateDecodeFillsDefaultsForOlderSchema(t *testing.T) {
	g := &GlobalState{
		BumpSeed:           1,
		ActivatorAuthority: Pubkey{1},
		HealthOracle:       Pubkey{2},
	}
	raw := Encode(AccountTypeGlobalState, g)
	// Truncate as if this were an account written before FeatureFlags,
	// MinCompatibleVersion, and AccountIndex were added to the schema.
	trimmed := raw[:len(raw)-8-4-8]

	_, v, err := Decode(trimmed)
	if err != nil {
		t.Fatalf("decode of trimmed payload should still succeed: %v", err)
	}
	got := v.(*GlobalState)
	if got.FeatureFlags != 0 || got.MinCompatibleVersion != 0 || got.AccountIndex != 0 {
		t.Fatalf("expected zero defaults for trailing fields, got %+v", got)
	}
	if got.ActivatorAuthority != g.ActivatorAuthority {
		t.Fatalf("leading fields should still decode correctly, got %+v", got.ActivatorAuthority)
	}
}

func TestResourceExtensionEncodeDecodeRoundTrip(t *testing.T) {
	ext := NewIDResourceExtension(ResourceTunnelIDs, Pubkey{1}, 0, 0, 4096)
	if _, err := ext.IDs.Allocate(); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	raw := Encode(AccountTypeResourceExtension, ext)
	_, v, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := v.(*ResourceExtension)
	if got.Kind != ResourceTunnelIDs || got.Parent != ext.Parent {
		t.Fatalf("unexpected decoded extension: %+v", got)
	}
	if next, _ := got.IDs.NextAvailable(); next != 1 {
		t.Fatalf("expected id 0 to remain assigned after round trip, next free is %d", next)
	}
}
