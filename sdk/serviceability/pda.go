package serviceability

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// Seed prefixes, one per account type, matching the Rust program's own
// seed table so addresses derived here land on the same accounts a real
// validator would compute.
const (
	seedGlobalState       = "globalstate"
	seedGlobalConfig      = "globalconfig"
	seedProgramConfig     = "programconfig"
	seedLocation           = "location"
	seedExchange           = "exchange"
	seedContributor        = "contributor"
	seedTenant              = "tenant"
	seedDevice              = "device"
	seedLink                = "link"
	seedUser                = "user"
	seedMulticastGroup      = "multicastgroup"
	seedAccessPass          = "accesspass"
	seedReservation         = "reservation"
	seedResourceExtension   = "resource_extension"
	seedLinkIDs             = "link_ids"
	seedDeviceTunnelBlock   = "device_tunnel_block"
	seedUserTunnelBlock     = "user_tunnel_block"
	seedMulticastGroupBlock = "multicastgroup_block"
	seedMulticastPubBlock   = "multicastgroup_pub_block"
)

// Address is a derived program address together with the bump seed that
// produced it off the ed25519 curve.
type Address struct {
	Pubkey solana.PublicKey
	Bump   uint8
}

// Derive computes a deterministic program-derived address for the given
// seed parts, the same way every entity's PDA is computed: a fixed
// per-type tag followed by caller-supplied identifying material.
func Derive(program solana.PublicKey, seeds ...[]byte) (Address, error) {
	addr, bump, err := solana.FindProgramAddress(seeds, program)
	if err != nil {
		return Address{}, err
	}
	return Address{Pubkey: addr, Bump: bump}, nil
}

func GlobalStatePDA(program solana.PublicKey) (Address, error) {
	return Derive(program, []byte(seedGlobalState))
}

func GlobalConfigPDA(program solana.PublicKey) (Address, error) {
	return Derive(program, []byte(seedGlobalConfig))
}

func ProgramConfigPDA(program solana.PublicKey) (Address, error) {
	return Derive(program, []byte(seedProgramConfig))
}

func LocationPDA(program solana.PublicKey, code string) (Address, error) {
	return Derive(program, []byte(seedLocation), []byte(code))
}

func ExchangePDA(program solana.PublicKey, code string) (Address, error) {
	return Derive(program, []byte(seedExchange), []byte(code))
}

func ContributorPDA(program solana.PublicKey, code string) (Address, error) {
	return Derive(program, []byte(seedContributor), []byte(code))
}

func TenantPDA(program solana.PublicKey, code string) (Address, error) {
	return Derive(program, []byte(seedTenant), []byte(code))
}

func DevicePDA(program solana.PublicKey, code string) (Address, error) {
	return Derive(program, []byte(seedDevice), []byte(code))
}

func LinkPDA(program solana.PublicKey, code string) (Address, error) {
	return Derive(program, []byte(seedLink), []byte(code))
}

// UserPDA addresses a User by its owning pair of (client IP, requesting
// wallet) so the same caller requesting the same IP twice lands on the
// same account rather than creating a duplicate.
func UserPDA(program solana.PublicKey, clientIP IPv4, owner solana.PublicKey) (Address, error) {
	return Derive(program, []byte(seedUser), clientIP[:], owner[:])
}

func MulticastGroupPDA(program solana.PublicKey, code string) (Address, error) {
	return Derive(program, []byte(seedMulticastGroup), []byte(code))
}

func AccessPassPDA(program solana.PublicKey, clientIP IPv4, payer solana.PublicKey) (Address, error) {
	return Derive(program, []byte(seedAccessPass), clientIP[:], payer[:])
}

func ReservationPDA(program solana.PublicKey, device solana.PublicKey, requester solana.PublicKey) (Address, error) {
	return Derive(program, []byte(seedReservation), device[:], requester[:])
}

// ResourceExtensionPDA addresses the allocator account extending the
// given parent account for the given resource kind and slot index. Slot
// distinguishes multiple extensions of the same kind off one parent (for
// example a device's per-NIC dz_ip blocks).
func ResourceExtensionPDA(program solana.PublicKey, parent solana.PublicKey, kind ResourceKind, slot uint16) (Address, error) {
	var slotBuf [2]byte
	binary.LittleEndian.PutUint16(slotBuf[:], slot)
	return Derive(program, []byte(seedResourceExtension), parent[:], []byte{byte(kind)}, slotBuf[:])
}

func LinkTunnelIDBlockPDA(program solana.PublicKey) (Address, error) {
	return Derive(program, []byte(seedLinkIDs))
}

func DeviceTunnelBlockExtensionPDA(program solana.PublicKey, device solana.PublicKey) (Address, error) {
	return Derive(program, []byte(seedDeviceTunnelBlock), device[:])
}

func UserTunnelBlockExtensionPDA(program solana.PublicKey, device solana.PublicKey) (Address, error) {
	return Derive(program, []byte(seedUserTunnelBlock), device[:])
}

func MulticastGroupBlockPDA(program solana.PublicKey) (Address, error) {
	return Derive(program, []byte(seedMulticastGroupBlock))
}

func MulticastPublisherBlockPDA(program solana.PublicKey) (Address, error) {
	return Derive(program, []byte(seedMulticastPubBlock))
}
