// Package serviceability defines the typed on-chain accounts of the
// DoubleZero control plane: their Go representations, canonical encoding,
// deterministic addressing, and the bitmap/interval allocators that back
// tunnel IDs, tunnel networks, dz_ip prefixes, and multicast groups.
package serviceability

import "fmt"

// AccountType is the one-byte discriminant every account payload starts with.
type AccountType uint8

const (
	AccountTypeGlobalState       AccountType = 1
	AccountTypeGlobalConfig      AccountType = 2
	AccountTypeLocation          AccountType = 3
	AccountTypeExchange          AccountType = 4
	AccountTypeDevice            AccountType = 5
	AccountTypeLink              AccountType = 6
	AccountTypeUser              AccountType = 7
	AccountTypeMulticastGroup    AccountType = 8
	AccountTypeProgramConfig     AccountType = 9
	AccountTypeContributor       AccountType = 10
	AccountTypeAccessPass        AccountType = 11
	AccountTypeResourceExtension AccountType = 12
	AccountTypeTenant            AccountType = 13
	AccountTypeReservation       AccountType = 14
)

// Pubkey is a 32-byte program address or signer identity.
type Pubkey [32]byte

func (p Pubkey) IsZero() bool { return p == Pubkey{} }

// IPv4 is a 4-byte address.
type IPv4 [4]byte

func (ip IPv4) String() string { return fmt.Sprintf("%d.%d.%d.%d", ip[0], ip[1], ip[2], ip[3]) }

// NetworkV4 is an IPv4 prefix: 4 address bytes followed by a 1-byte prefix length.
type NetworkV4 [5]byte

func (n NetworkV4) IP() IPv4          { return IPv4{n[0], n[1], n[2], n[3]} }
func (n NetworkV4) PrefixLen() uint8  { return n[4] }
func (n NetworkV4) String() string    { return fmt.Sprintf("%s/%d", n.IP(), n[4]) }
func NewNetworkV4(ip IPv4, prefix uint8) NetworkV4 {
	return NetworkV4{ip[0], ip[1], ip[2], ip[3], prefix}
}

// --- status enums ---

type LocationStatus uint8

const (
	LocationPending LocationStatus = iota
	LocationActivated
	LocationSuspended
)

func (s LocationStatus) String() string { return statusName(locationStatusNames, uint8(s)) }

var locationStatusNames = []string{"pending", "activated", "suspended"}

type ExchangeStatus uint8

const (
	ExchangePending ExchangeStatus = iota
	ExchangeActivated
	ExchangeSuspended
)

func (s ExchangeStatus) String() string { return statusName(exchangeStatusNames, uint8(s)) }

var exchangeStatusNames = []string{"pending", "activated", "suspended"}

type ContributorStatus uint8

const (
	ContributorPending ContributorStatus = iota
	ContributorActivated
	ContributorSuspended
	ContributorDeleting
)

func (s ContributorStatus) String() string { return statusName(contributorStatusNames, uint8(s)) }

var contributorStatusNames = []string{"pending", "activated", "suspended", "deleting"}

type DeviceStatus uint8

const (
	DevicePending DeviceStatus = iota
	DeviceActivated
	DeviceSuspended
	DeviceRejected
	DeviceDeleting
)

func (s DeviceStatus) String() string { return statusName(deviceStatusNames, uint8(s)) }

var deviceStatusNames = []string{"pending", "activated", "suspended", "rejected", "deleting"}

type DeviceHealth uint8

const (
	DeviceHealthUnknown DeviceHealth = iota
	DeviceHealthPending
	DeviceHealthReadyForLinks
	DeviceHealthReadyForUsers
	DeviceHealthImpaired
)

func (h DeviceHealth) String() string { return statusName(deviceHealthNames, uint8(h)) }

var deviceHealthNames = []string{"unknown", "pending", "ready_for_links", "ready_for_users", "impaired"}

type InterfaceKind uint8

const (
	InterfaceLoopback InterfaceKind = iota
	InterfacePhysical
)

func (k InterfaceKind) String() string { return statusName(interfaceKindNames, uint8(k)) }

var interfaceKindNames = []string{"loopback", "physical"}

type InterfaceStatus uint8

const (
	InterfacePending InterfaceStatus = iota
	InterfaceActivated
	InterfaceRejected
	InterfaceUnlinked
	InterfaceDeleting
)

func (s InterfaceStatus) String() string { return statusName(interfaceStatusNames, uint8(s)) }

var interfaceStatusNames = []string{"pending", "activated", "rejected", "unlinked", "deleting"}

// Interface is a named port on a Device participating in at most one Link.
type Interface struct {
	Name           string
	Kind           InterfaceKind
	Status         InterfaceStatus
	IPNet          NetworkV4 // zero value means unassigned
	NodeSegmentIdx uint16
}

type LinkType uint8

const (
	LinkWAN LinkType = iota
	LinkDZX
)

func (t LinkType) String() string { return statusName(linkTypeNames, uint8(t)) }

var linkTypeNames = []string{"WAN", "DZX"}

type LinkStatus uint8

const (
	LinkRequested LinkStatus = iota
	LinkPending
	LinkActivated
	LinkSuspended
	LinkRejected
	LinkDeleting
)

func (s LinkStatus) String() string { return statusName(linkStatusNames, uint8(s)) }

var linkStatusNames = []string{"requested", "pending", "activated", "suspended", "rejected", "deleting"}

type LinkHealth uint8

const (
	LinkHealthUnknown LinkHealth = iota
	LinkHealthPending
	LinkHealthReadyForService
	LinkHealthImpaired
)

func (h LinkHealth) String() string { return statusName(linkHealthNames, uint8(h)) }

var linkHealthNames = []string{"unknown", "pending", "ready_for_service", "impaired"}

type MulticastGroupStatus uint8

const (
	MulticastGroupPending MulticastGroupStatus = iota
	MulticastGroupActivated
	MulticastGroupSuspended
	MulticastGroupRejected
	MulticastGroupDeleting
)

func (s MulticastGroupStatus) String() string { return statusName(multicastGroupStatusNames, uint8(s)) }

var multicastGroupStatusNames = []string{"pending", "activated", "suspended", "rejected", "deleting"}

type UserType uint8

const (
	UserIBRL UserType = iota
	UserIBRLWithAllocatedIP
	UserServer
	UserMulticastPublisher
	UserMulticastSubscriber
)

func (t UserType) String() string { return statusName(userTypeNames, uint8(t)) }

var userTypeNames = []string{"ibrl", "ibrl_with_allocated_ip", "server", "multicast_publisher", "multicast_subscriber"}

// Tag returns the byte identifying this user type. UserPDA does not use
// it: a User's address derives from (client_ip, owner) only, so one owner
// has at most one User per client IP whatever its user type.
func (t UserType) Tag() byte { return byte(t) }

type CyoaType uint8

const (
	CyoaNone CyoaType = iota
	CyoaGREOverDIA
	CyoaGREOverFabric
	CyoaGREOverPrivatePeer
	CyoaGREOverPublicPeer
	CyoaGREOverCable
)

type UserStatus uint8

const (
	UserPending UserStatus = iota
	UserActivated
	UserOutOfCredits
	UserSuspended
	UserBanned
	UserPendingBan
	UserRejected
	UserDeleting
)

func (s UserStatus) String() string { return statusName(userStatusNames, uint8(s)) }

var userStatusNames = []string{"pending", "activated", "out_of_credits", "suspended", "banned", "pending_ban", "rejected", "deleting"}

// ActiveForSeat reports whether a User in this status still occupies a
// reserved seat on its device (testable property 1 in SPEC_FULL.md §10).
func (s UserStatus) ActiveForSeat() bool {
	switch s {
	case UserPending, UserActivated, UserOutOfCredits, UserSuspended:
		return true
	default:
		return false
	}
}

type AccessPassType uint8

const (
	AccessPassPrepaid AccessPassType = iota
	AccessPassSolanaValidator
	AccessPassOthers
)

type ReservationStatus uint8

const (
	ReservationReserved ReservationStatus = iota
	ReservationSettled
	ReservationReleased
)

func (s ReservationStatus) String() string { return statusName(reservationStatusNames, uint8(s)) }

var reservationStatusNames = []string{"reserved", "settled", "released"}

type TenantPaymentStatus uint8

const (
	TenantDelinquent TenantPaymentStatus = iota
	TenantPaid
)

func (s TenantPaymentStatus) String() string { return statusName(tenantPaymentStatusNames, uint8(s)) }

var tenantPaymentStatusNames = []string{"delinquent", "paid"}

func statusName(names []string, v uint8) string {
	if int(v) < len(names) {
		return names[v]
	}
	return "unknown"
}

// --- entities ---

// GlobalState is the program's singleton root: allowlists, role keys, and
// feature flags.
type GlobalState struct {
	BumpSeed               uint8
	FoundationAllowlist    []Pubkey
	DeviceAllowlist        []Pubkey
	UserAllowlist          []Pubkey
	ActivatorAuthority     Pubkey
	HealthOracle           Pubkey
	SentinelAuthority      Pubkey
	ReservationAuthority   Pubkey
	InternetLatencyCollect Pubkey
	FeatureFlags           uint64
	MinCompatibleVersion   uint32
	AccountIndex           uint64
}

// FeatureFlag bits in GlobalState.FeatureFlags.
type FeatureFlag uint64

const (
	FeatureOnChainAllocation FeatureFlag = 1 << 0
)

func (g *GlobalState) FeatureEnabled(f FeatureFlag) bool { return g.FeatureFlags&uint64(f) != 0 }

// GlobalConfig is the program's singleton policy object.
type GlobalConfig struct {
	BumpSeed            uint8
	LocalASN            uint32
	RemoteASN           uint32
	DeviceTunnelBlock   NetworkV4
	UserTunnelBlock     NetworkV4
	MulticastGroupBlock NetworkV4
	NextBGPCommunity    uint16
}

type Location struct {
	BumpSeed       uint8
	Code           string
	Name           string
	Country        string
	Lat            float64
	Lng            float64
	Status         LocationStatus
	ReferenceCount uint32
}

type Exchange struct {
	BumpSeed       uint8
	Code           string
	Name           string
	Lat            float64
	Lng            float64
	Status         ExchangeStatus
	ReferenceCount uint32
}

type Contributor struct {
	BumpSeed       uint8
	Code           string
	ATAOwner       Pubkey
	Status         ContributorStatus
	ReferenceCount uint32
}

// Tenant is a billing/administrative grouping that Users and
// MulticastGroups may be issued under. Supplemental to the distilled spec;
// see SPEC_FULL.md §5.
type Tenant struct {
	BumpSeed                 uint8
	Code                     string
	VrfID                    uint16
	ReferenceCount           uint32
	Administrators           []Pubkey
	PaymentStatus            TenantPaymentStatus
	TokenAccount             Pubkey
	BillingRate              uint64
	BillingLastDeductionEpoch uint64
}

type Device struct {
	BumpSeed       uint8
	Owner          Pubkey
	Code           string
	Contributor    Pubkey
	Location       Pubkey
	Exchange       Pubkey
	PublicIP       IPv4
	DzPrefixes     []NetworkV4
	Interfaces     []Interface
	DeviceHealth   DeviceHealth
	Status         DeviceStatus
	ReservedSeats  uint16
	MaxUsers       uint16
	ReferenceCount uint32
}

type Link struct {
	BumpSeed          uint8
	Code              string
	Contributor       Pubkey
	LinkType          LinkType
	SideA             Pubkey
	SideAIfaceName    string
	SideZ             Pubkey
	SideZIfaceName    string
	Bandwidth         uint64
	Mtu               uint32
	DelayNs           uint64
	JitterNs          uint64
	TunnelID          uint16
	TunnelNet         NetworkV4
	LinkHealth        LinkHealth
	Status            LinkStatus
}

type MulticastGroup struct {
	BumpSeed        uint8
	Code            string
	Tenant          Pubkey
	MulticastIP     IPv4
	MaxBandwidth    uint64
	PublisherCount  uint32
	SubscriberCount uint32
	PublisherAllow  []Pubkey
	SubscriberAllow []Pubkey
	Status          MulticastGroupStatus
}

type User struct {
	BumpSeed  uint8
	Owner     Pubkey
	Device    Pubkey
	Tenant    Pubkey
	UserType  UserType
	CyoaType  CyoaType
	ClientIP  IPv4
	DzIP      IPv4
	TunnelID  uint16
	TunnelNet NetworkV4
	Status    UserStatus
}

type AccessPass struct {
	BumpSeed        uint8
	ClientIP        IPv4
	UserPayer       Pubkey
	AccessType      AccessPassType
	LastAccessEpoch uint64
}

// Reservation is a two-phase seat reservation against a Device.
type Reservation struct {
	BumpSeed  uint8
	Device    Pubkey
	Requester Pubkey
	Status    ReservationStatus
}

type ProgramConfig struct {
	BumpSeed         uint8
	VersionMajor     uint32
	VersionMinor     uint32
	VersionPatch     uint32
	MinCompatMajor   uint32
	MinCompatMinor   uint32
	MinCompatPatch   uint32
}
