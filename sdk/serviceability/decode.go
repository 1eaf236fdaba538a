package serviceability

import "github.com/malbeclabs/doublezero-sub006/sdk/codec"

// Decode reads the 1-byte AccountType tag and dispatches to the matching
// per-entity decoder. The returned value is always a pointer to the
// concrete entity type.
func Decode(data []byte) (AccountType, any, error) {
	r := codec.NewReader(data)
	tagByte, err := r.ReadU8()
	if err != nil {
		return 0, nil, err
	}
	tag := AccountType(tagByte)
	var v any
	switch tag {
	case AccountTypeGlobalState:
		v, err = decodeGlobalState(r)
	case AccountTypeGlobalConfig:
		v, err = decodeGlobalConfig(r)
	case AccountTypeLocation:
		v, err = decodeLocation(r)
	case AccountTypeExchange:
		v, err = decodeExchange(r)
	case AccountTypeContributor:
		v, err = decodeContributor(r)
	case AccountTypeTenant:
		v, err = decodeTenant(r)
	case AccountTypeDevice:
		v, err = decodeDevice(r)
	case AccountTypeLink:
		v, err = decodeLink(r)
	case AccountTypeUser:
		v, err = decodeUser(r)
	case AccountTypeMulticastGroup:
		v, err = decodeMulticastGroup(r)
	case AccountTypeAccessPass:
		v, err = decodeAccessPass(r)
	case AccountTypeReservation:
		v, err = decodeReservation(r)
	case AccountTypeProgramConfig:
		v, err = decodeProgramConfig(r)
	case AccountTypeResourceExtension:
		v, err = DecodeResourceExtension(r)
	default:
		return tag, nil, Err(CodeInvalidAccountType, "unknown account type %d", tagByte)
	}
	return tag, v, err
}

func pkOf(b [32]byte) Pubkey { return Pubkey(b) }
func pksOf(bs [][32]byte) []Pubkey {
	if bs == nil {
		return nil
	}
	out := make([]Pubkey, len(bs))
	for i, b := range bs {
		out[i] = Pubkey(b)
	}
	return out
}

func decodeGlobalState(r *codec.Reader) (*GlobalState, error) {
	g := &GlobalState{}
	var err error
	if g.BumpSeed, err = r.ReadU8(); err != nil {
		return nil, err
	}
	fa, err := r.ReadPubkeySlice()
	if err != nil {
		return nil, err
	}
	g.FoundationAllowlist = pksOf(fa)
	da, err := r.ReadPubkeySlice()
	if err != nil {
		return nil, err
	}
	g.DeviceAllowlist = pksOf(da)
	ua, err := r.ReadPubkeySlice()
	if err != nil {
		return nil, err
	}
	g.UserAllowlist = pksOf(ua)
	aa, err := r.ReadPubkey()
	if err != nil {
		return nil, err
	}
	g.ActivatorAuthority = Pubkey(aa)
	ho, err := r.ReadPubkey()
	if err != nil {
		return nil, err
	}
	g.HealthOracle = Pubkey(ho)
	sa, err := r.ReadPubkey()
	if err != nil {
		return nil, err
	}
	g.SentinelAuthority = Pubkey(sa)
	ra, err := r.ReadPubkey()
	if err != nil {
		return nil, err
	}
	g.ReservationAuthority = Pubkey(ra)
	il, err := r.ReadPubkey()
	if err != nil {
		return nil, err
	}
	g.InternetLatencyCollect = Pubkey(il)
	// FeatureFlags, MinCompatibleVersion and AccountIndex were added after
	// the initial schema; TryRead defaults them to zero for any account
	// written before they existed.
	g.FeatureFlags = r.TryReadU64(0)
	g.MinCompatibleVersion = r.TryReadU32(0)
	g.AccountIndex = r.TryReadU64(0)
	return g, nil
}

func decodeGlobalConfig(r *codec.Reader) (*GlobalConfig, error) {
	g := &GlobalConfig{}
	var err error
	if g.BumpSeed, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if g.LocalASN, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if g.RemoteASN, err = r.ReadU32(); err != nil {
		return nil, err
	}
	dtb, err := r.ReadNetworkV4()
	if err != nil {
		return nil, err
	}
	g.DeviceTunnelBlock = NetworkV4(dtb)
	utb, err := r.ReadNetworkV4()
	if err != nil {
		return nil, err
	}
	g.UserTunnelBlock = NetworkV4(utb)
	mgb, err := r.ReadNetworkV4()
	if err != nil {
		return nil, err
	}
	g.MulticastGroupBlock = NetworkV4(mgb)
	g.NextBGPCommunity = r.TryReadU16(0)
	return g, nil
}

func decodeLocation(r *codec.Reader) (*Location, error) {
	l := &Location{}
	var err error
	if l.BumpSeed, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if l.Code, err = r.ReadString(); err != nil {
		return nil, err
	}
	if l.Name, err = r.ReadString(); err != nil {
		return nil, err
	}
	if l.Country, err = r.ReadString(); err != nil {
		return nil, err
	}
	if l.Lat, err = r.ReadF64(); err != nil {
		return nil, err
	}
	if l.Lng, err = r.ReadF64(); err != nil {
		return nil, err
	}
	status, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	l.Status = LocationStatus(status)
	if l.ReferenceCount, err = r.ReadU32(); err != nil {
		return nil, err
	}
	return l, nil
}

func decodeExchange(r *codec.Reader) (*Exchange, error) {
	e := &Exchange{}
	var err error
	if e.BumpSeed, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if e.Code, err = r.ReadString(); err != nil {
		return nil, err
	}
	if e.Name, err = r.ReadString(); err != nil {
		return nil, err
	}
	if e.Lat, err = r.ReadF64(); err != nil {
		return nil, err
	}
	if e.Lng, err = r.ReadF64(); err != nil {
		return nil, err
	}
	status, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	e.Status = ExchangeStatus(status)
	if e.ReferenceCount, err = r.ReadU32(); err != nil {
		return nil, err
	}
	return e, nil
}

func decodeContributor(r *codec.Reader) (*Contributor, error) {
	c := &Contributor{}
	var err error
	if c.BumpSeed, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if c.Code, err = r.ReadString(); err != nil {
		return nil, err
	}
	ata, err := r.ReadPubkey()
	if err != nil {
		return nil, err
	}
	c.ATAOwner = Pubkey(ata)
	status, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	c.Status = ContributorStatus(status)
	if c.ReferenceCount, err = r.ReadU32(); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeTenant(r *codec.Reader) (*Tenant, error) {
	t := &Tenant{}
	var err error
	if t.BumpSeed, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if t.Code, err = r.ReadString(); err != nil {
		return nil, err
	}
	if t.VrfID, err = r.ReadU16(); err != nil {
		return nil, err
	}
	if t.ReferenceCount, err = r.ReadU32(); err != nil {
		return nil, err
	}
	admins, err := r.ReadPubkeySlice()
	if err != nil {
		return nil, err
	}
	t.Administrators = pksOf(admins)
	status, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	t.PaymentStatus = TenantPaymentStatus(status)
	token, err := r.ReadPubkey()
	if err != nil {
		return nil, err
	}
	t.TokenAccount = Pubkey(token)
	t.BillingRate = r.TryReadU64(0)
	t.BillingLastDeductionEpoch = r.TryReadU64(0)
	return t, nil
}

// interfaceVersionCurrent is the current Interface layout version.
// decodeInterfaces does not consult it: it reads NodeSegmentIdx, the
// field added after Interface's initial release, with TryReadU16.
const interfaceVersionCurrent = 2

func decodeInterfaces(r *codec.Reader) ([]Interface, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]Interface, n)
	for i := range out {
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		kind, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		status, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		ipnet, err := r.ReadNetworkV4()
		if err != nil {
			return nil, err
		}
		out[i] = Interface{
			Name:           name,
			Kind:           InterfaceKind(kind),
			Status:         InterfaceStatus(status),
			IPNet:          NetworkV4(ipnet),
			NodeSegmentIdx: r.TryReadU16(0),
		}
	}
	return out, nil
}

func decodeDevice(r *codec.Reader) (*Device, error) {
	d := &Device{}
	var err error
	if d.BumpSeed, err = r.ReadU8(); err != nil {
		return nil, err
	}
	owner, err := r.ReadPubkey()
	if err != nil {
		return nil, err
	}
	d.Owner = Pubkey(owner)
	if d.Code, err = r.ReadString(); err != nil {
		return nil, err
	}
	contrib, err := r.ReadPubkey()
	if err != nil {
		return nil, err
	}
	d.Contributor = Pubkey(contrib)
	loc, err := r.ReadPubkey()
	if err != nil {
		return nil, err
	}
	d.Location = Pubkey(loc)
	exch, err := r.ReadPubkey()
	if err != nil {
		return nil, err
	}
	d.Exchange = Pubkey(exch)
	ip, err := r.ReadIPv4()
	if err != nil {
		return nil, err
	}
	d.PublicIP = IPv4(ip)
	nets, err := r.ReadNetworkV4Slice()
	if err != nil {
		return nil, err
	}
	d.DzPrefixes = make([]NetworkV4, len(nets))
	for i, n := range nets {
		d.DzPrefixes[i] = NetworkV4(n)
	}
	if d.Interfaces, err = decodeInterfaces(r); err != nil {
		return nil, err
	}
	health, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	d.DeviceHealth = DeviceHealth(health)
	status, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	d.Status = DeviceStatus(status)
	d.ReservedSeats = r.TryReadU16(0)
	d.MaxUsers = r.TryReadU16(0)
	d.ReferenceCount = r.TryReadU32(0)
	return d, nil
}

func decodeLink(r *codec.Reader) (*Link, error) {
	l := &Link{}
	var err error
	if l.BumpSeed, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if l.Code, err = r.ReadString(); err != nil {
		return nil, err
	}
	contrib, err := r.ReadPubkey()
	if err != nil {
		return nil, err
	}
	l.Contributor = Pubkey(contrib)
	linkType, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	l.LinkType = LinkType(linkType)
	sideA, err := r.ReadPubkey()
	if err != nil {
		return nil, err
	}
	l.SideA = Pubkey(sideA)
	if l.SideAIfaceName, err = r.ReadString(); err != nil {
		return nil, err
	}
	sideZ, err := r.ReadPubkey()
	if err != nil {
		return nil, err
	}
	l.SideZ = Pubkey(sideZ)
	if l.SideZIfaceName, err = r.ReadString(); err != nil {
		return nil, err
	}
	if l.Bandwidth, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if l.Mtu, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if l.DelayNs, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if l.JitterNs, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if l.TunnelID, err = r.ReadU16(); err != nil {
		return nil, err
	}
	tunnelNet, err := r.ReadNetworkV4()
	if err != nil {
		return nil, err
	}
	l.TunnelNet = NetworkV4(tunnelNet)
	health, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	l.LinkHealth = LinkHealth(health)
	status, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	l.Status = LinkStatus(status)
	return l, nil
}

func decodeUser(r *codec.Reader) (*User, error) {
	u := &User{}
	var err error
	if u.BumpSeed, err = r.ReadU8(); err != nil {
		return nil, err
	}
	owner, err := r.ReadPubkey()
	if err != nil {
		return nil, err
	}
	u.Owner = Pubkey(owner)
	device, err := r.ReadPubkey()
	if err != nil {
		return nil, err
	}
	u.Device = Pubkey(device)
	tenant, err := r.ReadPubkey()
	if err != nil {
		return nil, err
	}
	u.Tenant = Pubkey(tenant)
	userType, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	u.UserType = UserType(userType)
	cyoaType, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	u.CyoaType = CyoaType(cyoaType)
	clientIP, err := r.ReadIPv4()
	if err != nil {
		return nil, err
	}
	u.ClientIP = IPv4(clientIP)
	dzIP, err := r.ReadIPv4()
	if err != nil {
		return nil, err
	}
	u.DzIP = IPv4(dzIP)
	if u.TunnelID, err = r.ReadU16(); err != nil {
		return nil, err
	}
	tunnelNet, err := r.ReadNetworkV4()
	if err != nil {
		return nil, err
	}
	u.TunnelNet = NetworkV4(tunnelNet)
	status, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	u.Status = UserStatus(status)
	return u, nil
}

func decodeMulticastGroup(r *codec.Reader) (*MulticastGroup, error) {
	m := &MulticastGroup{}
	var err error
	if m.BumpSeed, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if m.Code, err = r.ReadString(); err != nil {
		return nil, err
	}
	tenant, err := r.ReadPubkey()
	if err != nil {
		return nil, err
	}
	m.Tenant = Pubkey(tenant)
	ip, err := r.ReadIPv4()
	if err != nil {
		return nil, err
	}
	m.MulticastIP = IPv4(ip)
	if m.MaxBandwidth, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if m.PublisherCount, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if m.SubscriberCount, err = r.ReadU32(); err != nil {
		return nil, err
	}
	pubs, err := r.ReadPubkeySlice()
	if err != nil {
		return nil, err
	}
	m.PublisherAllow = pksOf(pubs)
	subs, err := r.ReadPubkeySlice()
	if err != nil {
		return nil, err
	}
	m.SubscriberAllow = pksOf(subs)
	status, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	m.Status = MulticastGroupStatus(status)
	return m, nil
}

func decodeAccessPass(r *codec.Reader) (*AccessPass, error) {
	a := &AccessPass{}
	var err error
	if a.BumpSeed, err = r.ReadU8(); err != nil {
		return nil, err
	}
	ip, err := r.ReadIPv4()
	if err != nil {
		return nil, err
	}
	a.ClientIP = IPv4(ip)
	payer, err := r.ReadPubkey()
	if err != nil {
		return nil, err
	}
	a.UserPayer = Pubkey(payer)
	accessType, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	a.AccessType = AccessPassType(accessType)
	a.LastAccessEpoch = r.TryReadU64(0)
	return a, nil
}

func decodeReservation(r *codec.Reader) (*Reservation, error) {
	res := &Reservation{}
	var err error
	if res.BumpSeed, err = r.ReadU8(); err != nil {
		return nil, err
	}
	device, err := r.ReadPubkey()
	if err != nil {
		return nil, err
	}
	res.Device = Pubkey(device)
	requester, err := r.ReadPubkey()
	if err != nil {
		return nil, err
	}
	res.Requester = Pubkey(requester)
	status, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	res.Status = ReservationStatus(status)
	return res, nil
}

func decodeProgramConfig(r *codec.Reader) (*ProgramConfig, error) {
	p := &ProgramConfig{}
	var err error
	if p.BumpSeed, err = r.ReadU8(); err != nil {
		return nil, err
	}
	if p.VersionMajor, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if p.VersionMinor, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if p.VersionPatch, err = r.ReadU32(); err != nil {
		return nil, err
	}
	p.MinCompatMajor = r.TryReadU32(0)
	p.MinCompatMinor = r.TryReadU32(0)
	p.MinCompatPatch = r.TryReadU32(0)
	return p, nil
}
