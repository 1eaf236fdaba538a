package serviceability

import "github.com/malbeclabs/doublezero-sub006/sdk/codec"

// Encode serializes any account value as [1-byte AccountType tag][payload],
// the layout every persisted account and every wire message shares.
func Encode(accountType AccountType, v any) []byte {
	w := codec.NewWriter(256)
	w.WriteU8(uint8(accountType))
	switch a := v.(type) {
	case *GlobalState:
		encodeGlobalState(w, a)
	case *GlobalConfig:
		encodeGlobalConfig(w, a)
	case *Location:
		encodeLocation(w, a)
	case *Exchange:
		encodeExchange(w, a)
	case *Contributor:
		encodeContributor(w, a)
	case *Tenant:
		encodeTenant(w, a)
	case *Device:
		encodeDevice(w, a)
	case *Link:
		encodeLink(w, a)
	case *User:
		encodeUser(w, a)
	case *MulticastGroup:
		encodeMulticastGroup(w, a)
	case *AccessPass:
		encodeAccessPass(w, a)
	case *Reservation:
		encodeReservation(w, a)
	case *ProgramConfig:
		encodeProgramConfig(w, a)
	case *ResourceExtension:
		a.Encode(w)
	default:
		panic("serviceability: Encode: unsupported type")
	}
	return w.Bytes()
}

func pk(p Pubkey) [32]byte { return [32]byte(p) }
func pks(ps []Pubkey) [][32]byte {
	out := make([][32]byte, len(ps))
	for i, p := range ps {
		out[i] = [32]byte(p)
	}
	return out
}

func encodeGlobalState(w *codec.Writer, g *GlobalState) {
	w.WriteU8(g.BumpSeed)
	w.WritePubkeySlice(pks(g.FoundationAllowlist))
	w.WritePubkeySlice(pks(g.DeviceAllowlist))
	w.WritePubkeySlice(pks(g.UserAllowlist))
	w.WritePubkey(pk(g.ActivatorAuthority))
	w.WritePubkey(pk(g.HealthOracle))
	w.WritePubkey(pk(g.SentinelAuthority))
	w.WritePubkey(pk(g.ReservationAuthority))
	w.WritePubkey(pk(g.InternetLatencyCollect))
	w.WriteU64(g.FeatureFlags)
	w.WriteU32(g.MinCompatibleVersion)
	w.WriteU64(g.AccountIndex)
}

func encodeGlobalConfig(w *codec.Writer, g *GlobalConfig) {
	w.WriteU8(g.BumpSeed)
	w.WriteU32(g.LocalASN)
	w.WriteU32(g.RemoteASN)
	w.WriteNetworkV4([5]byte(g.DeviceTunnelBlock))
	w.WriteNetworkV4([5]byte(g.UserTunnelBlock))
	w.WriteNetworkV4([5]byte(g.MulticastGroupBlock))
	w.WriteU16(g.NextBGPCommunity)
}

func encodeLocation(w *codec.Writer, l *Location) {
	w.WriteU8(l.BumpSeed)
	w.WriteString(l.Code)
	w.WriteString(l.Name)
	w.WriteString(l.Country)
	w.WriteF64(l.Lat)
	w.WriteF64(l.Lng)
	w.WriteU8(uint8(l.Status))
	w.WriteU32(l.ReferenceCount)
}

func encodeExchange(w *codec.Writer, e *Exchange) {
	w.WriteU8(e.BumpSeed)
	w.WriteString(e.Code)
	w.WriteString(e.Name)
	w.WriteF64(e.Lat)
	w.WriteF64(e.Lng)
	w.WriteU8(uint8(e.Status))
	w.WriteU32(e.ReferenceCount)
}

func encodeContributor(w *codec.Writer, c *Contributor) {
	w.WriteU8(c.BumpSeed)
	w.WriteString(c.Code)
	w.WritePubkey(pk(c.ATAOwner))
	w.WriteU8(uint8(c.Status))
	w.WriteU32(c.ReferenceCount)
}

func encodeTenant(w *codec.Writer, t *Tenant) {
	w.WriteU8(t.BumpSeed)
	w.WriteString(t.Code)
	w.WriteU16(t.VrfID)
	w.WriteU32(t.ReferenceCount)
	w.WritePubkeySlice(pks(t.Administrators))
	w.WriteU8(uint8(t.PaymentStatus))
	w.WritePubkey(pk(t.TokenAccount))
	w.WriteU64(t.BillingRate)
	w.WriteU64(t.BillingLastDeductionEpoch)
}

func encodeInterfaces(w *codec.Writer, ifaces []Interface) {
	w.WriteU32(uint32(len(ifaces)))
	for _, i := range ifaces {
		w.WriteString(i.Name)
		w.WriteU8(uint8(i.Kind))
		w.WriteU8(uint8(i.Status))
		w.WriteNetworkV4([5]byte(i.IPNet))
		w.WriteU16(i.NodeSegmentIdx)
	}
}

func encodeDevice(w *codec.Writer, d *Device) {
	w.WriteU8(d.BumpSeed)
	w.WritePubkey(pk(d.Owner))
	w.WriteString(d.Code)
	w.WritePubkey(pk(d.Contributor))
	w.WritePubkey(pk(d.Location))
	w.WritePubkey(pk(d.Exchange))
	w.WriteIPv4([4]byte(d.PublicIP))
	nets := make([][5]byte, len(d.DzPrefixes))
	for i, n := range d.DzPrefixes {
		nets[i] = [5]byte(n)
	}
	w.WriteNetworkV4Slice(nets)
	encodeInterfaces(w, d.Interfaces)
	w.WriteU8(uint8(d.DeviceHealth))
	w.WriteU8(uint8(d.Status))
	w.WriteU16(d.ReservedSeats)
	w.WriteU16(d.MaxUsers)
	w.WriteU32(d.ReferenceCount)
}

func encodeLink(w *codec.Writer, l *Link) {
	w.WriteU8(l.BumpSeed)
	w.WriteString(l.Code)
	w.WritePubkey(pk(l.Contributor))
	w.WriteU8(uint8(l.LinkType))
	w.WritePubkey(pk(l.SideA))
	w.WriteString(l.SideAIfaceName)
	w.WritePubkey(pk(l.SideZ))
	w.WriteString(l.SideZIfaceName)
	w.WriteU64(l.Bandwidth)
	w.WriteU32(l.Mtu)
	w.WriteU64(l.DelayNs)
	w.WriteU64(l.JitterNs)
	w.WriteU16(l.TunnelID)
	w.WriteNetworkV4([5]byte(l.TunnelNet))
	w.WriteU8(uint8(l.LinkHealth))
	w.WriteU8(uint8(l.Status))
}

func encodeMulticastGroup(w *codec.Writer, m *MulticastGroup) {
	w.WriteU8(m.BumpSeed)
	w.WriteString(m.Code)
	w.WritePubkey(pk(m.Tenant))
	w.WriteIPv4([4]byte(m.MulticastIP))
	w.WriteU64(m.MaxBandwidth)
	w.WriteU32(m.PublisherCount)
	w.WriteU32(m.SubscriberCount)
	w.WritePubkeySlice(pks(m.PublisherAllow))
	w.WritePubkeySlice(pks(m.SubscriberAllow))
	w.WriteU8(uint8(m.Status))
}

func encodeUser(w *codec.Writer, u *User) {
	w.WriteU8(u.BumpSeed)
	w.WritePubkey(pk(u.Owner))
	w.WritePubkey(pk(u.Device))
	w.WritePubkey(pk(u.Tenant))
	w.WriteU8(uint8(u.UserType))
	w.WriteU8(uint8(u.CyoaType))
	w.WriteIPv4([4]byte(u.ClientIP))
	w.WriteIPv4([4]byte(u.DzIP))
	w.WriteU16(u.TunnelID)
	w.WriteNetworkV4([5]byte(u.TunnelNet))
	w.WriteU8(uint8(u.Status))
}

func encodeAccessPass(w *codec.Writer, a *AccessPass) {
	w.WriteU8(a.BumpSeed)
	w.WriteIPv4([4]byte(a.ClientIP))
	w.WritePubkey(pk(a.UserPayer))
	w.WriteU8(uint8(a.AccessType))
	w.WriteU64(a.LastAccessEpoch)
}

func encodeReservation(w *codec.Writer, r *Reservation) {
	w.WriteU8(r.BumpSeed)
	w.WritePubkey(pk(r.Device))
	w.WritePubkey(pk(r.Requester))
	w.WriteU8(uint8(r.Status))
}

func encodeProgramConfig(w *codec.Writer, p *ProgramConfig) {
	w.WriteU8(p.BumpSeed)
	w.WriteU32(p.VersionMajor)
	w.WriteU32(p.VersionMinor)
	w.WriteU32(p.VersionPatch)
	w.WriteU32(p.MinCompatMajor)
	w.WriteU32(p.MinCompatMinor)
	w.WriteU32(p.MinCompatPatch)
}
