// Package header provides bit-exact views over the wire formats handled by
// the stack: ARP, IPv4, IPv6, ICMPv4, ICMPv6 and the NDP link-layer-address
// option. All multi-byte fields are big-endian on the wire; views convert at
// every read/write boundary.
package header

import "fmt"

// Link-layer and network-layer protocol identifiers. Ethertypes and IP
// next-header numbers share one dispatch table; their value ranges do not
// overlap.
const (
	EthertypeARP  uint16 = 0x0806
	EthertypeIPv4 uint16 = 0x0800
	EthertypeIPv6 uint16 = 0x86dd

	ProtocolICMP   uint16 = 1
	ProtocolUDP    uint16 = 17
	ProtocolICMPv6 uint16 = 58
)

// MACAddress is a 48-bit Ethernet address.
type MACAddress [6]byte

// BroadcastMAC is the all-ones Ethernet broadcast address.
var BroadcastMAC = MACAddress{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

func (m MACAddress) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// IPv4Address is a 4-byte IPv4 address in network order.
type IPv4Address [4]byte

func (a IPv4Address) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", a[0], a[1], a[2], a[3])
}

// IPv4AddressFrom copies the first 4 bytes of b into an address.
func IPv4AddressFrom(b []byte) IPv4Address {
	var a IPv4Address
	copy(a[:], b)
	return a
}

// IPv6Address is a 16-byte IPv6 address in network order.
type IPv6Address [16]byte

// IPv6AddressFrom copies the first 16 bytes of b into an address.
func IPv6AddressFrom(b []byte) IPv6Address {
	var a IPv6Address
	copy(a[:], b)
	return a
}

// Well-known IPv6 addresses.
var (
	IPv6Unspecified       = IPv6Address{}
	IPv6Loopback          = IPv6Address{15: 1}
	IPv6AllNodesMulticast = IPv6Address{0: 0xff, 1: 0x02, 15: 0x01}
)

// IPv6AddressType classifies an IPv6 address by its prefix pattern.
type IPv6AddressType int

const (
	IPv6AddrUnspecified IPv6AddressType = iota
	IPv6AddrLoopback
	IPv6AddrMulticast
	IPv6AddrLinkLocal
	IPv6AddrIPv4Mapped
	IPv6AddrIPv4Compatible
	IPv6AddrGlobal
)

func (t IPv6AddressType) String() string {
	switch t {
	case IPv6AddrUnspecified:
		return "unspecified"
	case IPv6AddrLoopback:
		return "loopback"
	case IPv6AddrMulticast:
		return "multicast"
	case IPv6AddrLinkLocal:
		return "link-local"
	case IPv6AddrIPv4Mapped:
		return "ipv4-mapped"
	case IPv6AddrIPv4Compatible:
		return "ipv4-compatible"
	default:
		return "global"
	}
}

// Type classifies the address. The checks are order-sensitive: unspecified
// and loopback precede multicast/link-local, which precede the IPv4-derived
// forms.
func (a IPv6Address) Type() IPv6AddressType {
	if a == IPv6Unspecified {
		return IPv6AddrUnspecified
	}
	if a == IPv6Loopback {
		return IPv6AddrLoopback
	}
	if a[0] == 0xff {
		return IPv6AddrMulticast
	}
	if a.IsLinkLocal() {
		return IPv6AddrLinkLocal
	}
	if a.IsIPv4Mapped() {
		return IPv6AddrIPv4Mapped
	}
	zero96 := true
	for _, b := range a[:12] {
		if b != 0 {
			zero96 = false
			break
		}
	}
	if zero96 {
		// Last 32 bits are nonzero here; the all-zero case matched above.
		return IPv6AddrIPv4Compatible
	}
	return IPv6AddrGlobal
}

// IsMulticast reports whether the address is in ff00::/8.
func (a IPv6Address) IsMulticast() bool {
	return a[0] == 0xff
}

// IsLinkLocal reports whether the address is in fe80::/10.
func (a IPv6Address) IsLinkLocal() bool {
	return a[0] == 0xfe && a[1]&0xc0 == 0x80
}

// IsIPv4Mapped reports whether the address is of the form ::ffff:a.b.c.d.
func (a IPv6Address) IsIPv4Mapped() bool {
	for _, b := range a[:10] {
		if b != 0 {
			return false
		}
	}
	return a[10] == 0xff && a[11] == 0xff
}

// IPv4 extracts the embedded IPv4 address from an IPv4-mapped or
// IPv4-compatible address.
func (a IPv6Address) IPv4() IPv4Address {
	return IPv4Address{a[12], a[13], a[14], a[15]}
}

// IPv4MappedIPv6 builds ::ffff:a.b.c.d from an IPv4 address.
func IPv4MappedIPv6(v4 IPv4Address) IPv6Address {
	var a IPv6Address
	a[10], a[11] = 0xff, 0xff
	copy(a[12:], v4[:])
	return a
}

// SolicitedNodeMulticast returns ff02::1:ffXX:XXXX derived from the low 24
// bits of the address.
func (a IPv6Address) SolicitedNodeMulticast() IPv6Address {
	return IPv6Address{
		0: 0xff, 1: 0x02,
		11: 0x01, 12: 0xff,
		13: a[13], 14: a[14], 15: a[15],
	}
}

// MulticastMAC maps a multicast IPv6 address to its 33:33:... Ethernet
// address.
func (a IPv6Address) MulticastMAC() MACAddress {
	return MACAddress{0x33, 0x33, a[12], a[13], a[14], a[15]}
}

// EUI64MAC recovers the MAC address embedded in an EUI-64 interface
// identifier: flip the universal/local bit of byte 8 and skip the ff:fe
// separator at bytes 11-12.
func (a IPv6Address) EUI64MAC() MACAddress {
	return MACAddress{a[8] ^ 0x02, a[9], a[10], a[13], a[14], a[15]}
}

// LinkLocalFromMAC derives the fe80::/64 address of an interface from its MAC
// via EUI-64.
func LinkLocalFromMAC(mac MACAddress) IPv6Address {
	var a IPv6Address
	a[0], a[1] = 0xfe, 0x80
	a[8] = mac[0] ^ 0x02
	a[9], a[10] = mac[1], mac[2]
	a[11], a[12] = 0xff, 0xfe
	a[13], a[14], a[15] = mac[3], mac[4], mac[5]
	return a
}

func (a IPv6Address) String() string {
	if a.IsIPv4Mapped() {
		return fmt.Sprintf("::ffff:%d.%d.%d.%d", a[12], a[13], a[14], a[15])
	}
	s := ""
	for i := 0; i < 16; i += 2 {
		if i > 0 {
			s += ":"
		}
		s += fmt.Sprintf("%02x%02x", a[i], a[i+1])
	}
	return s
}
