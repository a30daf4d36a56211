package header

import "encoding/binary"

const (
	// IPv6HeaderSize is the length of the fixed IPv6 header.
	IPv6HeaderSize = 40

	// IPv6Version is the value of the version nibble.
	IPv6Version = 6

	// IPv6DefaultHopLimit is the hop limit placed in locally originated
	// packets.
	IPv6DefaultHopLimit = 64

	// IPv6MinimumMTU is the minimum link MTU required by RFC 8200, used to
	// bound ICMPv6 error payloads.
	IPv6MinimumMTU = 1280
)

// IPv6 is a view over the fixed IPv6 header.
type IPv6 []byte

// The first 32-bit word packs 4-bit version, 8-bit traffic class and 20-bit
// flow label; all accessors shift/mask the byte-order-normalized value.

// Version returns the version nibble.
func (h IPv6) Version() uint8 {
	return uint8(binary.BigEndian.Uint32(h[0:]) >> 28)
}

// TrafficClass returns the traffic class octet.
func (h IPv6) TrafficClass() uint8 {
	return uint8(binary.BigEndian.Uint32(h[0:]) >> 20)
}

// FlowLabel returns the 20-bit flow label.
func (h IPv6) FlowLabel() uint32 {
	return binary.BigEndian.Uint32(h[0:]) & 0x000fffff
}

// SetVersionTCFlow writes version, traffic class and flow label as one word.
func (h IPv6) SetVersionTCFlow(version, tc uint8, flow uint32) {
	binary.BigEndian.PutUint32(h[0:], uint32(version)<<28|uint32(tc)<<20|flow&0x000fffff)
}

// PayloadLength returns the declared payload length, excluding the fixed
// header.
func (h IPv6) PayloadLength() uint16 { return binary.BigEndian.Uint16(h[4:]) }

// SetPayloadLength sets the payload length field.
func (h IPv6) SetPayloadLength(v uint16) { binary.BigEndian.PutUint16(h[4:], v) }

// NextHeader returns the next-header field.
func (h IPv6) NextHeader() uint8 { return h[6] }

// SetNextHeader sets the next-header field.
func (h IPv6) SetNextHeader(v uint8) { h[6] = v }

// HopLimit returns the hop limit.
func (h IPv6) HopLimit() uint8 { return h[7] }

// SetHopLimit sets the hop limit.
func (h IPv6) SetHopLimit(v uint8) { h[7] = v }

// SourceAddress returns the source address.
func (h IPv6) SourceAddress() IPv6Address { return IPv6AddressFrom(h[8:24]) }

// SetSourceAddress sets the source address.
func (h IPv6) SetSourceAddress(a IPv6Address) { copy(h[8:24], a[:]) }

// DestinationAddress returns the destination address.
func (h IPv6) DestinationAddress() IPv6Address { return IPv6AddressFrom(h[24:40]) }

// SetDestinationAddress sets the destination address.
func (h IPv6) SetDestinationAddress(a IPv6Address) { copy(h[24:40], a[:]) }
