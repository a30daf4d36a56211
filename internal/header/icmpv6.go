package header

import "encoding/binary"

// ICMPv6 message types handled by the stack.
const (
	ICMPv6Unreachable     uint8 = 1
	ICMPv6PacketTooBig    uint8 = 2
	ICMPv6TimeExceeded    uint8 = 3
	ICMPv6ParamProblem    uint8 = 4
	ICMPv6EchoRequest     uint8 = 128
	ICMPv6EchoReply       uint8 = 129
	ICMPv6RouterSolicit   uint8 = 133
	ICMPv6RouterAdvert    uint8 = 134
	ICMPv6NeighborSolicit uint8 = 135
	ICMPv6NeighborAdvert  uint8 = 136

	// ICMPv6CodePortUnreachable is the destination-unreachable code raised
	// when no transport handler owns the destination port.
	ICMPv6CodePortUnreachable uint8 = 4
)

const (
	// ICMPv6HeaderSize is the length of type/code/checksum.
	ICMPv6HeaderSize = 4

	// ICMPv6EchoMinimumSize adds identifier and sequence number.
	ICMPv6EchoMinimumSize = 8

	// ICMPv6ErrorHeaderSize is the length of an error message header:
	// type/code/checksum plus 4 unused bytes.
	ICMPv6ErrorHeaderSize = 8

	// ICMPv6NeighborSize is the length of a Neighbor Solicitation or
	// Advertisement without options: header, 4 flag/reserved bytes and the
	// 16-byte target address.
	ICMPv6NeighborSize = 24
)

// Neighbor Advertisement flag bits within the 32-bit flags word.
const (
	NDPRouterFlag    uint32 = 0x80000000
	NDPSolicitedFlag uint32 = 0x40000000
	NDPOverrideFlag  uint32 = 0x20000000
)

// NDP option types and layout of the link-layer-address option.
const (
	NDPOptSourceLinkAddr uint8 = 1
	NDPOptTargetLinkAddr uint8 = 2

	// NDPLinkAddrOptSize is the size of a link-layer-address option: type,
	// length-in-8-byte-units and a 6-byte MAC.
	NDPLinkAddrOptSize = 8
)

// ICMPv6 is a view over an ICMPv6 message.
type ICMPv6 []byte

// Type returns the message type.
func (h ICMPv6) Type() uint8 { return h[0] }

// SetType sets the message type.
func (h ICMPv6) SetType(t uint8) { h[0] = t }

// Code returns the message code.
func (h ICMPv6) Code() uint8 { return h[1] }

// SetCode sets the message code.
func (h ICMPv6) SetCode(c uint8) { h[1] = c }

// Checksum returns the checksum field.
func (h ICMPv6) Checksum() uint16 { return binary.BigEndian.Uint16(h[2:]) }

// SetChecksum sets the checksum field.
func (h ICMPv6) SetChecksum(v uint16) { binary.BigEndian.PutUint16(h[2:], v) }

// Ident returns the echo identifier.
func (h ICMPv6) Ident() uint16 { return binary.BigEndian.Uint16(h[4:]) }

// SetIdent sets the echo identifier.
func (h ICMPv6) SetIdent(v uint16) { binary.BigEndian.PutUint16(h[4:], v) }

// Sequence returns the echo sequence number.
func (h ICMPv6) Sequence() uint16 { return binary.BigEndian.Uint16(h[6:]) }

// SetSequence sets the echo sequence number.
func (h ICMPv6) SetSequence(v uint16) { binary.BigEndian.PutUint16(h[6:], v) }

// NeighborFlags returns the 32-bit NA flags word.
func (h ICMPv6) NeighborFlags() uint32 { return binary.BigEndian.Uint32(h[4:]) }

// SetNeighborFlags sets the 32-bit NA flags word. For NS the word is
// reserved and left zero.
func (h ICMPv6) SetNeighborFlags(v uint32) { binary.BigEndian.PutUint32(h[4:], v) }

// TargetAddress returns the NS/NA target address.
func (h ICMPv6) TargetAddress() IPv6Address { return IPv6AddressFrom(h[8:24]) }

// SetTargetAddress sets the NS/NA target address.
func (h ICMPv6) SetTargetAddress(a IPv6Address) { copy(h[8:24], a[:]) }

// NDPLinkAddrOpt is a view over a source/target link-layer-address option.
type NDPLinkAddrOpt []byte

// Type returns the option type.
func (o NDPLinkAddrOpt) Type() uint8 { return o[0] }

// Length returns the option length in 8-byte units.
func (o NDPLinkAddrOpt) Length() uint8 { return o[1] }

// MAC returns the carried link-layer address.
func (o NDPLinkAddrOpt) MAC() MACAddress {
	var m MACAddress
	copy(m[:], o[2:8])
	return m
}

// Encode writes the option.
func (o NDPLinkAddrOpt) Encode(typ uint8, mac MACAddress) {
	o[0] = typ
	o[1] = 1
	copy(o[2:8], mac[:])
}
