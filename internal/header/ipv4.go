package header

import (
	"encoding/binary"

	"firestige.xyz/ipstack/internal/checksum"
)

const (
	// IPv4MinimumSize is the length of an IPv4 header without options.
	IPv4MinimumSize = 20

	// IPv4Version is the value of the version nibble.
	IPv4Version = 4

	// IPv4DefaultTTL is the TTL placed in locally originated packets.
	IPv4DefaultTTL = 64

	// IPv4FlagMoreFragments is the MF bit within the flags/fragment-offset
	// field.
	IPv4FlagMoreFragments = 0x2000

	ipv4FragmentOffsetMask = 0x1fff
)

// IPv4 is a view over an IPv4 header.
type IPv4 []byte

// Version returns the version nibble.
func (h IPv4) Version() uint8 { return h[0] >> 4 }

// HeaderLength returns the declared header length in bytes (IHL * 4).
func (h IPv4) HeaderLength() int { return int(h[0]&0x0f) * 4 }

// TotalLength returns the declared datagram length including the header.
func (h IPv4) TotalLength() uint16 { return binary.BigEndian.Uint16(h[2:]) }

// ID returns the fragment identification field.
func (h IPv4) ID() uint16 { return binary.BigEndian.Uint16(h[4:]) }

// MoreFragments reports whether the MF flag is set.
func (h IPv4) MoreFragments() bool {
	return binary.BigEndian.Uint16(h[6:])&IPv4FlagMoreFragments != 0
}

// FragmentOffset returns the fragment offset in bytes.
func (h IPv4) FragmentOffset() int {
	return int(binary.BigEndian.Uint16(h[6:])&ipv4FragmentOffsetMask) * 8
}

// TTL returns the time-to-live field.
func (h IPv4) TTL() uint8 { return h[8] }

// Protocol returns the upper-layer protocol number.
func (h IPv4) Protocol() uint8 { return h[9] }

// Checksum returns the header checksum field.
func (h IPv4) Checksum() uint16 { return binary.BigEndian.Uint16(h[10:]) }

// SourceAddress returns the source address.
func (h IPv4) SourceAddress() IPv4Address { return IPv4AddressFrom(h[12:16]) }

// DestinationAddress returns the destination address.
func (h IPv4) DestinationAddress() IPv4Address { return IPv4AddressFrom(h[16:20]) }

// IPv4Fields holds the values written by Encode.
type IPv4Fields struct {
	TotalLength    uint16
	ID             uint16
	MoreFragments  bool
	FragmentOffset int // bytes, must be divisible by 8
	TTL            uint8
	Protocol       uint8
	Src            IPv4Address
	Dst            IPv4Address
}

// Encode writes a 20-byte option-less header and computes its checksum.
func (h IPv4) Encode(f *IPv4Fields) {
	h[0] = IPv4Version<<4 | IPv4MinimumSize/4
	h[1] = 0 // TOS
	binary.BigEndian.PutUint16(h[2:], f.TotalLength)
	binary.BigEndian.PutUint16(h[4:], f.ID)
	flags := uint16(f.FragmentOffset/8) & ipv4FragmentOffsetMask
	if f.MoreFragments {
		flags |= IPv4FlagMoreFragments
	}
	binary.BigEndian.PutUint16(h[6:], flags)
	h[8] = f.TTL
	h[9] = f.Protocol
	binary.BigEndian.PutUint16(h[10:], 0)
	copy(h[12:16], f.Src[:])
	copy(h[16:20], f.Dst[:])
	binary.BigEndian.PutUint16(h[10:], checksum.Checksum(h[:IPv4MinimumSize], 0))
}

// ChecksumValid recomputes the header checksum over HeaderLength bytes and
// compares it against the stored value.
func (h IPv4) ChecksumValid() bool {
	return checksum.Verify(h[:h.HeaderLength()])
}
