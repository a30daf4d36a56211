// Package checksum implements the 16-bit one's-complement checksum used by
// IPv4, ICMP, ICMPv6 and UDP, including the pseudo-header variants.
package checksum

import "encoding/binary"

// Sum adds the 16-bit big-endian words of b to initial without folding.
// An odd trailing byte is treated as the high byte of a final word, matching
// RFC 1071.
func Sum(b []byte, initial uint32) uint32 {
	sum := initial
	n := len(b) &^ 1
	for i := 0; i < n; i += 2 {
		sum += uint32(binary.BigEndian.Uint16(b[i:]))
	}
	if len(b)&1 != 0 {
		sum += uint32(b[len(b)-1]) << 8
	}
	return sum
}

// Fold reduces a 32-bit running sum to 16 bits with end-around carry.
func Fold(sum uint32) uint16 {
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return uint16(sum)
}

// Checksum returns the one's complement of the folded sum of b.
// Compute it with the checksum field zeroed; a header carrying the result
// then sums to 0xffff.
func Checksum(b []byte, initial uint32) uint16 {
	return ^Fold(Sum(b, initial))
}

// Verify reports whether a header that embeds its checksum field sums to the
// all-ones pattern.
func Verify(b []byte) bool {
	return Fold(Sum(b, 0)) == 0xffff
}

// PseudoHeaderSum computes the running sum of the IPv6-style pseudo-header:
// source address, destination address, 32-bit upper-layer length, three zero
// bytes and the next-header value. The same shape serves the IPv4 UDP
// pseudo-header when the addresses are 4 bytes long.
func PseudoHeaderSum(src, dst []byte, nextHeader uint8, length uint32) uint32 {
	sum := Sum(src, 0)
	sum = Sum(dst, sum)
	sum += length >> 16
	sum += length & 0xffff
	sum += uint32(nextHeader)
	return sum
}
