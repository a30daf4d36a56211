package checksum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksum_RFC1071Example(t *testing.T) {
	// Worked example from RFC 1071 section 3.
	data := []byte{0x00, 0x01, 0xf2, 0x03, 0xf4, 0xf5, 0xf6, 0xf7}

	sum := Sum(data, 0)
	assert.Equal(t, uint32(0x2ddf0), sum)
	assert.Equal(t, uint16(0xddf2), Fold(sum))
	assert.Equal(t, uint16(0x220d), Checksum(data, 0))
}

func TestChecksum_OddLength(t *testing.T) {
	// A trailing odd byte counts as the high byte of a final word.
	odd := []byte{0x01, 0x02, 0x03}
	assert.Equal(t, uint32(0x0102+0x0300), Sum(odd, 0))
}

func TestVerify_RoundTrip(t *testing.T) {
	msg := []byte{0x08, 0x00, 0x00, 0x00, 0x12, 0x34, 0x00, 0x01, 0xab}
	c := Checksum(msg, 0)
	msg[2] = byte(c >> 8)
	msg[3] = byte(c)

	assert.True(t, Verify(msg))

	msg[8] ^= 0x01
	assert.False(t, Verify(msg))
}

func TestPseudoHeaderSum_Symmetry(t *testing.T) {
	src := []byte{10, 0, 0, 1}
	dst := []byte{10, 0, 0, 2}
	payload := []byte{0x12, 0x34, 0x00, 0x08, 0x00, 0x00, 0x00, 0x00}

	// Computing the checksum and then re-summing with the field in place
	// must fold to all ones.
	sum := PseudoHeaderSum(src, dst, 17, uint32(len(payload)))
	c := Checksum(payload, sum)
	payload[6] = byte(c >> 8)
	payload[7] = byte(c)

	again := PseudoHeaderSum(src, dst, 17, uint32(len(payload)))
	assert.Equal(t, uint16(0xffff), Fold(Sum(payload, again)))
}
