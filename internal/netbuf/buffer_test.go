package netbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuffer_AddHeaderZeroFills(t *testing.T) {
	b := New(4, 8)
	copy(b.Bytes(), []byte{1, 2, 3, 4})

	b.AddHeader(8)
	assert.Equal(t, 12, b.Len())
	assert.Equal(t, 0, b.Headroom())
	// The re-exposed region must not leak previous contents.
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0, 1, 2, 3, 4}, b.Bytes())
}

func TestBuffer_RemoveHeaderThenAddHeader(t *testing.T) {
	b := NewPayload([]byte{0xaa, 0xbb, 0xcc, 0xdd}, 0)
	b.RemoveHeader(2)
	assert.Equal(t, []byte{0xcc, 0xdd}, b.Bytes())

	// Re-adding zero-fills: the stripped bytes are gone.
	b.AddHeader(2)
	assert.Equal(t, []byte{0, 0, 0xcc, 0xdd}, b.Bytes())
}

func TestBuffer_AddHeaderBeyondHeadroomPanics(t *testing.T) {
	b := New(4, 2)
	assert.Panics(t, func() { b.AddHeader(3) })
}

func TestBuffer_RemoveHeaderBeyondLengthPanics(t *testing.T) {
	b := New(4, 0)
	assert.Panics(t, func() { b.RemoveHeader(5) })
}

func TestBuffer_RemovePadding(t *testing.T) {
	b := NewPayload([]byte{1, 2, 3, 4, 5, 6}, 0)
	b.RemovePadding(2)
	assert.Equal(t, []byte{1, 2, 3, 4}, b.Bytes())
}

func TestBuffer_CloneIsIndependent(t *testing.T) {
	b := NewPayload([]byte{1, 2, 3}, 4)
	c := b.Clone()

	c.Bytes()[0] = 9
	assert.Equal(t, byte(1), b.Bytes()[0])
	assert.Equal(t, b.Headroom(), c.Headroom())
}
