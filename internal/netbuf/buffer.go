// Package netbuf provides the packet buffer shared by all protocol layers.
//
// A Buffer owns a fixed-capacity byte region and exposes a movable window
// into it. Lower layers prepend their headers by growing the window towards
// the front; upper layers strip them by shrinking it. Every outbound packet
// gets a fresh Buffer, so handlers may retain the bytes they were given until
// they return.
package netbuf

import "fmt"

// Buffer is a packet buffer with a movable header boundary.
// The visible packet occupies data[start : start+length].
type Buffer struct {
	data   []byte
	start  int
	length int
}

// New creates a buffer whose packet window is size bytes long, leaving
// headroom bytes in front for headers to be prepended later.
func New(size, headroom int) *Buffer {
	if size < 0 || headroom < 0 {
		panic(fmt.Sprintf("netbuf: invalid buffer dimensions size=%d headroom=%d", size, headroom))
	}
	return &Buffer{
		data:   make([]byte, headroom+size),
		start:  headroom,
		length: size,
	}
}

// NewPayload creates a buffer holding a copy of payload with the given
// headroom in front.
func NewPayload(payload []byte, headroom int) *Buffer {
	b := New(len(payload), headroom)
	copy(b.Bytes(), payload)
	return b
}

// Bytes returns the current packet window. The slice aliases the buffer;
// it is valid until the next AddHeader/RemoveHeader call.
func (b *Buffer) Bytes() []byte {
	return b.data[b.start : b.start+b.length]
}

// Len returns the length of the packet window.
func (b *Buffer) Len() int {
	return b.length
}

// Headroom returns the number of bytes available for AddHeader.
func (b *Buffer) Headroom() int {
	return b.start
}

// AddHeader moves the window start back by n bytes and zero-fills the new
// region. The caller populates it afterwards. Exceeding the headroom is a
// programming error, not a condition reachable from network input.
func (b *Buffer) AddHeader(n int) {
	if n < 0 || n > b.start {
		panic(fmt.Sprintf("netbuf: AddHeader(%d) with headroom %d", n, b.start))
	}
	b.start -= n
	b.length += n
	clear(b.data[b.start : b.start+n])
}

// RemoveHeader moves the window start forward by n bytes.
func (b *Buffer) RemoveHeader(n int) {
	if n < 0 || n > b.length {
		panic(fmt.Sprintf("netbuf: RemoveHeader(%d) with length %d", n, b.length))
	}
	b.start += n
	b.length -= n
}

// RemovePadding shrinks the window by n bytes from the tail.
func (b *Buffer) RemovePadding(n int) {
	if n < 0 || n > b.length {
		panic(fmt.Sprintf("netbuf: RemovePadding(%d) with length %d", n, b.length))
	}
	b.length -= n
}

// Clone returns an independent copy of the buffer, preserving headroom.
func (b *Buffer) Clone() *Buffer {
	c := &Buffer{
		data:   make([]byte, len(b.data)),
		start:  b.start,
		length: b.length,
	}
	copy(c.data, b.data)
	return c
}
