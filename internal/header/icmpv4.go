package header

import "encoding/binary"

// ICMPv4 message types and codes handled by the stack.
const (
	ICMPv4EchoReply   uint8 = 0
	ICMPv4Unreachable uint8 = 3
	ICMPv4EchoRequest uint8 = 8

	ICMPv4CodeProtocolUnreachable uint8 = 2
	ICMPv4CodePortUnreachable     uint8 = 3
)

// ICMPv4MinimumSize is the length of the type/code/checksum/id/sequence
// header common to echo and unreachable messages.
const ICMPv4MinimumSize = 8

// ICMPv4 is a view over an ICMPv4 message.
type ICMPv4 []byte

// Type returns the message type.
func (h ICMPv4) Type() uint8 { return h[0] }

// SetType sets the message type.
func (h ICMPv4) SetType(t uint8) { h[0] = t }

// Code returns the message code.
func (h ICMPv4) Code() uint8 { return h[1] }

// SetCode sets the message code.
func (h ICMPv4) SetCode(c uint8) { h[1] = c }

// Checksum returns the checksum field.
func (h ICMPv4) Checksum() uint16 { return binary.BigEndian.Uint16(h[2:]) }

// SetChecksum sets the checksum field.
func (h ICMPv4) SetChecksum(v uint16) { binary.BigEndian.PutUint16(h[2:], v) }

// Ident returns the echo identifier.
func (h ICMPv4) Ident() uint16 { return binary.BigEndian.Uint16(h[4:]) }

// SetIdent sets the echo identifier.
func (h ICMPv4) SetIdent(v uint16) { binary.BigEndian.PutUint16(h[4:], v) }

// Sequence returns the echo sequence number.
func (h ICMPv4) Sequence() uint16 { return binary.BigEndian.Uint16(h[6:]) }

// SetSequence sets the echo sequence number.
func (h ICMPv4) SetSequence(v uint16) { binary.BigEndian.PutUint16(h[6:], v) }
