package header

import "encoding/binary"

// UDPMinimumSize is the length of a UDP header.
const UDPMinimumSize = 8

// UDP is a view over a UDP header.
type UDP []byte

// SourcePort returns the source port.
func (h UDP) SourcePort() uint16 { return binary.BigEndian.Uint16(h[0:]) }

// SetSourcePort sets the source port.
func (h UDP) SetSourcePort(v uint16) { binary.BigEndian.PutUint16(h[0:], v) }

// DestinationPort returns the destination port.
func (h UDP) DestinationPort() uint16 { return binary.BigEndian.Uint16(h[2:]) }

// SetDestinationPort sets the destination port.
func (h UDP) SetDestinationPort(v uint16) { binary.BigEndian.PutUint16(h[2:], v) }

// Length returns the declared length of header plus payload.
func (h UDP) Length() uint16 { return binary.BigEndian.Uint16(h[4:]) }

// SetLength sets the length field.
func (h UDP) SetLength(v uint16) { binary.BigEndian.PutUint16(h[4:], v) }

// Checksum returns the checksum field.
func (h UDP) Checksum() uint16 { return binary.BigEndian.Uint16(h[6:]) }

// SetChecksum sets the checksum field.
func (h UDP) SetChecksum(v uint16) { binary.BigEndian.PutUint16(h[6:], v) }
