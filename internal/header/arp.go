package header

import "encoding/binary"

// ARPOp is an ARP opcode.
type ARPOp uint16

const (
	ARPRequest ARPOp = 1
	ARPReply   ARPOp = 2
)

const (
	// ARPSize is the size of an IPv4-over-Ethernet ARP packet.
	ARPSize = 28

	arpHardwareEther = 1
)

// ARP is a view over an ARP packet as laid out in RFC 826.
type ARP []byte

func (a ARP) hardwareType() uint16 { return binary.BigEndian.Uint16(a[0:]) }
func (a ARP) protocolType() uint16 { return binary.BigEndian.Uint16(a[2:]) }
func (a ARP) hardwareLen() uint8   { return a[4] }
func (a ARP) protocolLen() uint8   { return a[5] }

// Op returns the opcode.
func (a ARP) Op() ARPOp { return ARPOp(binary.BigEndian.Uint16(a[6:])) }

// SetOp sets the opcode.
func (a ARP) SetOp(op ARPOp) { binary.BigEndian.PutUint16(a[6:], uint16(op)) }

// SetIPv4OverEthernet fills in the fixed hardware/protocol type and length
// fields.
func (a ARP) SetIPv4OverEthernet() {
	binary.BigEndian.PutUint16(a[0:], arpHardwareEther)
	binary.BigEndian.PutUint16(a[2:], EthertypeIPv4)
	a[4] = 6
	a[5] = 4
}

// SenderMAC is the sender hardware address field; the slice writes through.
func (a ARP) SenderMAC() []byte { return a[8:14] }

// SenderIP is the sender protocol address field.
func (a ARP) SenderIP() []byte { return a[14:18] }

// TargetMAC is the target hardware address field.
func (a ARP) TargetMAC() []byte { return a[18:24] }

// TargetIP is the target protocol address field.
func (a ARP) TargetIP() []byte { return a[24:28] }

// IsValid reports whether the packet is long enough and carries the
// IPv4-over-Ethernet constants. Anything else is dropped without a response.
func (a ARP) IsValid() bool {
	if len(a) < ARPSize {
		return false
	}
	return a.hardwareType() == arpHardwareEther &&
		a.protocolType() == EthertypeIPv4 &&
		a.hardwareLen() == 6 &&
		a.protocolLen() == 4
}
