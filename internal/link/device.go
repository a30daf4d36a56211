// Package link binds the stack to a frame capture/injection device and owns
// Ethernet framing. The protocol core above only ever sees payload buffers,
// source MACs and ethertypes.
package link

import (
	"errors"
	"fmt"

	"firestige.xyz/ipstack/internal/header"
	"firestige.xyz/ipstack/internal/netbuf"
)

// ErrTimeout is returned by ReadFrame when no frame arrived within the
// device's poll timeout. The dispatch loop treats it as "try again".
var ErrTimeout = errors.New("link: read timeout")

const (
	// EthernetHeaderSize is the size of dst MAC + src MAC + ethertype.
	EthernetHeaderSize = 14

	// DefaultMTU is the Ethernet payload limit used for fragmentation.
	DefaultMTU = 1500

	// InboundHeadroom is reserved in front of received payloads so stripped
	// headers can be re-attached (ICMP error generation).
	InboundHeadroom = 128
)

// Frame is a received Ethernet frame with the link header already stripped.
type Frame struct {
	Buf  *netbuf.Buffer
	Src  header.MACAddress
	Dst  header.MACAddress
	Type uint16
}

// Device reads and writes Ethernet frames.
type Device interface {
	// ReadFrame returns the next frame, or ErrTimeout when the poll timeout
	// elapsed with nothing captured.
	ReadFrame() (*Frame, error)

	// WriteFrame prepends an Ethernet header to buf and injects it. buf must
	// have at least EthernetHeaderSize bytes of headroom.
	WriteFrame(buf *netbuf.Buffer, dst header.MACAddress, etherType uint16) error

	// MAC returns the device's hardware address.
	MAC() header.MACAddress

	Close() error
}

// encodeEthernet fills the link header into the front of buf.
func encodeEthernet(buf *netbuf.Buffer, src, dst header.MACAddress, etherType uint16) {
	buf.AddHeader(EthernetHeaderSize)
	b := buf.Bytes()
	copy(b[0:6], dst[:])
	copy(b[6:12], src[:])
	b[12] = byte(etherType >> 8)
	b[13] = byte(etherType)
}

// Open creates a device by driver name.
func Open(driver, iface string, opts DriverOptions) (Device, error) {
	switch driver {
	case "", "pcap":
		return OpenPcap(iface, opts)
	case "afpacket":
		return OpenAFPacket(iface, opts)
	default:
		return nil, fmt.Errorf("link: unknown capture driver %q", driver)
	}
}

// DriverOptions are the capture tunables shared by the drivers, plus a raw
// driver-specific option map.
type DriverOptions struct {
	SnapLen     int
	Promiscuous bool
	TimeoutMs   int
	BPFFilter   string
	Extra       map[string]interface{}
}
