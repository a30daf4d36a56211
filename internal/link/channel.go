package link

import (
	"firestige.xyz/ipstack/internal/header"
	"firestige.xyz/ipstack/internal/netbuf"
)

// ChannelDevice is an in-memory Device used by tests: frames written by the
// stack are recorded, frames injected by the test are read back by the
// dispatch loop.
type ChannelDevice struct {
	mac     header.MACAddress
	inbound []*Frame

	// Sent holds every frame the stack transmitted, in order.
	Sent []SentFrame
}

// SentFrame is a transmitted frame captured for inspection.
type SentFrame struct {
	Data []byte // full frame including Ethernet header
	Dst  header.MACAddress
	Type uint16
}

// NewChannelDevice creates a test device with the given MAC.
func NewChannelDevice(mac header.MACAddress) *ChannelDevice {
	return &ChannelDevice{mac: mac}
}

func (d *ChannelDevice) MAC() header.MACAddress { return d.mac }

// InjectFrame queues a frame for the next ReadFrame call.
func (d *ChannelDevice) InjectFrame(payload []byte, src header.MACAddress, etherType uint16) {
	f := &Frame{
		Buf:  netbuf.NewPayload(payload, InboundHeadroom),
		Src:  src,
		Dst:  d.mac,
		Type: etherType,
	}
	d.inbound = append(d.inbound, f)
}

func (d *ChannelDevice) ReadFrame() (*Frame, error) {
	if len(d.inbound) == 0 {
		return nil, ErrTimeout
	}
	f := d.inbound[0]
	d.inbound = d.inbound[1:]
	return f, nil
}

func (d *ChannelDevice) WriteFrame(buf *netbuf.Buffer, dst header.MACAddress, etherType uint16) error {
	encodeEthernet(buf, d.mac, dst, etherType)
	data := make([]byte, buf.Len())
	copy(data, buf.Bytes())
	d.Sent = append(d.Sent, SentFrame{Data: data, Dst: dst, Type: etherType})
	return nil
}

// SentPayload returns the i-th transmitted frame without its Ethernet header.
func (d *ChannelDevice) SentPayload(i int) []byte {
	return d.Sent[i].Data[EthernetHeaderSize:]
}

func (d *ChannelDevice) Close() error { return nil }
