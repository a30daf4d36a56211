package link

import (
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"firestige.xyz/ipstack/internal/header"
	"firestige.xyz/ipstack/internal/netbuf"
)

// PcapDevice captures and injects frames through libpcap.
type PcapDevice struct {
	handle *pcap.Handle
	mac    header.MACAddress
	parser *gopacket.DecodingLayerParser
	eth    layers.Ethernet
}

// OpenPcap opens iface for live capture.
func OpenPcap(iface string, opts DriverOptions) (Device, error) {
	ifc, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("link: interface %s: %w", iface, err)
	}
	if len(ifc.HardwareAddr) != 6 {
		return nil, fmt.Errorf("link: interface %s has no usable MAC", iface)
	}

	snapLen := opts.SnapLen
	if snapLen <= 0 {
		snapLen = 65535
	}
	timeout := time.Duration(opts.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Millisecond
	}

	handle, err := pcap.OpenLive(iface, int32(snapLen), opts.Promiscuous, timeout)
	if err != nil {
		return nil, fmt.Errorf("link: open %s: %w", iface, err)
	}
	if opts.BPFFilter != "" {
		if err := handle.SetBPFFilter(opts.BPFFilter); err != nil {
			handle.Close()
			return nil, fmt.Errorf("link: bpf filter: %w", err)
		}
	}

	d := &PcapDevice{handle: handle}
	copy(d.mac[:], ifc.HardwareAddr)
	d.parser = gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet, &d.eth)
	d.parser.IgnoreUnsupported = true
	return d, nil
}

func (d *PcapDevice) MAC() header.MACAddress { return d.mac }

func (d *PcapDevice) ReadFrame() (*Frame, error) {
	data, _, err := d.handle.ReadPacketData()
	if err == pcap.NextErrorTimeoutExpired {
		return nil, ErrTimeout
	}
	if err != nil {
		return nil, err
	}

	var decoded []gopacket.LayerType
	if err := d.parser.DecodeLayers(data, &decoded); err != nil || len(decoded) == 0 {
		return nil, ErrTimeout // not an Ethernet frame we understand
	}

	f := &Frame{
		Buf:  netbuf.NewPayload(d.eth.Payload, InboundHeadroom),
		Type: uint16(d.eth.EthernetType),
	}
	copy(f.Src[:], d.eth.SrcMAC)
	copy(f.Dst[:], d.eth.DstMAC)
	return f, nil
}

func (d *PcapDevice) WriteFrame(buf *netbuf.Buffer, dst header.MACAddress, etherType uint16) error {
	encodeEthernet(buf, d.mac, dst, etherType)
	return d.handle.WritePacketData(buf.Bytes())
}

func (d *PcapDevice) Close() error {
	d.handle.Close()
	return nil
}
