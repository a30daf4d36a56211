package link

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/google/gopacket/afpacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/net/bpf"

	"firestige.xyz/ipstack/internal/header"
	"firestige.xyz/ipstack/internal/netbuf"
)

// afpacketOptions are the driver-specific settings carried in the capture
// option map.
type afpacketOptions struct {
	BufferSizeMB int    `mapstructure:"buffer_size_mb"`
	FanoutID     uint16 `mapstructure:"fanout_id"`
}

// AFPacketDevice captures frames through an AF_PACKET ring buffer.
type AFPacketDevice struct {
	handle    *afpacket.TPacket
	mac       header.MACAddress
	frameSize int
}

// OpenAFPacket opens iface with a TPacketV3 ring.
func OpenAFPacket(iface string, opts DriverOptions) (Device, error) {
	ifc, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("link: interface %s: %w", iface, err)
	}
	if len(ifc.HardwareAddr) != 6 {
		return nil, fmt.Errorf("link: interface %s has no usable MAC", iface)
	}

	var extra afpacketOptions
	if opts.Extra != nil {
		if err := mapstructure.Decode(opts.Extra, &extra); err != nil {
			return nil, fmt.Errorf("link: afpacket options: %w", err)
		}
	}
	if extra.BufferSizeMB <= 0 {
		extra.BufferSizeMB = 8
	}
	snapLen := opts.SnapLen
	if snapLen <= 0 {
		snapLen = 65535
	}

	frameSize, blockSize, numBlocks, err := ringLayout(extra.BufferSizeMB, snapLen, os.Getpagesize())
	if err != nil {
		return nil, err
	}

	timeout := opts.TimeoutMs
	if timeout <= 0 {
		timeout = 10
	}

	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(iface),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptPollTimeout(time.Duration(timeout)*time.Millisecond),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return nil, fmt.Errorf("link: afpacket: %w", err)
	}

	if extra.FanoutID > 0 {
		if err := tp.SetFanout(afpacket.FanoutHashWithDefrag, extra.FanoutID); err != nil {
			tp.Close()
			return nil, fmt.Errorf("link: set fanout: %w", err)
		}
	}

	if opts.BPFFilter != "" {
		pcapBPF, err := pcap.CompileBPFFilter(layers.LinkTypeEthernet, frameSize, opts.BPFFilter)
		if err != nil {
			tp.Close()
			return nil, fmt.Errorf("link: compile bpf: %w", err)
		}
		rawBPF := make([]bpf.RawInstruction, len(pcapBPF))
		for i, inst := range pcapBPF {
			rawBPF[i] = bpf.RawInstruction{
				Op: inst.Code,
				Jt: inst.Jt,
				Jf: inst.Jf,
				K:  inst.K,
			}
		}
		if err := tp.SetBPF(rawBPF); err != nil {
			tp.Close()
			return nil, fmt.Errorf("link: set bpf: %w", err)
		}
	}

	d := &AFPacketDevice{handle: tp, frameSize: frameSize}
	copy(d.mac[:], ifc.HardwareAddr)
	return d, nil
}

func (d *AFPacketDevice) MAC() header.MACAddress { return d.mac }

func (d *AFPacketDevice) ReadFrame() (*Frame, error) {
	data, _, err := d.handle.ReadPacketData()
	if err == afpacket.ErrTimeout {
		return nil, ErrTimeout
	}
	if err != nil {
		return nil, err
	}
	if len(data) < EthernetHeaderSize {
		return nil, ErrTimeout
	}

	f := &Frame{
		Buf:  netbuf.NewPayload(data[EthernetHeaderSize:], InboundHeadroom),
		Type: uint16(data[12])<<8 | uint16(data[13]),
	}
	copy(f.Dst[:], data[0:6])
	copy(f.Src[:], data[6:12])
	return f, nil
}

func (d *AFPacketDevice) WriteFrame(buf *netbuf.Buffer, dst header.MACAddress, etherType uint16) error {
	encodeEthernet(buf, d.mac, dst, etherType)
	return d.handle.WritePacketData(buf.Bytes())
}

func (d *AFPacketDevice) Close() error {
	d.handle.Close()
	return nil
}

// ringLayout fits frame, block and block-count sizes to the AF_PACKET
// alignment rules within the requested memory budget.
func ringLayout(bufferSizeMB, snapLen, pageSize int) (frameSize, blockSize, numBlocks int, err error) {
	const tpacketAlignment = 16

	if bufferSizeMB <= 0 || snapLen <= 0 || pageSize <= 0 {
		return 0, 0, 0, fmt.Errorf("link: invalid ring parameters buffer=%dMB snap=%d page=%d",
			bufferSizeMB, snapLen, pageSize)
	}

	frameSize = (snapLen + tpacketAlignment - 1) &^ (tpacketAlignment - 1)
	blockSize = pageSize
	for blockSize < frameSize {
		blockSize *= 2
	}
	numBlocks = bufferSizeMB * 1024 * 1024 / blockSize
	if numBlocks < 1 {
		numBlocks = 1
	}
	return frameSize, blockSize, numBlocks, nil
}
