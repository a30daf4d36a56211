package udp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"firestige.xyz/ipstack/internal/boot"
	"firestige.xyz/ipstack/internal/checksum"
	"firestige.xyz/ipstack/internal/header"
	"firestige.xyz/ipstack/internal/link"
	"firestige.xyz/ipstack/internal/stack"
)

var (
	hostMAC = header.MACAddress{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	hostIP  = header.IPv4Address{192, 168, 1, 10}
	peerMAC = header.MACAddress{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
	peerIP  = header.IPv4Address{192, 168, 1, 20}
)

func newTestNode(t *testing.T) (*link.ChannelDevice, *boot.Node) {
	t.Helper()
	dev := link.NewChannelDevice(hostMAC)
	node := boot.Assemble(dev, hostIP, stack.WithMAC(hostMAC))

	arpReply := make([]byte, header.ARPSize)
	pkt := header.ARP(arpReply)
	pkt.SetIPv4OverEthernet()
	pkt.SetOp(header.ARPReply)
	copy(pkt.SenderMAC(), peerMAC[:])
	copy(pkt.SenderIP(), peerIP[:])
	dev.InjectFrame(arpReply, peerMAC, header.EthertypeARP)
	assert.NoError(t, node.Stack.Poll())

	dev.Sent = nil
	return dev, node
}

// makeUDP builds a checksummed datagram body from the peer.
func makeUDP(srcPort, dstPort uint16, payload []byte) []byte {
	b := make([]byte, header.UDPMinimumSize+len(payload))
	h := header.UDP(b)
	h.SetSourcePort(srcPort)
	h.SetDestinationPort(dstPort)
	h.SetLength(uint16(len(b)))
	copy(b[header.UDPMinimumSize:], payload)
	sum := checksum.PseudoHeaderSum(peerIP[:], hostIP[:], uint8(header.ProtocolUDP), uint32(len(b)))
	h.SetChecksum(checksum.Checksum(b, sum))
	return b
}

func injectUDP(t *testing.T, dev *link.ChannelDevice, node *boot.Node, msg []byte) {
	t.Helper()
	b := make([]byte, header.IPv4MinimumSize+len(msg))
	header.IPv4(b).Encode(&header.IPv4Fields{
		TotalLength: uint16(len(b)),
		TTL:         64,
		Protocol:    uint8(header.ProtocolUDP),
		Src:         peerIP,
		Dst:         hostIP,
	})
	copy(b[header.IPv4MinimumSize:], msg)
	dev.InjectFrame(b, peerMAC, header.EthertypeIPv4)
	assert.NoError(t, node.Stack.Poll())
}

func TestHandlePacket_DeliversToOpenPort(t *testing.T) {
	dev, node := newTestNode(t)

	var gotPayload []byte
	var gotSrc header.IPv4Address
	var gotPort uint16
	err := node.UDP.Open(9000, func(payload []byte, src header.IPv4Address, srcPort uint16) {
		gotPayload = append([]byte{}, payload...)
		gotSrc = src
		gotPort = srcPort
	})
	assert.NoError(t, err)

	injectUDP(t, dev, node, makeUDP(5353, 9000, []byte("datagram")))

	assert.Equal(t, []byte("datagram"), gotPayload)
	assert.Equal(t, peerIP, gotSrc)
	assert.Equal(t, uint16(5353), gotPort)
	assert.Empty(t, dev.Sent)
}

func TestHandlePacket_UnboundPortAnswersPortUnreachable(t *testing.T) {
	dev, node := newTestNode(t)

	injectUDP(t, dev, node, makeUDP(5353, 9000, []byte{1, 2, 3}))

	assert.Len(t, dev.Sent, 1)
	ip := header.IPv4(dev.SentPayload(0))
	assert.Equal(t, uint8(header.ProtocolICMP), ip.Protocol())
	assert.Equal(t, peerIP, ip.DestinationAddress())

	icmp := header.ICMPv4(dev.SentPayload(0)[header.IPv4MinimumSize:])
	assert.Equal(t, header.ICMPv4Unreachable, icmp.Type())
	assert.Equal(t, header.ICMPv4CodePortUnreachable, icmp.Code())

	// The quote opens with a header naming the offending flow.
	quoted := header.IPv4(icmp[header.ICMPv4MinimumSize:])
	assert.Equal(t, uint8(header.ProtocolUDP), quoted.Protocol())
	assert.Equal(t, peerIP, quoted.SourceAddress())
	assert.Equal(t, hostIP, quoted.DestinationAddress())
	quotedUDP := header.UDP(icmp[header.ICMPv4MinimumSize+header.IPv4MinimumSize:])
	assert.Equal(t, uint16(9000), quotedUDP.DestinationPort())
}

func TestHandlePacket_BadChecksumDropped(t *testing.T) {
	dev, node := newTestNode(t)

	delivered := false
	assert.NoError(t, node.UDP.Open(9000, func([]byte, header.IPv4Address, uint16) {
		delivered = true
	}))

	msg := makeUDP(5353, 9000, []byte{1})
	msg[6] ^= 0xff
	injectUDP(t, dev, node, msg)

	assert.False(t, delivered)
	assert.Empty(t, dev.Sent)
}

func TestHandlePacket_ClosedPortStopsDelivery(t *testing.T) {
	dev, node := newTestNode(t)

	assert.NoError(t, node.UDP.Open(9000, func([]byte, header.IPv4Address, uint16) {}))
	node.UDP.Close(9000)

	injectUDP(t, dev, node, makeUDP(5353, 9000, nil))

	// Back to unreachable once the port is gone.
	assert.Len(t, dev.Sent, 1)
}

func TestOpen_DuplicatePortRejected(t *testing.T) {
	_, node := newTestNode(t)

	assert.NoError(t, node.UDP.Open(9000, func([]byte, header.IPv4Address, uint16) {}))
	err := node.UDP.Open(9000, func([]byte, header.IPv4Address, uint16) {})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already open")
}

func TestSend_Shape(t *testing.T) {
	dev, node := newTestNode(t)

	node.UDP.Send([]byte("payload"), peerIP, 9000, 5353)

	assert.Len(t, dev.Sent, 1)
	ip := header.IPv4(dev.SentPayload(0))
	assert.Equal(t, uint8(header.ProtocolUDP), ip.Protocol())

	msg := dev.SentPayload(0)[header.IPv4MinimumSize:]
	h := header.UDP(msg)
	assert.Equal(t, uint16(9000), h.SourcePort())
	assert.Equal(t, uint16(5353), h.DestinationPort())
	assert.Equal(t, uint16(len(msg)), h.Length())
	assert.Equal(t, []byte("payload"), msg[header.UDPMinimumSize:])

	sum := checksum.PseudoHeaderSum(hostIP[:], peerIP[:], uint8(header.ProtocolUDP), uint32(len(msg)))
	assert.Equal(t, uint16(0xffff), checksum.Fold(checksum.Sum(msg, sum)))
}
