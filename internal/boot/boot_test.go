package boot_test

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

func TestAssemble_WiresEveryEndpoint(t *testing.T) {
	dev := link.NewChannelDevice(hostMAC)
	node := boot.Assemble(dev, hostIP, stack.WithMAC(hostMAC))

	assert.NotNil(t, node.ARP)
	assert.NotNil(t, node.IPv4)
	assert.NotNil(t, node.ICMP)
	assert.NotNil(t, node.IPv6)
	assert.NotNil(t, node.ICMPv6)
	assert.NotNil(t, node.UDP)

	// Construction announces the host address.
	assert.Len(t, dev.Sent, 1)
	assert.Equal(t, header.EthertypeARP, dev.Sent[0].Type)
}

// TestNode_AnswersPingExchange walks the full inbound path: a peer resolves
// the host with ARP, then pings it, all through the same dispatch loop.
func TestNode_AnswersPingExchange(t *testing.T) {
	dev := link.NewChannelDevice(hostMAC)
	node := boot.Assemble(dev, hostIP, stack.WithMAC(hostMAC))
	dev.Sent = nil

	// ARP request from the peer.
	arpReq := make([]byte, header.ARPSize)
	pkt := header.ARP(arpReq)
	pkt.SetIPv4OverEthernet()
	pkt.SetOp(header.ARPRequest)
	copy(pkt.SenderMAC(), peerMAC[:])
	copy(pkt.SenderIP(), peerIP[:])
	copy(pkt.TargetIP(), hostIP[:])
	dev.InjectFrame(arpReq, peerMAC, header.EthertypeARP)
	assert.NoError(t, node.Stack.Poll())

	assert.Len(t, dev.Sent, 1)
	assert.Equal(t, header.ARPReply, header.ARP(dev.SentPayload(0)).Op())

	// ICMP echo request from the peer.
	msg := make([]byte, header.ICMPv4MinimumSize+4)
	icmp := header.ICMPv4(msg)
	icmp.SetType(header.ICMPv4EchoRequest)
	icmp.SetIdent(42)
	icmp.SetSequence(1)
	copy(msg[header.ICMPv4MinimumSize:], "ping")
	icmp.SetChecksum(checksum.Checksum(msg, 0))

	datagram := make([]byte, header.IPv4MinimumSize+len(msg))
	header.IPv4(datagram).Encode(&header.IPv4Fields{
		TotalLength: uint16(len(datagram)),
		TTL:         64,
		Protocol:    uint8(header.ProtocolICMP),
		Src:         peerIP,
		Dst:         hostIP,
	})
	copy(datagram[header.IPv4MinimumSize:], msg)
	dev.InjectFrame(datagram, peerMAC, header.EthertypeIPv4)
	assert.NoError(t, node.Stack.Poll())

	// The reply rides the ARP entry learned from the request.
	assert.Len(t, dev.Sent, 2)
	assert.Equal(t, peerMAC, dev.Sent[1].Dst)
	reply := header.ICMPv4(dev.SentPayload(1)[header.IPv4MinimumSize:])
	assert.Equal(t, header.ICMPv4EchoReply, reply.Type())
	assert.Equal(t, uint16(42), reply.Ident())
	assert.Equal(t, []byte("ping"), []byte(reply[header.ICMPv4MinimumSize:]))
}

// TestNode_AnswersNeighborDiscovery exercises the IPv6 half: a solicitation
// for the host's link-local address yields an advertisement.
func TestNode_AnswersNeighborDiscovery(t *testing.T) {
	dev := link.NewChannelDevice(hostMAC)
	node := boot.Assemble(dev, hostIP, stack.WithMAC(hostMAC))
	dev.Sent = nil

	hostLL := node.Stack.HostIPv6()
	peerLL := header.LinkLocalFromMAC(peerMAC)

	msg := make([]byte, header.ICMPv6NeighborSize+header.NDPLinkAddrOptSize)
	ns := header.ICMPv6(msg)
	ns.SetType(header.ICMPv6NeighborSolicit)
	ns.SetTargetAddress(hostLL)
	header.NDPLinkAddrOpt(msg[header.ICMPv6NeighborSize:]).Encode(header.NDPOptSourceLinkAddr, peerMAC)
	sum := checksum.PseudoHeaderSum(peerLL[:], hostLL[:], uint8(header.ProtocolICMPv6), uint32(len(msg)))
	ns.SetChecksum(checksum.Checksum(msg, sum))

	datagram := make([]byte, header.IPv6HeaderSize+len(msg))
	h := header.IPv6(datagram)
	h.SetVersionTCFlow(header.IPv6Version, 0, 0)
	h.SetPayloadLength(uint16(len(msg)))
	h.SetNextHeader(uint8(header.ProtocolICMPv6))
	h.SetHopLimit(255)
	h.SetSourceAddress(peerLL)
	h.SetDestinationAddress(hostLL)
	copy(datagram[header.IPv6HeaderSize:], msg)
	dev.InjectFrame(datagram, peerMAC, header.EthertypeIPv6)
	assert.NoError(t, node.Stack.Poll())

	assert.Len(t, dev.Sent, 1)
	assert.Equal(t, peerMAC, dev.Sent[0].Dst)
	na := header.ICMPv6(dev.SentPayload(0)[header.IPv6HeaderSize:])
	assert.Equal(t, header.ICMPv6NeighborAdvert, na.Type())
	assert.Equal(t, hostLL, na.TargetAddress())
	assert.Equal(t, hostMAC, header.NDPLinkAddrOpt(na[header.ICMPv6NeighborSize:]).MAC())
}
