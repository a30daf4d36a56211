package ipv6_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"firestige.xyz/ipstack/internal/header"
	"firestige.xyz/ipstack/internal/ipv6"
	"firestige.xyz/ipstack/internal/link"
	"firestige.xyz/ipstack/internal/netbuf"
	"firestige.xyz/ipstack/internal/stack"
)

var (
	hostMAC = header.MACAddress{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	hostIP  = header.IPv4Address{192, 168, 1, 10}
	peerMAC = header.MACAddress{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
)

func newTestStack(t *testing.T) (*link.ChannelDevice, *stack.Stack, *ipv6.Endpoint) {
	t.Helper()
	dev := link.NewChannelDevice(hostMAC)
	s := stack.New(dev, hostIP)
	return dev, s, ipv6.New(s)
}

// makeDatagram builds an inbound datagram from the peer's link-local address.
func makeDatagram(dst header.IPv6Address, nextHeader uint8, payload []byte) []byte {
	b := make([]byte, header.IPv6HeaderSize+len(payload))
	h := header.IPv6(b)
	h.SetVersionTCFlow(header.IPv6Version, 0, 0)
	h.SetPayloadLength(uint16(len(payload)))
	h.SetNextHeader(nextHeader)
	h.SetHopLimit(64)
	h.SetSourceAddress(header.LinkLocalFromMAC(peerMAC))
	h.SetDestinationAddress(dst)
	copy(b[header.IPv6HeaderSize:], payload)
	return b
}

func TestHandlePacket_DispatchesByNextHeader(t *testing.T) {
	dev, s, _ := newTestStack(t)

	var gotPayload []byte
	var gotOrigin header.IPv6Address
	s.Registry().Register(0xfd, stack.HandlerFunc(func(buf *netbuf.Buffer, origin []byte) {
		gotPayload = append([]byte{}, buf.Bytes()...)
		gotOrigin = header.IPv6AddressFrom(origin)
	}))

	dev.InjectFrame(makeDatagram(s.HostIPv6(), 0xfd, []byte{1, 2, 3}), peerMAC, header.EthertypeIPv6)
	assert.NoError(t, s.Poll())

	assert.Equal(t, []byte{1, 2, 3}, gotPayload)
	assert.Equal(t, header.LinkLocalFromMAC(peerMAC), gotOrigin)
}

func TestHandlePacket_AcceptsAllNodesMulticast(t *testing.T) {
	dev, s, _ := newTestStack(t)

	delivered := false
	s.Registry().Register(0xfd, stack.HandlerFunc(func(buf *netbuf.Buffer, origin []byte) {
		delivered = true
	}))

	dev.InjectFrame(makeDatagram(header.IPv6AllNodesMulticast, 0xfd, nil), peerMAC, header.EthertypeIPv6)
	assert.NoError(t, s.Poll())
	assert.True(t, delivered)
}

func TestHandlePacket_ForeignDestinationDropped(t *testing.T) {
	dev, s, _ := newTestStack(t)

	delivered := false
	s.Registry().Register(0xfd, stack.HandlerFunc(func(buf *netbuf.Buffer, origin []byte) {
		delivered = true
	}))

	other := header.LinkLocalFromMAC(header.MACAddress{0x02, 0, 0, 0, 0, 0x99})
	dev.InjectFrame(makeDatagram(other, 0xfd, nil), peerMAC, header.EthertypeIPv6)
	assert.NoError(t, s.Poll())
	assert.False(t, delivered)
}

func TestHandlePacket_BadVersionDropped(t *testing.T) {
	dev, s, _ := newTestStack(t)

	delivered := false
	s.Registry().Register(0xfd, stack.HandlerFunc(func(buf *netbuf.Buffer, origin []byte) {
		delivered = true
	}))

	b := makeDatagram(s.HostIPv6(), 0xfd, nil)
	header.IPv6(b).SetVersionTCFlow(4, 0, 0)
	dev.InjectFrame(b, peerMAC, header.EthertypeIPv6)
	assert.NoError(t, s.Poll())
	assert.False(t, delivered)
}

func TestHandlePacket_OverlongPayloadLengthDropped(t *testing.T) {
	dev, s, _ := newTestStack(t)

	delivered := false
	s.Registry().Register(0xfd, stack.HandlerFunc(func(buf *netbuf.Buffer, origin []byte) {
		delivered = true
	}))

	b := makeDatagram(s.HostIPv6(), 0xfd, []byte{1, 2})
	header.IPv6(b).SetPayloadLength(100)
	dev.InjectFrame(b, peerMAC, header.EthertypeIPv6)
	assert.NoError(t, s.Poll())
	assert.False(t, delivered)
}

func TestHandlePacket_PaddingTrimmedBeforeDispatch(t *testing.T) {
	dev, s, _ := newTestStack(t)

	var gotLen int
	s.Registry().Register(0xfd, stack.HandlerFunc(func(buf *netbuf.Buffer, origin []byte) {
		gotLen = buf.Len()
	}))

	b := makeDatagram(s.HostIPv6(), 0xfd, []byte{1, 2, 3})
	padded := append(b, make([]byte, 10)...)
	dev.InjectFrame(padded, peerMAC, header.EthertypeIPv6)
	assert.NoError(t, s.Poll())
	assert.Equal(t, 3, gotLen)
}

func TestSend_HeaderFields(t *testing.T) {
	dev, s, e := newTestStack(t)

	dst := header.LinkLocalFromMAC(peerMAC)
	e.Send(netbuf.NewPayload([]byte{0xaa, 0xbb}, ipv6.OutboundHeadroom), dst, 0xfd)

	assert.Len(t, dev.Sent, 1)
	h := header.IPv6(dev.SentPayload(0))
	assert.Equal(t, uint8(6), h.Version())
	assert.Equal(t, uint16(2), h.PayloadLength())
	assert.Equal(t, uint8(0xfd), h.NextHeader())
	assert.Equal(t, uint8(header.IPv6DefaultHopLimit), h.HopLimit())
	assert.Equal(t, s.HostIPv6(), h.SourceAddress())
	assert.Equal(t, dst, h.DestinationAddress())
}

func TestSend_NextHopMACDerivation(t *testing.T) {
	cases := []struct {
		name string
		dst  header.IPv6Address
		want header.MACAddress
	}{
		{
			"multicast maps to 33:33",
			header.IPv6AllNodesMulticast,
			header.MACAddress{0x33, 0x33, 0x00, 0x00, 0x00, 0x01},
		},
		{
			"link local recovers embedded MAC",
			header.LinkLocalFromMAC(peerMAC),
			peerMAC,
		},
		{
			"global falls back to broadcast",
			header.IPv6Address{0: 0x20, 1: 0x01, 15: 0x01},
			header.BroadcastMAC,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dev, _, e := newTestStack(t)
			e.Send(netbuf.New(0, ipv6.OutboundHeadroom), tc.dst, 0xfd)
			assert.Equal(t, tc.want, dev.Sent[0].Dst)
			assert.Equal(t, header.EthertypeIPv6, dev.Sent[0].Type)
		})
	}
}
