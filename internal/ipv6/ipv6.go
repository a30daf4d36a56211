// Package ipv6 implements the IPv6 layer. The host holds a single link-local
// address derived from its MAC, and next-hop MACs are derived directly from
// the destination address (multicast mapping or EUI-64) rather than resolved
// through a neighbor cache.
package ipv6

import (
	"firestige.xyz/ipstack/internal/header"
	"firestige.xyz/ipstack/internal/link"
	"firestige.xyz/ipstack/internal/log"
	"firestige.xyz/ipstack/internal/metrics"
	"firestige.xyz/ipstack/internal/netbuf"
	"firestige.xyz/ipstack/internal/stack"
)

// OutboundHeadroom is what upper layers must reserve in front of their
// payload for the IPv6 and Ethernet headers.
const OutboundHeadroom = link.EthernetHeaderSize + header.IPv6HeaderSize

// Endpoint is the IPv6 protocol instance bound to one stack.
type Endpoint struct {
	stack  *stack.Stack
	logger log.Logger
}

// New registers the IPv6 handler on the stack.
func New(s *stack.Stack) *Endpoint {
	e := &Endpoint{
		stack:  s,
		logger: s.Logger().WithField("proto", "ipv6"),
	}
	s.Registry().Register(header.EthertypeIPv6, stack.HandlerFunc(e.HandlePacket))
	e.logger.WithField("addr", s.HostIPv6().String()).Info("link-local address active")
	return e
}

// HandlePacket validates an inbound datagram and dispatches its payload by
// next-header value, passing the source IPv6 address up as the origin.
// Accepted destinations are the host's unicast address and the all-nodes
// multicast group.
func (e *Endpoint) HandlePacket(buf *netbuf.Buffer, origin []byte) {
	b := buf.Bytes()
	if len(b) < header.IPv6HeaderSize {
		metrics.PacketsDroppedTotal.WithLabelValues("ipv6", metrics.ReasonTooShort).Inc()
		return
	}
	h := header.IPv6(b)
	if h.Version() != header.IPv6Version {
		metrics.PacketsDroppedTotal.WithLabelValues("ipv6", metrics.ReasonBadVersion).Inc()
		return
	}
	payloadLen := int(h.PayloadLength())
	if payloadLen > len(b)-header.IPv6HeaderSize {
		metrics.PacketsDroppedTotal.WithLabelValues("ipv6", metrics.ReasonBadLength).Inc()
		return
	}
	dst := h.DestinationAddress()
	if dst != e.stack.HostIPv6() && dst != header.IPv6AllNodesMulticast {
		metrics.PacketsDroppedTotal.WithLabelValues("ipv6", metrics.ReasonNotForHost).Inc()
		return
	}

	totalLen := header.IPv6HeaderSize + payloadLen
	if buf.Len() > totalLen {
		buf.RemovePadding(buf.Len() - totalLen)
	}

	savedHdr := make([]byte, header.IPv6HeaderSize)
	copy(savedHdr, b[:header.IPv6HeaderSize])
	src := h.SourceAddress()
	nextHeader := h.NextHeader()

	buf.RemoveHeader(header.IPv6HeaderSize)
	metrics.PacketsReceivedTotal.WithLabelValues("ipv6").Inc()

	if !e.stack.Registry().Dispatch(uint16(nextHeader), buf, src[:]) {
		metrics.PacketsDroppedTotal.WithLabelValues("ipv6", metrics.ReasonNoHandler).Inc()
		buf.AddHeader(header.IPv6HeaderSize)
		copy(buf.Bytes()[:header.IPv6HeaderSize], savedHdr)
		e.logger.WithField("next_header", nextHeader).Debug("no handler for next header")
	}
}

// Send prepends the IPv6 header and transmits buf to dst. buf must carry
// OutboundHeadroom. The next-hop MAC is derived from the destination:
// multicast maps to 33:33 plus the low 32 bits, link-local unicast recovers
// the MAC from the EUI-64 interface identifier, and anything else falls back
// to broadcast.
func (e *Endpoint) Send(buf *netbuf.Buffer, dst header.IPv6Address, nextHeader uint8) {
	payloadLen := buf.Len()
	buf.AddHeader(header.IPv6HeaderSize)
	h := header.IPv6(buf.Bytes())
	h.SetVersionTCFlow(header.IPv6Version, 0, 0)
	h.SetPayloadLength(uint16(payloadLen))
	h.SetNextHeader(nextHeader)
	h.SetHopLimit(header.IPv6DefaultHopLimit)
	h.SetSourceAddress(e.stack.HostIPv6())
	h.SetDestinationAddress(dst)

	var dstMAC header.MACAddress
	switch {
	case dst.IsMulticast():
		dstMAC = dst.MulticastMAC()
	case dst.IsLinkLocal():
		dstMAC = dst.EUI64MAC()
	default:
		dstMAC = header.BroadcastMAC
	}

	metrics.PacketsSentTotal.WithLabelValues("ipv6").Inc()
	e.stack.SendFrame(buf, dstMAC, header.EthertypeIPv6)
}
