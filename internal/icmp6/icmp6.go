// Package icmp6 implements ICMPv6: echo request/reply, destination
// unreachable, and the Neighbor Discovery subset needed to answer
// solicitations for the host's link-local address.
//
// Checksums cover the IPv6 pseudo-header. On receive, validation runs
// against (sender, host unicast); a message delivered via a multicast group
// is checksummed by its sender against that group address and will not
// verify here, so such traffic is dropped at this layer.
package icmp6

import (
	"firestige.xyz/ipstack/internal/checksum"
	"firestige.xyz/ipstack/internal/header"
	"firestige.xyz/ipstack/internal/ipv6"
	"firestige.xyz/ipstack/internal/log"
	"firestige.xyz/ipstack/internal/metrics"
	"firestige.xyz/ipstack/internal/netbuf"
	"firestige.xyz/ipstack/internal/stack"
)

// unreachableQuoteLimit caps an error message's quoted datagram so the whole
// reply fits the IPv6 minimum MTU: 1280 minus IPv6 and error headers.
const unreachableQuoteLimit = header.IPv6MinimumMTU - header.IPv6HeaderSize - header.ICMPv6ErrorHeaderSize

// IPv6Sender is the slice of the IPv6 endpoint this package transmits
// through.
type IPv6Sender interface {
	Send(buf *netbuf.Buffer, dst header.IPv6Address, nextHeader uint8)
}

// Endpoint is the ICMPv6 protocol instance bound to one stack.
type Endpoint struct {
	stack  *stack.Stack
	ip     IPv6Sender
	logger log.Logger
}

// New registers the ICMPv6 handler on the stack.
func New(s *stack.Stack, ip IPv6Sender) *Endpoint {
	e := &Endpoint{
		stack:  s,
		ip:     ip,
		logger: s.Logger().WithField("proto", "icmpv6"),
	}
	s.Registry().Register(header.ProtocolICMPv6, stack.HandlerFunc(e.HandlePacket))
	return e
}

// HandlePacket processes an inbound ICMPv6 message. origin is the source
// IPv6 address of the enclosing datagram.
func (e *Endpoint) HandlePacket(buf *netbuf.Buffer, origin []byte) {
	b := buf.Bytes()
	if len(b) < header.ICMPv6HeaderSize {
		metrics.PacketsDroppedTotal.WithLabelValues("icmpv6", metrics.ReasonTooShort).Inc()
		return
	}
	src := header.IPv6AddressFrom(origin)
	host := e.stack.HostIPv6()
	if !verifyChecksum(b, src, host) {
		metrics.PacketsDroppedTotal.WithLabelValues("icmpv6", metrics.ReasonBadChecksum).Inc()
		e.logger.WithField("src", src.String()).Debug("checksum mismatch")
		return
	}
	metrics.PacketsReceivedTotal.WithLabelValues("icmpv6").Inc()

	h := header.ICMPv6(b)
	switch h.Type() {
	case header.ICMPv6EchoRequest:
		e.sendEchoReply(h, src)
	case header.ICMPv6EchoReply:
		e.logger.WithFields(map[string]interface{}{
			"src": src.String(),
			"seq": h.Sequence(),
		}).Info("echo reply")
	case header.ICMPv6NeighborSolicit:
		e.handleNeighborSolicit(h, src)
	case header.ICMPv6NeighborAdvert:
		e.handleNeighborAdvert(h, src)
	case header.ICMPv6RouterSolicit:
		e.logger.WithField("src", src.String()).Debug("router solicitation ignored, not a router")
	case header.ICMPv6RouterAdvert:
		e.logger.WithField("src", src.String()).Debug("router advertisement received")
	default:
		e.logger.WithField("type", h.Type()).Debug("unhandled icmpv6 type")
	}
}

// sendEchoReply echoes the request body back with the type flipped.
func (e *Endpoint) sendEchoReply(req header.ICMPv6, dst header.IPv6Address) {
	buf := netbuf.New(len(req), ipv6.OutboundHeadroom)
	reply := header.ICMPv6(buf.Bytes())
	copy(reply, req)
	reply.SetType(header.ICMPv6EchoReply)
	reply.SetCode(0)
	e.finishAndSend(buf, dst)
	metrics.EchoRepliesTotal.WithLabelValues("ipv6").Inc()
}

// handleNeighborSolicit answers solicitations whose target is the host's own
// address with a solicited advertisement.
func (e *Endpoint) handleNeighborSolicit(h header.ICMPv6, src header.IPv6Address) {
	if len(h) < header.ICMPv6NeighborSize {
		metrics.PacketsDroppedTotal.WithLabelValues("icmpv6", metrics.ReasonTooShort).Inc()
		return
	}
	if h.TargetAddress() != e.stack.HostIPv6() {
		return
	}
	e.SendNeighborAdvert(src, true)
}

// handleNeighborAdvert logs the advertised mapping. There is no neighbor
// cache to update; next-hop MACs are derived from addresses directly.
func (e *Endpoint) handleNeighborAdvert(h header.ICMPv6, src header.IPv6Address) {
	if len(h) < header.ICMPv6NeighborSize {
		metrics.PacketsDroppedTotal.WithLabelValues("icmpv6", metrics.ReasonTooShort).Inc()
		return
	}
	if len(h) >= header.ICMPv6NeighborSize+header.NDPLinkAddrOptSize {
		opt := header.NDPLinkAddrOpt(h[header.ICMPv6NeighborSize:])
		if opt.Type() == header.NDPOptTargetLinkAddr && opt.Length() == 1 {
			e.logger.WithFields(map[string]interface{}{
				"src": src.String(),
				"mac": opt.MAC().String(),
			}).Info("neighbor advertisement")
		}
	}
}

// SendEchoRequest sends one echo request carrying data to dst.
func (e *Endpoint) SendEchoRequest(dst header.IPv6Address, ident, seq uint16, data []byte) {
	buf := netbuf.New(header.ICMPv6EchoMinimumSize+len(data), ipv6.OutboundHeadroom)
	h := header.ICMPv6(buf.Bytes())
	h.SetType(header.ICMPv6EchoRequest)
	h.SetIdent(ident)
	h.SetSequence(seq)
	copy(buf.Bytes()[header.ICMPv6EchoMinimumSize:], data)
	e.finishAndSend(buf, dst)
}

// SendUnreachable quotes as much of the offending datagram as fits the IPv6
// minimum MTU under a destination-unreachable header.
func (e *Endpoint) SendUnreachable(original *netbuf.Buffer, dst header.IPv6Address, code uint8) {
	quote := original.Bytes()
	if len(quote) > unreachableQuoteLimit {
		quote = quote[:unreachableQuoteLimit]
	}
	buf := netbuf.New(header.ICMPv6ErrorHeaderSize+len(quote), ipv6.OutboundHeadroom)
	h := header.ICMPv6(buf.Bytes())
	h.SetType(header.ICMPv6Unreachable)
	h.SetCode(code)
	copy(buf.Bytes()[header.ICMPv6ErrorHeaderSize:], quote)
	e.finishAndSend(buf, dst)
}

// SendNeighborSolicit asks for target's link-layer address via its
// solicited-node multicast group, attaching the host's own address as a
// source link-layer option.
func (e *Endpoint) SendNeighborSolicit(target header.IPv6Address) {
	buf := netbuf.New(header.ICMPv6NeighborSize+header.NDPLinkAddrOptSize, ipv6.OutboundHeadroom)
	h := header.ICMPv6(buf.Bytes())
	h.SetType(header.ICMPv6NeighborSolicit)
	h.SetTargetAddress(target)
	opt := header.NDPLinkAddrOpt(buf.Bytes()[header.ICMPv6NeighborSize:])
	opt.Encode(header.NDPOptSourceLinkAddr, e.stack.HostMAC())
	e.finishAndSend(buf, target.SolicitedNodeMulticast())
}

// SendNeighborAdvert advertises the host's address to dst with the override
// flag set, plus solicited when answering a solicitation. The target
// link-layer option carries the host MAC.
func (e *Endpoint) SendNeighborAdvert(dst header.IPv6Address, solicited bool) {
	buf := netbuf.New(header.ICMPv6NeighborSize+header.NDPLinkAddrOptSize, ipv6.OutboundHeadroom)
	h := header.ICMPv6(buf.Bytes())
	h.SetType(header.ICMPv6NeighborAdvert)
	flags := header.NDPOverrideFlag
	if solicited {
		flags |= header.NDPSolicitedFlag
	}
	h.SetNeighborFlags(flags)
	h.SetTargetAddress(e.stack.HostIPv6())
	opt := header.NDPLinkAddrOpt(buf.Bytes()[header.ICMPv6NeighborSize:])
	opt.Encode(header.NDPOptTargetLinkAddr, e.stack.HostMAC())
	e.finishAndSend(buf, dst)
}

// finishAndSend computes the pseudo-header checksum against (host, dst) and
// hands the message to the IPv6 layer.
func (e *Endpoint) finishAndSend(buf *netbuf.Buffer, dst header.IPv6Address) {
	h := header.ICMPv6(buf.Bytes())
	h.SetChecksum(0)
	host := e.stack.HostIPv6()
	sum := checksum.PseudoHeaderSum(host[:], dst[:], uint8(header.ProtocolICMPv6), uint32(buf.Len()))
	h.SetChecksum(checksum.Checksum(buf.Bytes(), sum))
	metrics.PacketsSentTotal.WithLabelValues("icmpv6").Inc()
	e.ip.Send(buf, dst, uint8(header.ProtocolICMPv6))
}

// verifyChecksum checks b against the pseudo-header built from (src, dst).
func verifyChecksum(b []byte, src, dst header.IPv6Address) bool {
	sum := checksum.PseudoHeaderSum(src[:], dst[:], uint8(header.ProtocolICMPv6), uint32(len(b)))
	return checksum.Fold(checksum.Sum(b, sum)) == 0xffff
}
