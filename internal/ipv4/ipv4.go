// Package ipv4 implements the IPv4 layer: header validation on receive,
// next-protocol dispatch, and header construction with fragmentation on
// transmit. There is no receive-side reassembly; a fragmented inbound
// datagram is dispatched fragment by fragment and cannot be reconstructed.
package ipv4

import (
	"firestige.xyz/ipstack/internal/arp"
	"firestige.xyz/ipstack/internal/header"
	"firestige.xyz/ipstack/internal/link"
	"firestige.xyz/ipstack/internal/log"
	"firestige.xyz/ipstack/internal/metrics"
	"firestige.xyz/ipstack/internal/netbuf"
	"firestige.xyz/ipstack/internal/stack"
)

const (
	// MTU is the link payload limit that triggers fragmentation.
	MTU = link.DefaultMTU

	// MaxFragmentPayload is the payload carried by each fragment.
	MaxFragmentPayload = MTU - header.IPv4MinimumSize

	// OutboundHeadroom is what upper layers must reserve in front of their
	// payload for the IPv4 and Ethernet headers.
	OutboundHeadroom = link.EthernetHeaderSize + header.IPv4MinimumSize
)

// ControlSender raises ICMP errors on behalf of the IP layer. It is set
// after construction because the ICMP endpoint itself sends through this
// one.
type ControlSender interface {
	// SendProtocolUnreachable answers a datagram whose protocol had no
	// handler. original holds the datagram with its IP header restored.
	SendProtocolUnreachable(original *netbuf.Buffer, dst header.IPv4Address)
}

// Endpoint is the IPv4 protocol instance bound to one stack.
type Endpoint struct {
	stack   *stack.Stack
	arp     *arp.Endpoint
	control ControlSender
	fragID  uint16
	logger  log.Logger
}

// New registers the IPv4 handler on the stack.
func New(s *stack.Stack, arpEp *arp.Endpoint) *Endpoint {
	e := &Endpoint{
		stack:  s,
		arp:    arpEp,
		logger: s.Logger().WithField("proto", "ipv4"),
	}
	s.Registry().Register(header.EthertypeIPv4, stack.HandlerFunc(e.HandlePacket))
	return e
}

// SetControl wires the ICMP error generator.
func (e *Endpoint) SetControl(c ControlSender) { e.control = c }

// HandlePacket validates an inbound datagram and dispatches its payload by
// protocol number, passing the source IP up as the origin. Malformed input
// is dropped silently.
func (e *Endpoint) HandlePacket(buf *netbuf.Buffer, origin []byte) {
	b := buf.Bytes()
	if len(b) < header.IPv4MinimumSize {
		metrics.PacketsDroppedTotal.WithLabelValues("ipv4", metrics.ReasonTooShort).Inc()
		return
	}
	h := header.IPv4(b)
	if h.Version() != header.IPv4Version {
		metrics.PacketsDroppedTotal.WithLabelValues("ipv4", metrics.ReasonBadVersion).Inc()
		return
	}
	hdrLen := h.HeaderLength()
	if hdrLen < header.IPv4MinimumSize {
		metrics.PacketsDroppedTotal.WithLabelValues("ipv4", metrics.ReasonBadLength).Inc()
		return
	}
	totalLen := int(h.TotalLength())
	if totalLen > len(b) || totalLen < hdrLen {
		metrics.PacketsDroppedTotal.WithLabelValues("ipv4", metrics.ReasonBadLength).Inc()
		return
	}
	if !h.ChecksumValid() {
		metrics.PacketsDroppedTotal.WithLabelValues("ipv4", metrics.ReasonBadChecksum).Inc()
		e.logger.Debug("header checksum mismatch")
		return
	}
	if h.DestinationAddress() != e.stack.HostIPv4() {
		metrics.PacketsDroppedTotal.WithLabelValues("ipv4", metrics.ReasonNotForHost).Inc()
		return
	}

	if buf.Len() > totalLen {
		buf.RemovePadding(buf.Len() - totalLen)
	}

	// Keep the header bytes around: the no-handler path re-attaches them
	// so the ICMP error can quote the offending datagram.
	savedHdr := make([]byte, hdrLen)
	copy(savedHdr, buf.Bytes()[:hdrLen])
	src := h.SourceAddress()
	proto := h.Protocol()

	buf.RemoveHeader(hdrLen)
	metrics.PacketsReceivedTotal.WithLabelValues("ipv4").Inc()

	if !e.stack.Registry().Dispatch(uint16(proto), buf, src[:]) {
		metrics.PacketsDroppedTotal.WithLabelValues("ipv4", metrics.ReasonNoHandler).Inc()
		buf.AddHeader(hdrLen)
		copy(buf.Bytes()[:hdrLen], savedHdr)
		if e.control != nil {
			e.control.SendProtocolUnreachable(buf, src)
		}
	}
}

// Send transmits buf to dst. A payload exceeding the MTU is split into
// fragments sharing one identification value, each independently
// checksummed and resolved through ARP. buf must carry OutboundHeadroom.
func (e *Endpoint) Send(buf *netbuf.Buffer, dst header.IPv4Address, protocol uint8) {
	id := e.fragID
	e.fragID++

	if buf.Len() <= MaxFragmentPayload {
		e.sendFragment(buf, dst, protocol, id, 0, false)
		return
	}

	payload := buf.Bytes()
	for offset := 0; offset < len(payload); offset += MaxFragmentPayload {
		end := offset + MaxFragmentPayload
		more := true
		if end >= len(payload) {
			end = len(payload)
			more = false
		}
		frag := netbuf.NewPayload(payload[offset:end], OutboundHeadroom)
		e.sendFragment(frag, dst, protocol, id, offset, more)
	}
}

func (e *Endpoint) sendFragment(buf *netbuf.Buffer, dst header.IPv4Address, protocol uint8, id uint16, offset int, more bool) {
	buf.AddHeader(header.IPv4MinimumSize)
	h := header.IPv4(buf.Bytes())
	h.Encode(&header.IPv4Fields{
		TotalLength:    uint16(buf.Len()),
		ID:             id,
		MoreFragments:  more,
		FragmentOffset: offset,
		TTL:            header.IPv4DefaultTTL,
		Protocol:       protocol,
		Src:            e.stack.HostIPv4(),
		Dst:            dst,
	})
	metrics.PacketsSentTotal.WithLabelValues("ipv4").Inc()
	e.arp.ResolveAndSend(buf, dst)
}
