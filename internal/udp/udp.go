// Package udp implements UDP over IPv4: a port-to-handler table, checksum
// validation against the IPv4 pseudo-header, and port-unreachable generation
// for datagrams nobody listens for.
package udp

import (
	"fmt"

	"firestige.xyz/ipstack/internal/checksum"
	"firestige.xyz/ipstack/internal/header"
	"firestige.xyz/ipstack/internal/ipv4"
	"firestige.xyz/ipstack/internal/log"
	"firestige.xyz/ipstack/internal/metrics"
	"firestige.xyz/ipstack/internal/netbuf"
	"firestige.xyz/ipstack/internal/stack"
)

// PortHandler consumes the payload of a datagram delivered to an open port.
type PortHandler func(payload []byte, src header.IPv4Address, srcPort uint16)

// IPSender is the slice of the IPv4 endpoint this package transmits through.
type IPSender interface {
	Send(buf *netbuf.Buffer, dst header.IPv4Address, protocol uint8)
}

// ControlSender raises port-unreachable errors. original must hold the
// offending datagram with an IPv4 header in front.
type ControlSender interface {
	SendPortUnreachable(original *netbuf.Buffer, dst header.IPv4Address)
}

// Endpoint is the UDP protocol instance bound to one stack.
//
// The port table is only touched from the dispatch goroutine and from setup
// code that runs before the loop starts, so it carries no lock.
type Endpoint struct {
	stack   *stack.Stack
	ip      IPSender
	control ControlSender
	ports   map[uint16]PortHandler
	logger  log.Logger
}

// New registers the UDP handler on the stack.
func New(s *stack.Stack, ip IPSender, control ControlSender) *Endpoint {
	e := &Endpoint{
		stack:   s,
		ip:      ip,
		control: control,
		ports:   make(map[uint16]PortHandler),
		logger:  s.Logger().WithField("proto", "udp"),
	}
	s.Registry().Register(header.ProtocolUDP, stack.HandlerFunc(e.HandlePacket))
	return e
}

// Open binds handler to a local port.
func (e *Endpoint) Open(port uint16, handler PortHandler) error {
	if _, taken := e.ports[port]; taken {
		return fmt.Errorf("udp: port %d already open", port)
	}
	e.ports[port] = handler
	return nil
}

// Close releases a local port.
func (e *Endpoint) Close(port uint16) {
	delete(e.ports, port)
}

// HandlePacket processes an inbound datagram. origin is the source IPv4
// address. A datagram for a port nobody opened is answered with an ICMP
// port-unreachable quoting the datagram.
func (e *Endpoint) HandlePacket(buf *netbuf.Buffer, origin []byte) {
	b := buf.Bytes()
	if len(b) < header.UDPMinimumSize {
		metrics.PacketsDroppedTotal.WithLabelValues("udp", metrics.ReasonTooShort).Inc()
		return
	}
	h := header.UDP(b)
	udpLen := int(h.Length())
	if udpLen < header.UDPMinimumSize || udpLen > len(b) {
		metrics.PacketsDroppedTotal.WithLabelValues("udp", metrics.ReasonBadLength).Inc()
		return
	}
	if buf.Len() > udpLen {
		buf.RemovePadding(buf.Len() - udpLen)
		b = buf.Bytes()
	}

	src := header.IPv4AddressFrom(origin)
	host := e.stack.HostIPv4()
	sum := checksum.PseudoHeaderSum(src[:], host[:], uint8(header.ProtocolUDP), uint32(udpLen))
	if checksum.Fold(checksum.Sum(b, sum)) != 0xffff {
		metrics.PacketsDroppedTotal.WithLabelValues("udp", metrics.ReasonBadChecksum).Inc()
		e.logger.WithField("src", src.String()).Debug("checksum mismatch")
		return
	}
	metrics.PacketsReceivedTotal.WithLabelValues("udp").Inc()

	dstPort := h.DestinationPort()
	handler, open := e.ports[dstPort]
	if !open {
		metrics.PacketsDroppedTotal.WithLabelValues("udp", metrics.ReasonNoHandler).Inc()
		e.sendPortUnreachable(buf, src)
		return
	}
	srcPort := h.SourcePort()
	buf.RemoveHeader(header.UDPMinimumSize)
	handler(buf.Bytes(), src, srcPort)
}

// sendPortUnreachable rebuilds an IPv4 header in front of the datagram so
// the ICMP error can quote it. The stripped header's bytes are gone by the
// time dispatch reaches this layer, so the quote carries a reconstruction
// with the same addresses, protocol and length.
func (e *Endpoint) sendPortUnreachable(buf *netbuf.Buffer, src header.IPv4Address) {
	if e.control == nil {
		return
	}
	buf.AddHeader(header.IPv4MinimumSize)
	header.IPv4(buf.Bytes()).Encode(&header.IPv4Fields{
		TotalLength: uint16(buf.Len()),
		TTL:         header.IPv4DefaultTTL,
		Protocol:    uint8(header.ProtocolUDP),
		Src:         src,
		Dst:         e.stack.HostIPv4(),
	})
	e.control.SendPortUnreachable(buf, src)
}

// Send transmits payload from srcPort to dst:dstPort. The checksum covers
// the pseudo-header built from the host and destination addresses.
func (e *Endpoint) Send(payload []byte, dst header.IPv4Address, srcPort, dstPort uint16) {
	buf := netbuf.NewPayload(payload, ipv4.OutboundHeadroom+header.UDPMinimumSize)
	buf.AddHeader(header.UDPMinimumSize)
	h := header.UDP(buf.Bytes())
	h.SetSourcePort(srcPort)
	h.SetDestinationPort(dstPort)
	h.SetLength(uint16(buf.Len()))

	host := e.stack.HostIPv4()
	sum := checksum.PseudoHeaderSum(host[:], dst[:], uint8(header.ProtocolUDP), uint32(buf.Len()))
	h.SetChecksum(checksum.Checksum(buf.Bytes(), sum))

	metrics.PacketsSentTotal.WithLabelValues("udp").Inc()
	e.ip.Send(buf, dst, uint8(header.ProtocolUDP))
}
