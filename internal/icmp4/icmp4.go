// Package icmp4 implements ICMP for IPv4: answering echo requests,
// generating destination-unreachable errors for the layers below, and a
// small ping client that tracks outstanding echo requests by sequence
// number.
package icmp4

import (
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"firestige.xyz/ipstack/internal/checksum"
	"firestige.xyz/ipstack/internal/header"
	"firestige.xyz/ipstack/internal/ipv4"
	"firestige.xyz/ipstack/internal/log"
	"firestige.xyz/ipstack/internal/metrics"
	"firestige.xyz/ipstack/internal/netbuf"
	"firestige.xyz/ipstack/internal/stack"
)

const (
	// EchoPayloadSize is the data carried by outbound echo requests.
	EchoPayloadSize = 56

	// unreachableQuoteLimit caps how much of the offending datagram's
	// payload an error message quotes, beyond its IP header.
	unreachableQuoteLimit = 8

	// requestTTL is how long an echo request waits for its reply before the
	// sequence number is forgotten.
	requestTTL = 5 * time.Second

	cleanupInterval = 30 * time.Second
)

// IPSender is the slice of the IPv4 endpoint this package transmits through.
type IPSender interface {
	Send(buf *netbuf.Buffer, dst header.IPv4Address, protocol uint8)
}

// Endpoint is the ICMPv4 protocol instance bound to one stack.
type Endpoint struct {
	stack *stack.Stack
	ip    IPSender

	// pending maps an echo sequence number to its transmit time.
	pending *cache.Cache

	ident uint16
	seq   uint16

	sent     int
	received int
	rttSum   float64
	rttMin   float64
	rttMax   float64

	logger log.Logger
}

// New registers the ICMPv4 handler on the stack.
func New(s *stack.Stack, ip IPSender) *Endpoint {
	e := &Endpoint{
		stack:   s,
		ip:      ip,
		pending: cache.New(requestTTL, cleanupInterval),
		ident:   uint16(time.Now().UnixNano()),
		logger:  s.Logger().WithField("proto", "icmp"),
	}
	s.Registry().Register(header.ProtocolICMP, stack.HandlerFunc(e.HandlePacket))
	return e
}

// HandlePacket processes an inbound ICMP message. origin is the source IPv4
// address of the enclosing datagram.
func (e *Endpoint) HandlePacket(buf *netbuf.Buffer, origin []byte) {
	b := buf.Bytes()
	if len(b) < header.ICMPv4MinimumSize {
		metrics.PacketsDroppedTotal.WithLabelValues("icmp", metrics.ReasonTooShort).Inc()
		return
	}
	if !checksum.Verify(b) {
		metrics.PacketsDroppedTotal.WithLabelValues("icmp", metrics.ReasonBadChecksum).Inc()
		return
	}
	metrics.PacketsReceivedTotal.WithLabelValues("icmp").Inc()

	h := header.ICMPv4(b)
	src := header.IPv4AddressFrom(origin)
	switch h.Type() {
	case header.ICMPv4EchoRequest:
		e.sendEchoReply(h, src)
	case header.ICMPv4EchoReply:
		e.handleEchoReply(h, src)
	case header.ICMPv4Unreachable:
		e.logger.WithFields(map[string]interface{}{
			"src":  src.String(),
			"code": h.Code(),
		}).Info("destination unreachable received")
	default:
		e.logger.WithField("type", h.Type()).Debug("unhandled icmp type")
	}
}

// sendEchoReply answers a request by echoing its identifier, sequence and
// payload back to the sender.
func (e *Endpoint) sendEchoReply(req header.ICMPv4, dst header.IPv4Address) {
	buf := netbuf.New(len(req), ipv4.OutboundHeadroom)
	reply := header.ICMPv4(buf.Bytes())
	copy(reply, req)
	reply.SetType(header.ICMPv4EchoReply)
	reply.SetChecksum(0)
	reply.SetChecksum(checksum.Checksum(reply, 0))
	metrics.EchoRepliesTotal.WithLabelValues("ipv4").Inc()
	metrics.PacketsSentTotal.WithLabelValues("icmp").Inc()
	e.ip.Send(buf, dst, uint8(header.ProtocolICMP))
}

func (e *Endpoint) handleEchoReply(h header.ICMPv4, src header.IPv4Address) {
	if h.Ident() != e.ident {
		e.logger.WithField("ident", h.Ident()).Debug("echo reply for foreign ident")
		return
	}
	key := strconv.Itoa(int(h.Sequence()))
	v, ok := e.pending.Get(key)
	if !ok {
		e.logger.WithField("seq", h.Sequence()).Debug("echo reply with no matching request")
		return
	}
	e.pending.Delete(key)

	rtt := float64(time.Since(v.(time.Time)).Microseconds()) / 1000
	e.received++
	e.rttSum += rtt
	if e.received == 1 || rtt < e.rttMin {
		e.rttMin = rtt
	}
	if rtt > e.rttMax {
		e.rttMax = rtt
	}
	e.logger.WithFields(map[string]interface{}{
		"from":   src.String(),
		"bytes":  len(h),
		"seq":    h.Sequence(),
		"rtt_ms": rtt,
	}).Info("echo reply")
}

// Ping sends one echo request to dst and records the sequence number so the
// matching reply can be timed. Unanswered requests expire after requestTTL.
func (e *Endpoint) Ping(dst header.IPv4Address) {
	e.seq++
	seq := e.seq

	buf := netbuf.New(header.ICMPv4MinimumSize+EchoPayloadSize, ipv4.OutboundHeadroom)
	h := header.ICMPv4(buf.Bytes())
	h.SetType(header.ICMPv4EchoRequest)
	h.SetIdent(e.ident)
	h.SetSequence(seq)
	payload := buf.Bytes()[header.ICMPv4MinimumSize:]
	for i := range payload {
		payload[i] = byte(i)
	}
	h.SetChecksum(checksum.Checksum(h, 0))

	e.pending.Set(strconv.Itoa(int(seq)), time.Now(), cache.DefaultExpiration)
	e.sent++
	metrics.PacketsSentTotal.WithLabelValues("icmp").Inc()
	e.ip.Send(buf, dst, uint8(header.ProtocolICMP))
}

// SendProtocolUnreachable reports that original's protocol had no handler.
func (e *Endpoint) SendProtocolUnreachable(original *netbuf.Buffer, dst header.IPv4Address) {
	e.sendUnreachable(original, dst, header.ICMPv4CodeProtocolUnreachable)
}

// SendPortUnreachable reports that original's destination port was not open.
// original must hold the datagram with its IP header in place.
func (e *Endpoint) SendPortUnreachable(original *netbuf.Buffer, dst header.IPv4Address) {
	e.sendUnreachable(original, dst, header.ICMPv4CodePortUnreachable)
}

// sendUnreachable quotes the offending datagram's IP header plus at most
// unreachableQuoteLimit payload bytes under a type-3 header.
func (e *Endpoint) sendUnreachable(original *netbuf.Buffer, dst header.IPv4Address, code uint8) {
	quote := original.Bytes()
	ipHdrLen := header.IPv4(quote).HeaderLength()
	max := ipHdrLen + unreachableQuoteLimit
	if len(quote) > max {
		quote = quote[:max]
	}

	buf := netbuf.New(header.ICMPv4MinimumSize+len(quote), ipv4.OutboundHeadroom)
	h := header.ICMPv4(buf.Bytes())
	h.SetType(header.ICMPv4Unreachable)
	h.SetCode(code)
	copy(buf.Bytes()[header.ICMPv4MinimumSize:], quote)
	h.SetChecksum(checksum.Checksum(buf.Bytes(), 0))

	metrics.PacketsSentTotal.WithLabelValues("icmp").Inc()
	e.ip.Send(buf, dst, uint8(header.ProtocolICMP))
}

// PendingRequests returns the number of echo requests still awaiting a
// reply. Entries past their TTL are not counted, even before the cache
// janitor sweeps them, so callers polling for completion stop at the TTL.
func (e *Endpoint) PendingRequests() int {
	return len(e.pending.Items())
}

// Stats is a snapshot of the ping client's counters. RTT fields are only
// meaningful when Received is nonzero.
type Stats struct {
	Sent     int
	Received int
	Loss     float64 // percent
	RTTMin   float64
	RTTAvg   float64
	RTTMax   float64
}

// Stats returns the current ping statistics.
func (e *Endpoint) Stats() Stats {
	s := Stats{
		Sent:     e.sent,
		Received: e.received,
		RTTMin:   e.rttMin,
		RTTMax:   e.rttMax,
	}
	if e.sent > 0 {
		s.Loss = float64(e.sent-e.received) / float64(e.sent) * 100
	}
	if e.received > 0 {
		s.RTTAvg = e.rttSum / float64(e.received)
	}
	return s
}

// ReportStats logs the ping summary. The round-trip section is included
// only when at least one reply arrived.
func (e *Endpoint) ReportStats() {
	if e.sent == 0 {
		return
	}
	s := e.Stats()
	fields := map[string]interface{}{
		"sent":     s.Sent,
		"received": s.Received,
		"loss_pct": s.Loss,
	}
	if s.Received > 0 {
		fields["rtt_min"] = s.RTTMin
		fields["rtt_avg"] = s.RTTAvg
		fields["rtt_max"] = s.RTTMax
	}
	e.logger.WithFields(fields).Info("ping statistics")
}
