// Package arp implements IPv4 address resolution: a TTL'd IP-to-MAC table
// and a single-slot queue of packets waiting on an outstanding request.
package arp

import (
	"time"

	"github.com/patrickmn/go-cache"

	"firestige.xyz/ipstack/internal/header"
	"firestige.xyz/ipstack/internal/link"
	"firestige.xyz/ipstack/internal/log"
	"firestige.xyz/ipstack/internal/metrics"
	"firestige.xyz/ipstack/internal/netbuf"
	"firestige.xyz/ipstack/internal/stack"
)

const (
	// entryTTL is how long a learned mapping stays valid. An expired entry
	// is indistinguishable from an absent one on lookup.
	entryTTL = 60 * time.Second

	// pendingTTL bounds how long a queued packet waits for a reply. Once it
	// lapses, the next send to that destination starts a fresh request.
	pendingTTL = 1 * time.Second

	cleanupInterval = 30 * time.Second
)

// Endpoint is the ARP protocol instance bound to one stack.
type Endpoint struct {
	stack *stack.Stack

	// table maps IP to MAC with per-entry refresh on any observed ARP
	// packet from that sender.
	table *cache.Cache

	// pending holds at most one buffered outbound packet per unresolved IP.
	// Further packets to the same IP are dropped, not queued.
	pending *cache.Cache

	logger log.Logger
}

// New registers the ARP handler on the stack and announces the host's own
// address with a gratuitous request.
func New(s *stack.Stack) *Endpoint {
	e := &Endpoint{
		stack:   s,
		table:   cache.New(entryTTL, cleanupInterval),
		pending: cache.New(pendingTTL, cleanupInterval),
		logger:  s.Logger().WithField("proto", "arp"),
	}
	s.Registry().Register(header.EthertypeARP, stack.HandlerFunc(e.HandlePacket))
	e.sendRequest(s.HostIPv4())
	return e
}

// Lookup returns the unexpired mapping for ip.
func (e *Endpoint) Lookup(ip header.IPv4Address) (header.MACAddress, bool) {
	v, ok := e.table.Get(string(ip[:]))
	if !ok {
		return header.MACAddress{}, false
	}
	return v.(header.MACAddress), true
}

// ResolveAndSend transmits buf to ip if its MAC is known. Otherwise the
// packet is parked (one slot per destination) and a request goes out; while
// a slot is occupied, additional packets to the same IP are dropped.
func (e *Endpoint) ResolveAndSend(buf *netbuf.Buffer, ip header.IPv4Address) {
	if mac, ok := e.Lookup(ip); ok {
		metrics.ARPResolutionsTotal.WithLabelValues("hit").Inc()
		e.stack.SendFrame(buf, mac, header.EthertypeIPv4)
		return
	}
	key := string(ip[:])
	if _, ok := e.pending.Get(key); ok {
		metrics.ARPResolutionsTotal.WithLabelValues("dropped").Inc()
		metrics.PacketsDroppedTotal.WithLabelValues("arp", metrics.ReasonPending).Inc()
		e.logger.WithField("ip", ip.String()).Debug("resolution pending, packet dropped")
		return
	}
	metrics.ARPResolutionsTotal.WithLabelValues("miss").Inc()
	e.pending.Set(key, buf, cache.DefaultExpiration)
	e.sendRequest(ip)
}

// HandlePacket processes a received ARP packet. Any valid packet refreshes
// the sender's table entry, flushes a waiting buffer if one exists, and a
// request for the host's own IP is answered with a reply.
func (e *Endpoint) HandlePacket(buf *netbuf.Buffer, origin []byte) {
	pkt := header.ARP(buf.Bytes())
	if !pkt.IsValid() {
		metrics.PacketsDroppedTotal.WithLabelValues("arp", metrics.ReasonBadLength).Inc()
		return
	}

	senderIP := header.IPv4AddressFrom(pkt.SenderIP())
	var senderMAC header.MACAddress
	copy(senderMAC[:], pkt.SenderMAC())
	e.table.Set(string(senderIP[:]), senderMAC, cache.DefaultExpiration)
	metrics.PacketsReceivedTotal.WithLabelValues("arp").Inc()

	if v, ok := e.pending.Get(string(senderIP[:])); ok {
		waiting := v.(*netbuf.Buffer)
		e.pending.Delete(string(senderIP[:]))
		e.stack.SendFrame(waiting, senderMAC, header.EthertypeIPv4)
		return
	}

	if pkt.Op() == header.ARPRequest &&
		header.IPv4AddressFrom(pkt.TargetIP()) == e.stack.HostIPv4() {
		e.sendReply(senderIP, senderMAC)
	}
}

// PendingCount returns the number of occupied pending slots.
func (e *Endpoint) PendingCount() int {
	return e.pending.ItemCount()
}

// DumpTable logs the current table at debug level.
func (e *Endpoint) DumpTable() {
	for key, item := range e.table.Items() {
		ip := header.IPv4AddressFrom([]byte(key))
		e.logger.WithFields(map[string]interface{}{
			"ip":  ip.String(),
			"mac": item.Object.(header.MACAddress).String(),
		}).Debug("arp table entry")
	}
}

func (e *Endpoint) sendRequest(target header.IPv4Address) {
	buf := e.newPacket(header.ARPRequest)
	pkt := header.ARP(buf.Bytes())
	copy(pkt.TargetIP(), target[:])
	e.stack.SendFrame(buf, header.BroadcastMAC, header.EthertypeARP)
	metrics.PacketsSentTotal.WithLabelValues("arp").Inc()
}

func (e *Endpoint) sendReply(targetIP header.IPv4Address, targetMAC header.MACAddress) {
	buf := e.newPacket(header.ARPReply)
	pkt := header.ARP(buf.Bytes())
	copy(pkt.TargetIP(), targetIP[:])
	copy(pkt.TargetMAC(), targetMAC[:])
	e.stack.SendFrame(buf, targetMAC, header.EthertypeARP)
	metrics.PacketsSentTotal.WithLabelValues("arp").Inc()
}

// newPacket builds an ARP packet with the sender fields filled in. The
// target fields are zero until the caller sets them.
func (e *Endpoint) newPacket(op header.ARPOp) *netbuf.Buffer {
	buf := netbuf.New(header.ARPSize, link.EthernetHeaderSize)
	pkt := header.ARP(buf.Bytes())
	pkt.SetIPv4OverEthernet()
	pkt.SetOp(op)
	mac := e.stack.HostMAC()
	ip := e.stack.HostIPv4()
	copy(pkt.SenderMAC(), mac[:])
	copy(pkt.SenderIP(), ip[:])
	return buf
}
