// Package boot assembles a running node: it opens the capture device, builds
// the stack and wires every protocol endpoint onto it in dependency order.
package boot

import (
	"context"

	"firestige.xyz/ipstack/internal/arp"
	"firestige.xyz/ipstack/internal/config"
	"firestige.xyz/ipstack/internal/header"
	"firestige.xyz/ipstack/internal/icmp4"
	"firestige.xyz/ipstack/internal/icmp6"
	"firestige.xyz/ipstack/internal/ipv4"
	"firestige.xyz/ipstack/internal/ipv6"
	"firestige.xyz/ipstack/internal/link"
	"firestige.xyz/ipstack/internal/log"
	"firestige.xyz/ipstack/internal/metrics"
	"firestige.xyz/ipstack/internal/stack"
	"firestige.xyz/ipstack/internal/udp"
)

// Node is a fully wired stack with all protocol endpoints attached.
type Node struct {
	Stack  *stack.Stack
	Dev    link.Device
	ARP    *arp.Endpoint
	IPv4   *ipv4.Endpoint
	ICMP   *icmp4.Endpoint
	IPv6   *ipv6.Endpoint
	ICMPv6 *icmp6.Endpoint
	UDP    *udp.Endpoint
}

// Assemble builds a stack over dev and registers every protocol endpoint.
// The ICMP endpoint is wired back into the IPv4 layer after construction so
// undeliverable protocols produce unreachable errors.
func Assemble(dev link.Device, hostIPv4 header.IPv4Address, opts ...stack.Option) *Node {
	s := stack.New(dev, hostIPv4, opts...)

	arpEp := arp.New(s)
	ip4 := ipv4.New(s, arpEp)
	icmp := icmp4.New(s, ip4)
	ip4.SetControl(icmp)
	ip6 := ipv6.New(s)
	icmpv6 := icmp6.New(s, ip6)
	udpEp := udp.New(s, ip4, icmp)

	return &Node{
		Stack:  s,
		Dev:    dev,
		ARP:    arpEp,
		IPv4:   ip4,
		ICMP:   icmp,
		IPv6:   ip6,
		ICMPv6: icmpv6,
		UDP:    udpEp,
	}
}

// Start opens the configured capture device and assembles a node on it.
func Start(cfg *config.Config) (*Node, error) {
	if err := log.Init(&cfg.Log); err != nil {
		return nil, err
	}
	logger := log.GetLogger()
	logger.WithField("interface", cfg.Interface).Info("opening capture device")

	dev, err := link.Open(cfg.Capture.Driver, cfg.Interface, link.DriverOptions{
		SnapLen:     cfg.Capture.SnapLen,
		Promiscuous: cfg.Capture.Promiscuous,
		TimeoutMs:   cfg.Capture.TimeoutMs,
		BPFFilter:   cfg.Capture.BPFFilter,
		Extra:       cfg.Capture.Options,
	})
	if err != nil {
		return nil, err
	}

	hostIPv4, err := cfg.HostIPv4()
	if err != nil {
		dev.Close()
		return nil, err
	}
	var opts []stack.Option
	if mac, ok := cfg.HostMAC(); ok {
		opts = append(opts, stack.WithMAC(mac))
	}

	if cfg.Metrics.Enabled {
		metrics.Serve(cfg.Metrics.Listen, cfg.Metrics.Path)
	}

	return Assemble(dev, hostIPv4, opts...), nil
}

// Run drives the dispatch loop until ctx is canceled.
func (n *Node) Run(ctx context.Context) error {
	return n.Stack.Run(ctx)
}

// Close releases the capture device.
func (n *Node) Close() error {
	return n.Dev.Close()
}
