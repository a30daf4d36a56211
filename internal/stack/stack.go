// Package stack owns the per-instance state of the network stack: host
// addresses, the protocol registry and the dispatch loop. Protocol packages
// hang their handlers and tables off a Stack instead of process globals, so
// multiple independent stacks can coexist (tests run one per case).
package stack

import (
	"context"

	"firestige.xyz/ipstack/internal/header"
	"firestige.xyz/ipstack/internal/link"
	"firestige.xyz/ipstack/internal/log"
	"firestige.xyz/ipstack/internal/netbuf"
)

// Stack ties a link device to the protocol handlers registered on it.
//
// Dispatch is single-goroutine: Run (or Poll) executes every handler to
// completion before the next frame is pulled, so protocol tables hanging off
// the stack need no locking of their own.
type Stack struct {
	dev      link.Device
	mac      header.MACAddress
	ipv4     header.IPv4Address
	ipv6     header.IPv6Address
	registry *Registry
	logger   log.Logger
}

// Option adjusts a Stack during construction.
type Option func(*Stack)

// WithMAC overrides the hardware address reported by the device.
func WithMAC(mac header.MACAddress) Option {
	return func(s *Stack) {
		s.mac = mac
		s.ipv6 = header.LinkLocalFromMAC(mac)
	}
}

// New creates a stack for the device. The host's IPv6 link-local address is
// derived from the MAC via EUI-64.
func New(dev link.Device, hostIPv4 header.IPv4Address, opts ...Option) *Stack {
	s := &Stack{
		dev:      dev,
		mac:      dev.MAC(),
		ipv4:     hostIPv4,
		registry: NewRegistry(),
		logger:   log.GetLogger(),
	}
	s.ipv6 = header.LinkLocalFromMAC(s.mac)
	for _, opt := range opts {
		opt(s)
	}
	s.logger.WithFields(map[string]interface{}{
		"mac":  s.mac.String(),
		"ipv4": s.ipv4.String(),
		"ipv6": s.ipv6.String(),
	}).Info("stack addresses configured")
	return s
}

// HostMAC returns the stack's hardware address.
func (s *Stack) HostMAC() header.MACAddress { return s.mac }

// HostIPv4 returns the stack's IPv4 address.
func (s *Stack) HostIPv4() header.IPv4Address { return s.ipv4 }

// HostIPv6 returns the stack's link-local IPv6 address.
func (s *Stack) HostIPv6() header.IPv6Address { return s.ipv6 }

// Registry returns the shared protocol dispatch table.
func (s *Stack) Registry() *Registry { return s.registry }

// Logger returns the stack's logger.
func (s *Stack) Logger() log.Logger { return s.logger }

// SendFrame hands a fully built network-layer packet to the link layer.
func (s *Stack) SendFrame(buf *netbuf.Buffer, dst header.MACAddress, etherType uint16) {
	if err := s.dev.WriteFrame(buf, dst, etherType); err != nil {
		s.logger.WithError(err).Warn("frame transmit failed")
	}
}

// Poll pulls at most one frame from the device and runs its handler to
// completion. It returns link.ErrTimeout when nothing was available.
func (s *Stack) Poll() error {
	frame, err := s.dev.ReadFrame()
	if err != nil {
		return err
	}
	if !s.registry.Dispatch(frame.Type, frame.Buf, frame.Src[:]) {
		s.logger.WithField("ethertype", frame.Type).Debug("no handler for ethertype")
	}
	return nil
}

// Run polls the device until ctx is canceled. Frame handlers run
// synchronously on this goroutine, including any transmissions they
// originate.
func (s *Stack) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := s.Poll(); err != nil && err != link.ErrTimeout {
			return err
		}
	}
}
