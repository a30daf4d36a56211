package stack_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"firestige.xyz/ipstack/internal/header"
	"firestige.xyz/ipstack/internal/link"
	"firestige.xyz/ipstack/internal/netbuf"
	"firestige.xyz/ipstack/internal/stack"
)

var (
	hostMAC = header.MACAddress{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	hostIP  = header.IPv4Address{10, 0, 0, 1}
)

func TestNew_DerivesLinkLocalFromMAC(t *testing.T) {
	s := stack.New(link.NewChannelDevice(hostMAC), hostIP)

	assert.Equal(t, hostMAC, s.HostMAC())
	assert.Equal(t, hostIP, s.HostIPv4())
	assert.Equal(t, header.LinkLocalFromMAC(hostMAC), s.HostIPv6())
}

func TestWithMAC_OverrideRederivesIPv6(t *testing.T) {
	override := header.MACAddress{0x02, 0xaa, 0xbb, 0xcc, 0xdd, 0xee}
	s := stack.New(link.NewChannelDevice(hostMAC), hostIP, stack.WithMAC(override))

	assert.Equal(t, override, s.HostMAC())
	assert.Equal(t, header.LinkLocalFromMAC(override), s.HostIPv6())
}

func TestPoll_DispatchesByEthertype(t *testing.T) {
	dev := link.NewChannelDevice(hostMAC)
	s := stack.New(dev, hostIP)

	var gotOrigin header.MACAddress
	s.Registry().Register(0x1234, stack.HandlerFunc(func(buf *netbuf.Buffer, origin []byte) {
		copy(gotOrigin[:], origin)
	}))

	src := header.MACAddress{0x02, 0, 0, 0, 0, 0x55}
	dev.InjectFrame([]byte{0xab}, src, 0x1234)
	assert.NoError(t, s.Poll())
	assert.Equal(t, src, gotOrigin)
}

func TestPoll_EmptyDeviceReturnsTimeout(t *testing.T) {
	s := stack.New(link.NewChannelDevice(hostMAC), hostIP)
	assert.Equal(t, link.ErrTimeout, s.Poll())
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	s := stack.New(link.NewChannelDevice(hostMAC), hostIP)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
