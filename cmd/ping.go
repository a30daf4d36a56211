package cmd

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/ipstack/internal/boot"
	"firestige.xyz/ipstack/internal/config"
	"firestige.xyz/ipstack/internal/header"
	"firestige.xyz/ipstack/internal/icmp4"
	"firestige.xyz/ipstack/internal/link"
)

var (
	pingCount    int
	pingInterval time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping <destination>",
	Short: "Send echo requests through the stack",
	Long: `
Send ICMP echo requests to an IPv4 or IPv6 destination through the stack's
own addresses, then report round-trip statistics.

Examples:
  ipstack ping 192.168.1.1
  ipstack ping -n 10 -i 500ms 192.168.1.1
  ipstack ping fe80::5054:ff:fe12:3456
`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ip := net.ParseIP(args[0])
		if ip == nil {
			exitWithError(fmt.Sprintf("invalid destination %q", args[0]), nil)
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			exitWithError("failed to load config", err)
		}
		node, err := boot.Start(cfg)
		if err != nil {
			exitWithError("failed to start stack", err)
		}
		defer node.Close()

		if v4 := ip.To4(); v4 != nil {
			pingIPv4(node, header.IPv4AddressFrom(v4))
		} else {
			pingIPv6(node, header.IPv6AddressFrom(ip.To16()))
		}
	},
}

func init() {
	pingCmd.Flags().IntVarP(&pingCount, "count", "n", 4, "number of echo requests to send")
	pingCmd.Flags().DurationVarP(&pingInterval, "interval", "i", time.Second, "delay between requests")
	rootCmd.AddCommand(pingCmd)
}

// pingIPv4 interleaves sending and polling on one goroutine: requests go out
// on the interval, the loop keeps draining the device, and it ends once every
// request was answered or timed out.
func pingIPv4(node *boot.Node, dst header.IPv4Address) {
	fmt.Printf("PING %s: %d data bytes\n", dst.String(), icmp4.EchoPayloadSize)

	sent := 0
	var lastSend time.Time
	for {
		if sent < pingCount && time.Since(lastSend) >= pingInterval {
			node.ICMP.Ping(dst)
			sent++
			lastSend = time.Now()
		}
		if err := node.Stack.Poll(); err != nil && err != link.ErrTimeout {
			exitWithError("dispatch loop failed", err)
		}
		if sent >= pingCount && node.ICMP.PendingRequests() == 0 {
			break
		}
	}
	node.ICMP.ReportStats()
}

// pingIPv6 drives the same loop for an IPv6 destination. Replies are logged
// by the ICMPv6 handler as they arrive.
func pingIPv6(node *boot.Node, dst header.IPv6Address) {
	fmt.Printf("PING %s: %d data bytes\n", dst.String(), icmp4.EchoPayloadSize)

	payload := make([]byte, icmp4.EchoPayloadSize)
	for i := range payload {
		payload[i] = byte(i)
	}
	ident := uint16(time.Now().UnixNano())

	for seq := 1; seq <= pingCount; seq++ {
		node.ICMPv6.SendEchoRequest(dst, ident, uint16(seq), payload)
		deadline := time.Now().Add(pingInterval)
		for time.Now().Before(deadline) {
			if err := node.Stack.Poll(); err != nil && err != link.ErrTimeout {
				exitWithError("dispatch loop failed", err)
			}
		}
	}
}
