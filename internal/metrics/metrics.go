// Package metrics exposes Prometheus counters for the stack.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketsReceivedTotal counts inbound packets accepted per protocol.
	PacketsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipstack_packets_received_total",
			Help: "Total number of packets accepted, by protocol",
		},
		[]string{"protocol"},
	)

	// PacketsSentTotal counts outbound packets handed to the link layer per
	// protocol.
	PacketsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipstack_packets_sent_total",
			Help: "Total number of packets sent, by protocol",
		},
		[]string{"protocol"},
	)

	// PacketsDroppedTotal counts silently dropped packets by reason.
	PacketsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipstack_packets_dropped_total",
			Help: "Total number of packets dropped, by reason",
		},
		[]string{"protocol", "reason"},
	)

	// ARPResolutionsTotal counts ARP cache hits and misses on transmit.
	ARPResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipstack_arp_resolutions_total",
			Help: "ARP resolution attempts, by outcome (hit, miss, dropped)",
		},
		[]string{"outcome"},
	)

	// EchoRepliesTotal counts echo replies generated, by family.
	EchoRepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipstack_echo_replies_total",
			Help: "Echo replies generated, by address family",
		},
		[]string{"family"},
	)
)

// Drop reasons used across the protocol packages.
const (
	ReasonTooShort    = "too_short"
	ReasonBadVersion  = "bad_version"
	ReasonBadLength   = "bad_length"
	ReasonBadChecksum = "bad_checksum"
	ReasonNotForHost  = "not_for_host"
	ReasonPending     = "resolution_pending"
	ReasonNoHandler   = "no_handler"
)
