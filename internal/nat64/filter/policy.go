// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package filter implements spec.md §4.3: filtering and session/BIB state
// update. It is the component that wires the session/BIB tables, the TCP
// state machine, the IPv4 pool allocator and the packet store together
// into the RFC 6146 §3.5 flow policies for UDP, ICMP informational and TCP,
// each in both directions.
package filter

import "time"

// Policy is the subset of spec.md §3's administrator-mutable configuration
// that the filtering step consults. It is passed by value so a caller can
// hand in a snapshot read from a config store without the filter package
// needing to know about atomic.Pointer or RCU semantics.
type Policy struct {
	AddressDependentFiltering bool
	DropICMPv6Info            bool
	DropExternalTCP           bool

	UDPTimeout      time.Duration
	ICMPTimeout     time.Duration
	TCPEstTimeout   time.Duration
	TCPTransTimeout time.Duration

	MaxStoredPackets int

	// TCPProbeRetries bounds the ESTABLISHED->TRANS keepalive probe retry
	// count before the expirer forces a session to CLOSED
	// (SPEC_FULL.md §3).
	TCPProbeRetries int
}

// DefaultPolicy mirrors spec.md §6's startup defaults.
func DefaultPolicy() Policy {
	return Policy{
		UDPTimeout:       5 * time.Minute,
		ICMPTimeout:      time.Minute,
		TCPEstTimeout:    2 * time.Hour,
		TCPTransTimeout:  4 * time.Minute,
		MaxStoredPackets: 64,
		TCPProbeRetries:  3,
	}
}
