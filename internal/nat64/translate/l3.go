// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package translate

import (
	"net"

	"github.com/gopacket/gopacket/layers"
)

// BuildV6L3 implements spec.md §4.7's v4→v6 L3 rule set: hop-limit =
// TTL-1, traffic class zeroed or copied from TOS, flow label zero, next
// header taken from proto. ttlExceeded is true when the original TTL was
// already down to its last hop, matching ordinary IP forwarding behavior
// (spec.md's TTL rule is stated for the v6→v4 direction but the same
// router-hop-count rule applies symmetrically).
func BuildV6L3(orig *layers.IPv4, src, dst net.IP, proto layers.IPProtocol, cfg Config) (hdr *layers.IPv6, ttlExceeded bool) {
	if orig.TTL <= 1 {
		return nil, true
	}

	tc := orig.TOS
	if cfg.ResetTrafficClass {
		tc = 0
	}
	return &layers.IPv6{
		Version:      6,
		TrafficClass: tc,
		FlowLabel:    0,
		NextHeader:   proto,
		HopLimit:     orig.TTL - 1,
		SrcIP:        src,
		DstIP:        dst,
	}, false
}

// ipv6HeaderLen is the fixed IPv6 header size; orig.Length carries only the
// payload length, so the translated datagram's total size is this plus
// orig.Length.
const ipv6HeaderLen = 40

// BuildV4L3 implements spec.md §4.7's v6→v4 L3 rule set. ttlExceeded is
// true when the decremented hop limit reaches zero, in which case the
// caller must drop the packet and emit an ICMPv6 time-exceeded instead of
// forwarding the built header.
func BuildV4L3(orig *layers.IPv6, src, dst net.IP, proto layers.IPProtocol, cfg Config) (hdr *layers.IPv4, ttlExceeded bool) {
	if orig.HopLimit <= 1 {
		return nil, true
	}
	ttl := orig.HopLimit - 1

	tos := orig.TrafficClass
	if cfg.ResetTOS {
		tos = cfg.NewTOS
	}

	// DF=1 when df-always-on is set; otherwise derived from length (RFC
	// 7915 §4.2): a datagram over the IPv6 minimum link MTU is marked DF=1
	// so it is never fragmented further down the v4 path, while one under
	// it is left fragmentable (DF=0) since the original v6 sender never
	// asked for path MTU discovery on it.
	df := cfg.DFAlwaysOn || int(orig.Length)+ipv6HeaderLen > 1280
	var id uint16
	if cfg.BuildIPv4ID {
		id = uint16(orig.FlowLabel)
	}

	return &layers.IPv4{
		Version:    4,
		IHL:        5,
		TOS:        tos,
		Id:         id,
		Flags:      dfFlag(df),
		TTL:        ttl,
		Protocol:   proto,
		SrcIP:      src,
		DstIP:      dst,
	}, false
}

func dfFlag(df bool) layers.IPv4Flag {
	if df {
		return layers.IPv4DontFragment
	}
	return 0
}
