// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package frag implements spec.md §4.8: post-translation fragmentation on
// the v4→v6 egress path. It never reassembles; incoming fragments are
// handled by tupleextract/core directly, not here.
package frag

import (
	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	nerrors "nat64.dev/core/internal/errors"
)

const (
	ipv6HeaderLen    = 40
	fragHeaderLen    = 8
	minFragAlignment = 8
)

// Config carries the egress MTU the fragmenter guarantees on the v6 side.
type Config struct {
	MinIPv6MTU int
}

// Needed reports whether a built IPv6 datagram of totalLen bytes (header
// plus payload) exceeds the configured egress MTU and must be split.
func Needed(totalLen int, cfg Config) bool {
	return totalLen > cfg.MinIPv6MTU
}

// NextHopMTU is the value reported in the ICMPv4 Fragmentation Needed
// message emitted when a DF=1 packet would require fragmentation
// (spec.md §4.8): the v6 MTU minus the 20-byte shrink from a 40-byte v6
// header to a 20-byte v4 header.
func NextHopMTU(cfg Config) uint32 {
	return uint32(cfg.MinIPv6MTU - 20)
}

// Split divides payload (the already-serialized, checksummed L4 header and
// data that would follow ip6's base header) into IPv6 fragments, each at
// most cfg.MinIPv6MTU bytes including its 40-byte base header and 8-byte
// Fragment extension header. Offsets are 8-byte aligned; the last fragment
// carries M=0. id is the shared fragment identification: the original v4
// packet's identification field if it arrived already fragmented, else a
// freshly assigned 32-bit value (spec.md §4.8).
//
// ip6.NextHeader must already name the real upper-layer protocol; Split
// rewrites the base header's NextHeader to the Fragment extension header
// and threads the original value into each fragment header.
func Split(ip6 *layers.IPv6, payload []byte, id uint32, cfg Config) ([][]byte, error) {
	maxPerFrag := cfg.MinIPv6MTU - ipv6HeaderLen - fragHeaderLen
	maxPerFrag -= maxPerFrag % minFragAlignment
	if maxPerFrag <= 0 {
		return nil, nerrors.New(nerrors.KindInvalidArgument, "frag: min_ipv6_mtu too small to carry a fragment")
	}

	upperProto := ip6.NextHeader

	var fragments [][]byte
	for offset := 0; offset < len(payload); offset += maxPerFrag {
		end := offset + maxPerFrag
		more := true
		if end >= len(payload) {
			end = len(payload)
			more = false
		}

		hdr := *ip6
		hdr.NextHeader = layers.IPProtocolIPv6Fragment

		fh := &layers.IPv6Fragment{
			NextHeader:     upperProto,
			FragmentOffset: uint16(offset / minFragAlignment),
			MoreFragments:  more,
			Identification: id,
		}

		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true}
		if err := gopacket.SerializeLayers(buf, opts, &hdr, fh, gopacket.Payload(payload[offset:end])); err != nil {
			return nil, nerrors.Wrap(err, nerrors.KindInternal, "frag: serialize fragment")
		}
		fragments = append(fragments, buf.Bytes())
	}
	return fragments, nil
}
