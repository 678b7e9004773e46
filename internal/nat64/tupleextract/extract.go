// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package tupleextract implements spec.md §4.1: determining the incoming
// tuple of an ingress packet, including the swap required for ICMP error
// messages and IPv6 extension-header traversal (handled for free by
// gopacket's layer-decoding chain).
package tupleextract

import (
	"net/netip"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	nerrors "nat64.dev/core/internal/errors"
	"nat64.dev/core/internal/nat64/transport"
)

// Result is the product of extraction: the flow tuple plus enough of the
// decoded packet for the filter and translation steps to act on.
type Result struct {
	Tuple transport.Tuple

	// IsICMPError is true when the ingress packet was an ICMP/ICMPv6 error
	// whose tuple was derived from its inner packet with addresses
	// swapped (spec.md §4.1).
	IsICMPError bool

	// Packet is the fully decoded gopacket, retained so later pipeline
	// steps (translate) can walk the same layers without re-parsing.
	Packet gopacket.Packet
}

// Extract parses data (starting at the IP header — packets handed to the
// core never carry a link-layer header) as family and returns its tuple.
// It fails-with DROP per spec.md §4.1 when the inner protocol of an ICMP
// error is not {UDP,TCP,ICMP}, when an ICMP error wraps another ICMP
// error, or when the packet is truncated before the extraction point.
func Extract(data []byte, family transport.Family) (Result, error) {
	var first gopacket.LayerType
	if family == transport.FamilyV4 {
		first = layers.LayerTypeIPv4
	} else {
		first = layers.LayerTypeIPv6
	}

	pkt := gopacket.NewPacket(data, first, gopacket.DecodeOptions{Lazy: false, NoCopy: true})
	if errLayer := pkt.ErrorLayer(); errLayer != nil {
		return Result{}, nerrors.Wrap(errLayer, nerrors.KindValidation, "tupleextract: decode error")
	}

	if icmp4 := pkt.Layer(layers.LayerTypeICMPv4); icmp4 != nil {
		return extractICMPv4(pkt, icmp4.(*layers.ICMPv4))
	}
	if icmp6 := pkt.Layer(layers.LayerTypeICMPv6); icmp6 != nil {
		return extractICMPv6(pkt, icmp6)
	}
	if _, ok := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP); ok {
		return extractL4(pkt, family, transport.L4TCP, nil)
	}
	if udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		return extractL4(pkt, family, transport.L4UDP, udp)
	}

	return Result{}, nerrors.New(nerrors.KindValidation, "tupleextract: no recognized L4 layer")
}

func networkAddrs(pkt gopacket.Packet, family transport.Family) (srcIP, dstIP [16]byte, isV4 bool) {
	if family == transport.FamilyV4 {
		ip4 := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		var s, d [16]byte
		copy(s[:4], ip4.SrcIP.To4())
		copy(d[:4], ip4.DstIP.To4())
		return s, d, true
	}
	ip6 := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
	var s, d [16]byte
	copy(s[:], ip6.SrcIP.To16())
	copy(d[:], ip6.DstIP.To16())
	return s, d, false
}

func extractL4(pkt gopacket.Packet, family transport.Family, proto transport.L4Protocol, udp *layers.UDP) (Result, error) {
	srcIP, dstIP, isV4 := networkAddrs(pkt, family)
	srcAddr := addrFromBytes(srcIP, isV4)
	dstAddr := addrFromBytes(dstIP, isV4)

	var srcPort, dstPort uint16
	if proto == transport.L4TCP {
		tcp := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
		srcPort, dstPort = uint16(tcp.SrcPort), uint16(tcp.DstPort)
	} else {
		srcPort, dstPort = uint16(udp.SrcPort), uint16(udp.DstPort)
	}

	srcAddr.ID = srcPort
	dstAddr.ID = dstPort

	return Result{
		Tuple: transport.Tuple{Src: srcAddr, Dst: dstAddr, L3: family, Proto: proto},
		Packet: pkt,
	}, nil
}

func extractICMPv4(pkt gopacket.Packet, icmp *layers.ICMPv4) (Result, error) {
	typ := icmp.TypeCode.Type()
	if isV4Informational(typ) {
		srcIP, dstIP, _ := networkAddrs(pkt, transport.FamilyV4)
		srcAddr := addrFromBytes(srcIP, true)
		dstAddr := addrFromBytes(dstIP, true)
		srcAddr.ID = icmp.Id
		dstAddr.ID = icmp.Id
		return Result{Tuple: transport.Tuple{Src: srcAddr, Dst: dstAddr, L3: transport.FamilyV4, Proto: transport.L4ICMP}, Packet: pkt}, nil
	}

	// Error message: parse the inner IPv4 header from the ICMP payload.
	inner, err := Extract(icmp.Payload, transport.FamilyV4)
	if err != nil {
		return Result{}, nerrors.Wrap(err, nerrors.KindValidation, "tupleextract: inner v4 packet")
	}
	if inner.IsICMPError {
		return Result{}, nerrors.New(nerrors.KindValidation, "tupleextract: ICMP error wraps ICMP error")
	}
	return Result{Tuple: inner.Tuple.Swapped(), IsICMPError: true, Packet: pkt}, nil
}

func extractICMPv6(pkt gopacket.Packet, icmp6Layer gopacket.Layer) (Result, error) {
	icmp := icmp6Layer.(*layers.ICMPv6)
	typ := icmp.TypeCode.Type()
	if isV6Informational(typ) {
		srcIP, dstIP, _ := networkAddrs(pkt, transport.FamilyV6)
		srcAddr := addrFromBytes(srcIP, false)
		dstAddr := addrFromBytes(dstIP, false)
		id := icmpv6EchoID(pkt)
		srcAddr.ID = id
		dstAddr.ID = id
		return Result{Tuple: transport.Tuple{Src: srcAddr, Dst: dstAddr, L3: transport.FamilyV6, Proto: transport.L4ICMP}, Packet: pkt}, nil
	}

	// The 4 bytes following the ICMPv6 header are a type-specific
	// Unused/MTU/Pointer field (RFC 4443 §3), not part of the inner packet.
	if len(icmp.Payload) < 4 {
		return Result{}, nerrors.New(nerrors.KindValidation, "tupleextract: truncated icmpv6 error")
	}
	inner, err := Extract(icmp.Payload[4:], transport.FamilyV6)
	if err != nil {
		return Result{}, nerrors.Wrap(err, nerrors.KindValidation, "tupleextract: inner v6 packet")
	}
	if inner.IsICMPError {
		return Result{}, nerrors.New(nerrors.KindValidation, "tupleextract: ICMP error wraps ICMP error")
	}
	return Result{Tuple: inner.Tuple.Swapped(), IsICMPError: true, Packet: pkt}, nil
}

func icmpv6EchoID(pkt gopacket.Packet) uint16 {
	layer := pkt.Layer(layers.LayerTypeICMPv6Echo)
	if layer == nil {
		return 0
	}
	return layer.(*layers.ICMPv6Echo).Identifier
}

func isV4Informational(t uint8) bool {
	return t == layers.ICMPv4TypeEchoRequest || t == layers.ICMPv4TypeEchoReply
}

func isV6Informational(t uint8) bool {
	return t == layers.ICMPv6TypeEchoRequest || t == layers.ICMPv6TypeEchoReply
}

func addrFromBytes(b [16]byte, isV4 bool) transport.Address {
	if isV4 {
		var v4 [4]byte
		copy(v4[:], b[:4])
		return transport.Address{IP: netip.AddrFrom4(v4)}
	}
	return transport.Address{IP: netip.AddrFrom16(b)}
}
