// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package translate

import (
	"encoding/binary"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	nerrors "nat64.dev/core/internal/errors"
	"nat64.dev/core/internal/nat64/transport"
)

// Notify asks the caller to synthesize and send an ICMP/ICMPv6 error back
// toward the original sender instead of forwarding anything: the TTL- and
// MTU-exceeded cases of spec.md §4.7, which a NAT64 node raises itself
// rather than translating from anywhere.
type Notify struct {
	Family transport.Family
	Type   uint8
	Code   uint8
	Extra  uint32
	Quote  []byte
}

// Result is the product of one Translate call.
type Result struct {
	Packet []byte
	Notify *Notify
}

// Pipeline builds opposite-family packets per spec.md §4.7's eight
// (L3 direction × L4 protocol) pipelines.
type Pipeline struct {
	Cfg Config
}

// Addrs is the set of addresses the core has already resolved for one
// Translate call (step 3 of spec.md's pipeline). Each Address carries both
// the IP and the L4 identifier (port, or ICMP echo identifier) the
// translated packet must use on the wire: a session's BIB-allocated port
// is not generally the same as the port the original packet carried, so
// both must come from the core's own session lookup rather than being
// cloned off the ingress header. OuterSrc/OuterDst address the packet
// being translated itself. InnerSrc/InnerDst matter only when the packet
// turns out to be an ICMP error: they address its quoted inner packet,
// which is not necessarily OuterDst/OuterSrc swapped — an ICMP error's
// outer source is often an arbitrary router with no BIB entry, translated
// generically under the NAT64 prefix, while its outer destination and its
// inner packet's addresses both come from the BIB session the quoted
// packet belongs to. The core, which alone has access to the BIB and
// address pools, is responsible for resolving all four.
type Addrs struct {
	OuterSrc, OuterDst transport.Address
	InnerSrc, InnerDst transport.Address
}

// Translate builds the translated packet for one ingress packet. data
// holds the raw wire bytes starting at the IP header (spec.md's core
// never sees a link-layer header); family is the ingress family. depth
// guards the one-level ICMP error recursion and must be 0 on the
// outermost call.
func (p Pipeline) Translate(data []byte, family transport.Family, addrs Addrs, depth int) (Result, error) {
	if family == transport.FamilyV4 {
		return p.v4to6(data, addrs, depth)
	}
	return p.v6to4(data, addrs, depth)
}

func serialize(ls ...gopacket.SerializableLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		return nil, nerrors.Wrap(err, nerrors.KindInternal, "translate: serialize")
	}
	return buf.Bytes(), nil
}

func (p Pipeline) v4to6(data []byte, addrs Addrs, depth int) (Result, error) {
	pkt := gopacket.NewPacket(data, layers.LayerTypeIPv4, gopacket.DecodeOptions{Lazy: false, NoCopy: true})
	if errLayer := pkt.ErrorLayer(); errLayer != nil {
		return Result{}, nerrors.Wrap(errLayer, nerrors.KindValidation, "translate: decode error")
	}
	ip4, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	if !ok {
		return Result{}, nerrors.New(nerrors.KindValidation, "translate: missing ipv4 layer")
	}

	v6src, v6dst := addrs.OuterSrc.IP.AsSlice(), addrs.OuterDst.IP.AsSlice()

	if icmpL := pkt.Layer(layers.LayerTypeICMPv4); icmpL != nil {
		return p.icmp4to6(data, ip4, icmpL.(*layers.ICMPv4), addrs, depth)
	}

	if tcpL, ok := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP); ok {
		ip6, ttlExceeded := BuildV6L3(ip4, v6src, v6dst, layers.IPProtocolTCP, p.Cfg)
		if ttlExceeded {
			return Result{Notify: v4TimeExceeded(data)}, nil
		}
		tcp := CloneTCP(tcpL, addrs.OuterSrc, addrs.OuterDst)
		if err := tcp.SetNetworkLayerForChecksum(ip6); err != nil {
			return Result{}, nerrors.Wrap(err, nerrors.KindInternal, "translate: tcp checksum setup")
		}
		out, err := serialize(ip6, tcp, gopacket.Payload(Payload(tcpL)))
		return Result{Packet: out}, err
	}

	if udpL, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		ip6, ttlExceeded := BuildV6L3(ip4, v6src, v6dst, layers.IPProtocolUDP, p.Cfg)
		if ttlExceeded {
			return Result{Notify: v4TimeExceeded(data)}, nil
		}
		udp := CloneUDP(udpL, addrs.OuterSrc, addrs.OuterDst)
		if err := udp.SetNetworkLayerForChecksum(ip6); err != nil {
			return Result{}, nerrors.Wrap(err, nerrors.KindInternal, "translate: udp checksum setup")
		}
		out, err := serialize(ip6, udp, gopacket.Payload(Payload(udpL)))
		return Result{Packet: out}, err
	}

	return Result{}, nerrors.New(nerrors.KindValidation, "translate: no recognized l4 layer")
}

func (p Pipeline) icmp4to6(data []byte, ip4 *layers.IPv4, icmp4 *layers.ICMPv4, addrs Addrs, depth int) (Result, error) {
	v6src, v6dst := addrs.OuterSrc.IP.AsSlice(), addrs.OuterDst.IP.AsSlice()

	if isV4Informational(icmp4.TypeCode.Type()) {
		ip6, ttlExceeded := BuildV6L3(ip4, v6src, v6dst, layers.IPProtocolICMPv6, p.Cfg)
		if ttlExceeded {
			return Result{Notify: v4TimeExceeded(data)}, nil
		}
		newType := layers.ICMPv6TypeEchoRequest
		if icmp4.TypeCode.Type() == layers.ICMPv4TypeEchoReply {
			newType = layers.ICMPv6TypeEchoReply
		}
		icmp6 := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(newType, 0)}
		if err := icmp6.SetNetworkLayerForChecksum(ip6); err != nil {
			return Result{}, nerrors.Wrap(err, nerrors.KindInternal, "translate: icmpv6 checksum setup")
		}
		// The echo identifier is the BIB's allocated L4 id, same as a
		// TCP/UDP port; OuterSrc.ID carries it (ICMP's 3-tuple invariant
		// keeps OuterSrc.ID == OuterDst.ID).
		echo := &layers.ICMPv6Echo{Identifier: addrs.OuterSrc.ID, SeqNumber: icmp4.Seq}
		out, err := serialize(ip6, icmp6, echo, gopacket.Payload(icmp4.Payload))
		return Result{Packet: out}, err
	}

	if depth > 0 {
		return Result{}, nerrors.New(nerrors.KindValidation, "translate: nested icmp error")
	}

	pointer := uint8(icmp4.Id >> 8)
	tc6, extra, ok := MapV4ToV6(icmp4.TypeCode, int(ip4.Length), pointer, p.Cfg)
	if !ok {
		return Result{}, nerrors.New(nerrors.KindValidation, "translate: no icmpv6 equivalent")
	}

	// The quoted inner packet is the BIB-translated packet the core
	// originally sent out, so its addresses come from the core's own
	// session lookup (addrs.Inner*), not from the outer header — the
	// outer source here may be an arbitrary router with no BIB entry at
	// all (spec.md §4.7).
	innerAddrs := Addrs{OuterSrc: addrs.InnerSrc, OuterDst: addrs.InnerDst}
	innerResult, err := p.v4to6(icmp4.Payload, innerAddrs, depth+1)
	if err != nil {
		return Result{}, nerrors.Wrap(err, nerrors.KindValidation, "translate: inner packet")
	}
	if innerResult.Notify != nil {
		return Result{}, nerrors.New(nerrors.KindValidation, "translate: inner packet could not be translated")
	}

	ip6, ttlExceeded := BuildV6L3(ip4, v6src, v6dst, layers.IPProtocolICMPv6, p.Cfg)
	if ttlExceeded {
		return Result{Notify: v4TimeExceeded(data)}, nil
	}
	icmp6 := &layers.ICMPv6{TypeCode: tc6}
	if err := icmp6.SetNetworkLayerForChecksum(ip6); err != nil {
		return Result{}, nerrors.Wrap(err, nerrors.KindInternal, "translate: icmpv6 checksum setup")
	}
	reserved := make([]byte, 4)
	switch tc6.Type() {
	case layers.ICMPv6TypePacketTooBig, layers.ICMPv6TypeParameterProblem:
		binary.BigEndian.PutUint32(reserved, extra)
	}
	body := append(reserved, innerResult.Packet...)
	out, err := serialize(ip6, icmp6, gopacket.Payload(body))
	return Result{Packet: out}, err
}

func (p Pipeline) v6to4(data []byte, addrs Addrs, depth int) (Result, error) {
	pkt := gopacket.NewPacket(data, layers.LayerTypeIPv6, gopacket.DecodeOptions{Lazy: false, NoCopy: true})
	if errLayer := pkt.ErrorLayer(); errLayer != nil {
		return Result{}, nerrors.Wrap(errLayer, nerrors.KindValidation, "translate: decode error")
	}
	ip6, ok := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
	if !ok {
		return Result{}, nerrors.New(nerrors.KindValidation, "translate: missing ipv6 layer")
	}

	v4src, v4dst := addrs.OuterSrc.IP.AsSlice(), addrs.OuterDst.IP.AsSlice()

	if icmpL := pkt.Layer(layers.LayerTypeICMPv6); icmpL != nil {
		return p.icmp6to4(data, ip6, icmpL.(*layers.ICMPv6), addrs, depth)
	}

	if tcpL, ok := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP); ok {
		ip4, ttlExceeded := BuildV4L3(ip6, v4src, v4dst, layers.IPProtocolTCP, p.Cfg)
		if ttlExceeded {
			return Result{Notify: v6TimeExceeded(data)}, nil
		}
		tcp := CloneTCP(tcpL, addrs.OuterSrc, addrs.OuterDst)
		if err := tcp.SetNetworkLayerForChecksum(ip4); err != nil {
			return Result{}, nerrors.Wrap(err, nerrors.KindInternal, "translate: tcp checksum setup")
		}
		out, err := serialize(ip4, tcp, gopacket.Payload(Payload(tcpL)))
		return Result{Packet: out}, err
	}

	if udpL, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		ip4, ttlExceeded := BuildV4L3(ip6, v4src, v4dst, layers.IPProtocolUDP, p.Cfg)
		if ttlExceeded {
			return Result{Notify: v6TimeExceeded(data)}, nil
		}
		udp := CloneUDP(udpL, addrs.OuterSrc, addrs.OuterDst)
		if err := udp.SetNetworkLayerForChecksum(ip4); err != nil {
			return Result{}, nerrors.Wrap(err, nerrors.KindInternal, "translate: udp checksum setup")
		}
		out, err := serialize(ip4, udp, gopacket.Payload(Payload(udpL)))
		return Result{Packet: out}, err
	}

	return Result{}, nerrors.New(nerrors.KindValidation, "translate: no recognized l4 layer")
}

func (p Pipeline) icmp6to4(data []byte, ip6 *layers.IPv6, icmp6 *layers.ICMPv6, addrs Addrs, depth int) (Result, error) {
	v4src, v4dst := addrs.OuterSrc.IP.AsSlice(), addrs.OuterDst.IP.AsSlice()

	if isV6Informational(icmp6.TypeCode.Type()) {
		ip4, ttlExceeded := BuildV4L3(ip6, v4src, v4dst, layers.IPProtocolICMPv4, p.Cfg)
		if ttlExceeded {
			return Result{Notify: v6TimeExceeded(data)}, nil
		}
		newType := layers.ICMPv4TypeEchoRequest
		if icmp6.TypeCode.Type() == layers.ICMPv6TypeEchoReply {
			newType = layers.ICMPv4TypeEchoReply
		}
		var seq uint16
		if echoL := echoLayerOf(icmp6); echoL != nil {
			seq = echoL.SeqNumber
		}
		// As on the v4->v6 side, the echo identifier is the BIB's
		// allocated L4 id rather than whatever the ingress packet carried.
		icmp4 := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(newType, 0), Id: addrs.OuterSrc.ID, Seq: seq}
		out, err := serialize(ip4, icmp4, gopacket.Payload(echoPayload(icmp6)))
		return Result{Packet: out}, err
	}

	if depth > 0 {
		return Result{}, nerrors.New(nerrors.KindValidation, "translate: nested icmp error")
	}
	if len(icmp6.Payload) < 4 {
		return Result{}, nerrors.New(nerrors.KindValidation, "translate: truncated icmpv6 error")
	}
	reserved := binary.BigEndian.Uint32(icmp6.Payload[:4])

	tc4, extra, ok := MapV6ToV4(icmp6.TypeCode, reserved, reserved)
	if !ok {
		return Result{}, nerrors.New(nerrors.KindValidation, "translate: no icmpv4 equivalent")
	}

	innerAddrs := Addrs{OuterSrc: addrs.InnerSrc, OuterDst: addrs.InnerDst}
	innerResult, err := p.v6to4(icmp6.Payload[4:], innerAddrs, depth+1)
	if err != nil {
		return Result{}, nerrors.Wrap(err, nerrors.KindValidation, "translate: inner packet")
	}
	if innerResult.Notify != nil {
		return Result{}, nerrors.New(nerrors.KindValidation, "translate: inner packet could not be translated")
	}

	ip4, ttlExceeded := BuildV4L3(ip6, v4src, v4dst, layers.IPProtocolICMPv4, p.Cfg)
	if ttlExceeded {
		return Result{Notify: v6TimeExceeded(data)}, nil
	}
	var idSeq uint16
	if tc4.Type() == layers.ICMPv4TypeParameterProblem {
		idSeq = uint16(extra) << 8
	}
	icmp4 := &layers.ICMPv4{TypeCode: tc4, Id: idSeq}
	if tc4.Type() == layers.ICMPv4TypeDestinationUnreachable && tc4.Code() == 4 {
		icmp4.Seq = uint16(extra)
	}
	out, err := serialize(ip4, icmp4, gopacket.Payload(innerResult.Packet))
	return Result{Packet: out}, err
}

// echoLayerOf returns the decoded ICMPv6Echo layer, present only for echo
// request/reply messages (gopacket decodes it as icmp6's next layer).
func echoLayerOf(icmp6 *layers.ICMPv6) *layers.ICMPv6Echo {
	// The echo identifier/sequence occupy the first 4 bytes of Payload for
	// echo request/reply messages; gopacket's ICMPv6Echo decodes exactly
	// that, so build it directly rather than re-walking the layer chain.
	if len(icmp6.Payload) < 4 {
		return nil
	}
	return &layers.ICMPv6Echo{
		Identifier: binary.BigEndian.Uint16(icmp6.Payload[0:2]),
		SeqNumber:  binary.BigEndian.Uint16(icmp6.Payload[2:4]),
	}
}

func echoPayload(icmp6 *layers.ICMPv6) []byte {
	if len(icmp6.Payload) < 4 {
		return nil
	}
	return icmp6.Payload[4:]
}

func v4TimeExceeded(data []byte) *Notify {
	return &Notify{Family: transport.FamilyV4, Type: uint8(layers.ICMPv4TypeTimeExceeded), Code: 0, Quote: data}
}

func v6TimeExceeded(data []byte) *Notify {
	return &Notify{Family: transport.FamilyV6, Type: uint8(layers.ICMPv6TypeTimeExceeded), Code: 0, Quote: data}
}
