// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package core wires spec.md's five-step translation pipeline together:
// tuple extraction, filtering and session update, outgoing-tuple
// computation, header/payload translation and egress fragmentation. It is
// the one package that knows about every other nat64 subpackage; none of
// them know about it.
package core

import (
	"net/netip"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"nat64.dev/core/internal/logging"
	"nat64.dev/core/internal/nat64/bib"
	"nat64.dev/core/internal/nat64/filter"
	"nat64.dev/core/internal/nat64/frag"
	"nat64.dev/core/internal/nat64/pktstore"
	"nat64.dev/core/internal/nat64/pool4"
	"nat64.dev/core/internal/nat64/pool6"
	"nat64.dev/core/internal/nat64/transport"
	"nat64.dev/core/internal/nat64/translate"
	"nat64.dev/core/internal/nat64/tupleextract"
	"nat64.dev/core/internal/nat64/verdict"
)

// Core owns every collaborator the five-step pipeline needs and exposes
// the single entry point, ProcessPacket, that the edge contracts
// (hook/linklayer) drive.
type Core struct {
	Tables    *bib.Manager
	Pool4     *pool4.Pool
	Pool6     *pool6.Pool
	Store     *pktstore.Store
	Filter    *filter.Engine
	Translate translate.Pipeline
	Frag      frag.Config
	Log       *logging.Logger

	fragID fragIDSource
}

// New builds a Core from its collaborators. ProcessPacket takes the filter
// policy as an argument, so the caller can pass a fresh config snapshot for
// every packet (spec.md §5). Translate.Cfg and Frag are plain fields the
// caller sets; Core never re-reads them, so a later config swap leaves the
// translation flags and min_ipv6_mtu they carry unchanged.
func New(tables *bib.Manager, p4 *pool4.Pool, p6 *pool6.Pool, store *pktstore.Store, log *logging.Logger) *Core {
	if log == nil {
		log = logging.New("core")
	}
	return &Core{
		Tables: tables,
		Pool4:  p4,
		Pool6:  p6,
		Store:  store,
		Filter: filter.New(tables, p4, store, p6, log),
		Log:    log,
	}
}

// Outbound is one packet the caller must emit, addressed to family.
type Outbound struct {
	Family transport.Family
	Packet []byte
}

// Result is everything ProcessPacket produced for one ingress packet.
type Result struct {
	Verdict  verdict.Verdict
	Outbound []Outbound
}

// ProcessPacket runs the full five-step pipeline on data, an IP packet
// (no link-layer header) that arrived on family.
func (c *Core) ProcessPacket(data []byte, family transport.Family, policy filter.Policy, now time.Time) Result {
	extracted, err := tupleextract.Extract(data, family)
	if err != nil {
		c.Log.Debugf("tuple extraction failed: %v", err)
		return Result{Verdict: verdict.D("tuple extraction failed")}
	}

	outcome := c.filterPacket(extracted, family, policy, now)
	if outcome.Verdict.Kind != verdict.Continue {
		return Result{Verdict: outcome.Verdict}
	}
	session := outcome.Session
	defer session.Release()

	addrs, dropReason := c.resolveAddrs(extracted, family, session)
	if dropReason != "" {
		return Result{Verdict: verdict.D(dropReason)}
	}

	tr, err := c.Translate.Translate(data, family, addrs, 0)
	if err != nil {
		c.Log.Debugf("translation failed: %v", err)
		return Result{Verdict: verdict.D("translation failed")}
	}
	if tr.Notify != nil {
		return Result{Verdict: verdict.D("ttl/hop-limit exceeded"), Outbound: []Outbound{c.notifyOutbound(tr.Notify)}}
	}

	if family == transport.FamilyV4 {
		return c.fragmentEgress(extracted, tr.Packet)
	}
	return Result{Verdict: verdict.C(), Outbound: []Outbound{{Family: transport.FamilyV4, Packet: tr.Packet}}}
}

// filterPacket dispatches to the filter engine's per-protocol policy based
// on the extracted tuple (spec.md §4.3).
func (c *Core) filterPacket(extracted tupleextract.Result, family transport.Family, policy filter.Policy, now time.Time) filter.Outcome {
	tuple := extracted.Tuple
	switch tuple.Proto {
	case transport.L4UDP:
		return c.Filter.HandleUDP(tuple, family, policy, now)
	case transport.L4ICMP:
		return c.Filter.HandleICMPInformational(tuple, family, policy, now)
	case transport.L4TCP:
		syn, fin, rst := tcpFlags(extracted.Packet)
		return c.Filter.HandleTCP(tuple, family, extracted.Packet.Data(), syn, fin, rst, policy, now)
	default:
		return filter.Outcome{Verdict: verdict.D("unsupported protocol")}
	}
}

func tcpFlags(pkt gopacket.Packet) (syn, fin, rst bool) {
	tcp, ok := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
	if !ok {
		return false, false, false
	}
	return tcp.SYN, tcp.FIN, tcp.RST
}

// resolveAddrs computes the translate.Addrs for one packet (spec.md §4.2's
// outgoing-tuple computation plus the extra inner-packet resolution an
// ICMP error needs). It returns a non-empty drop reason if an ICMP error's
// outer source has no representation in the opposite family (a documented
// RFC 6145 limitation, not a bug: most path routers are not
// NAT64-prefixed).
func (c *Core) resolveAddrs(extracted tupleextract.Result, family transport.Family, s *bib.Session) (translate.Addrs, string) {
	if family == transport.FamilyV4 {
		addrs := translate.Addrs{OuterSrc: s.V6Pair.Remote, OuterDst: s.V6Pair.Local}
		if !extracted.IsICMPError {
			return addrs, ""
		}
		routerV4 := ipv4Src(extracted.Packet)
		routerV6, err := c.Pool6.To6(routerV4)
		if err != nil {
			return translate.Addrs{}, "icmp error source has no v6 representation"
		}
		addrs.OuterSrc = transport.Address{IP: routerV6}
		addrs.InnerSrc = s.V6Pair.Local
		addrs.InnerDst = s.V6Pair.Remote
		return addrs, ""
	}

	addrs := translate.Addrs{OuterSrc: s.V4Pair.Local, OuterDst: s.V4Pair.Remote}
	if !extracted.IsICMPError {
		return addrs, ""
	}
	routerV6 := ipv6Src(extracted.Packet)
	routerV4, err := c.Pool6.To4(routerV6)
	if err != nil {
		return translate.Addrs{}, "icmp error source has no v4 representation"
	}
	addrs.OuterSrc = transport.Address{IP: routerV4}
	addrs.InnerSrc = s.V4Pair.Remote
	addrs.InnerDst = s.V4Pair.Local
	return addrs, ""
}

func ipv4Src(pkt gopacket.Packet) netip.Addr {
	ip4 := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	a, _ := netip.AddrFromSlice(ip4.SrcIP.To4())
	return a
}

func ipv6Src(pkt gopacket.Packet) netip.Addr {
	ip6 := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
	a, _ := netip.AddrFromSlice(ip6.SrcIP.To16())
	return a
}

// notifyOutbound turns a translate.Notify into the raw ICMP/ICMPv6 error
// packet addressed back to the original sender (spec.md §4.7's
// self-raised TTL/hop-limit-exceeded case).
func (c *Core) notifyOutbound(n *translate.Notify) Outbound {
	if n.Family == transport.FamilyV4 {
		icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(n.Type, n.Code)}
		if n.Type == uint8(layers.ICMPv4TypeDestinationUnreachable) && n.Code == 4 {
			// Next-hop MTU occupies the low 16 bits of the type-specific
			// field, which gopacket represents as ICMPv4.Seq.
			icmp.Seq = uint16(n.Extra)
		}
		buf := gopacket.NewSerializeBuffer()
		quote := n.Quote
		if len(quote) > icmpQuoteCap {
			quote = quote[:icmpQuoteCap]
		}
		if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}, icmp, gopacket.Payload(quote)); err != nil {
			c.Log.Bug("failed to serialize self-raised icmpv4 notify: %v", err)
			return Outbound{Family: n.Family}
		}
		return Outbound{Family: transport.FamilyV4, Packet: buf.Bytes()}
	}

	icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(n.Type, n.Code)}
	reserved := make([]byte, 4)
	quote := n.Quote
	if len(quote) > icmpQuoteCap {
		quote = quote[:icmpQuoteCap]
	}
	body := append(reserved, quote...)
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, icmp, gopacket.Payload(body)); err != nil {
		c.Log.Bug("failed to serialize self-raised icmpv6 notify: %v", err)
		return Outbound{Family: n.Family}
	}
	return Outbound{Family: transport.FamilyV6, Packet: buf.Bytes()}
}

// icmpQuoteCap bounds how much of the offending packet a self-raised ICMP
// error quotes, matching the conservative minimum every implementation can
// carry without itself needing fragmentation (RFC 4443 §2.4(c)).
const icmpQuoteCap = 1232

// fragmentEgress implements spec.md §4.8 on a freshly translated v4→v6
// packet: pass through under the MTU, drop with an ICMPv4 Fragmentation
// Needed if DF=1 and it doesn't fit, otherwise split.
func (c *Core) fragmentEgress(extracted tupleextract.Result, v6Packet []byte) Result {
	if !frag.Needed(len(v6Packet), c.Frag) {
		return Result{Verdict: verdict.C(), Outbound: []Outbound{{Family: transport.FamilyV6, Packet: v6Packet}}}
	}

	ip4, ok := extracted.Packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	if ok && ip4.Flags&layers.IPv4DontFragment != 0 {
		notify := &translate.Notify{
			Family: transport.FamilyV4,
			Type:   uint8(layers.ICMPv4TypeDestinationUnreachable),
			Code:   4,
			Extra:  frag.NextHopMTU(c.Frag),
			Quote:  extracted.Packet.Data(),
		}
		return Result{Verdict: verdict.D("df set, exceeds min_ipv6_mtu"), Outbound: []Outbound{c.notifyOutbound(notify)}}
	}

	pkt := gopacket.NewPacket(v6Packet, layers.LayerTypeIPv6, gopacket.DecodeOptions{Lazy: false, NoCopy: true})
	ip6, ok := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
	if !ok {
		return Result{Verdict: verdict.D("fragmentation: missing ipv6 layer")}
	}
	const ipv6HeaderLen = 40
	if len(v6Packet) < ipv6HeaderLen {
		return Result{Verdict: verdict.D("fragmentation: truncated packet")}
	}
	payload := v6Packet[ipv6HeaderLen:]

	fragments, err := frag.Split(ip6, payload, c.fragID.next(), c.Frag)
	if err != nil {
		return Result{Verdict: verdict.D("fragmentation failed")}
	}
	out := make([]Outbound, len(fragments))
	for i, f := range fragments {
		out[i] = Outbound{Family: transport.FamilyV6, Packet: f}
	}
	return Result{Verdict: verdict.C(), Outbound: out}
}
