// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package translate

import (
	"net"
	"net/netip"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nat64.dev/core/internal/nat64/transport"
)

func buildV6UDP(t *testing.T, src, dst string, srcPort, dstPort uint16, ttl uint8, payload []byte) []byte {
	t.Helper()
	ip6 := &layers.IPv6{Version: 6, HopLimit: ttl, NextHeader: layers.IPProtocolUDP, SrcIP: net.ParseIP(src), DstIP: net.ParseIP(dst)}
	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip6))
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}, ip6, udp, gopacket.Payload(payload)))
	return buf.Bytes()
}

func buildV4UDP(t *testing.T, src, dst string, srcPort, dstPort uint16, ttl uint8, payload []byte) []byte {
	t.Helper()
	ip4 := &layers.IPv4{Version: 4, TTL: ttl, Protocol: layers.IPProtocolUDP, SrcIP: net.ParseIP(src), DstIP: net.ParseIP(dst)}
	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip4))
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}, ip4, udp, gopacket.Payload(payload)))
	return buf.Bytes()
}

func buildV6Echo(t *testing.T, src, dst string, id uint16, ttl uint8) []byte {
	t.Helper()
	ip6 := &layers.IPv6{Version: 6, HopLimit: ttl, NextHeader: layers.IPProtocolICMPv6, SrcIP: net.ParseIP(src), DstIP: net.ParseIP(dst)}
	icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(layers.ICMPv6TypeEchoRequest, 0)}
	require.NoError(t, icmp.SetNetworkLayerForChecksum(ip6))
	echo := &layers.ICMPv6Echo{Identifier: id, SeqNumber: 1}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}, ip6, icmp, echo, gopacket.Payload([]byte("ping"))))
	return buf.Bytes()
}

func buildV4ICMPError(t *testing.T, src, dst string, code uint8, inner []byte) []byte {
	t.Helper()
	ip4 := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolICMPv4, SrcIP: net.ParseIP(src), DstIP: net.ParseIP(dst)}
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeDestinationUnreachable, code)}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}, ip4, icmp, gopacket.Payload(inner)))
	return buf.Bytes()
}

func decodeV6UDP(t *testing.T, data []byte) (*layers.IPv6, *layers.UDP) {
	t.Helper()
	pkt := gopacket.NewPacket(data, layers.LayerTypeIPv6, gopacket.DecodeOptions{Lazy: false, NoCopy: true})
	require.Nil(t, pkt.ErrorLayer())
	ip6, ok := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
	require.True(t, ok, "no ipv6 layer")
	udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
	require.True(t, ok, "no udp layer")
	return ip6, udp
}

func decodeV4UDP(t *testing.T, data []byte) (*layers.IPv4, *layers.UDP) {
	t.Helper()
	pkt := gopacket.NewPacket(data, layers.LayerTypeIPv4, gopacket.DecodeOptions{Lazy: false, NoCopy: true})
	require.Nil(t, pkt.ErrorLayer())
	ip4, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	require.True(t, ok, "no ipv4 layer")
	udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
	require.True(t, ok, "no udp layer")
	return ip4, udp
}

func TestTranslateV6ToV4UDP(t *testing.T) {
	p := Pipeline{Cfg: DefaultConfig()}
	data := buildV6UDP(t, "2001:db8::1", "64:ff9b::c000:201", 5000, 53, 64, []byte("query"))

	addrs := Addrs{
		OuterSrc: transport.Addr(netip.MustParseAddr("192.0.2.1"), 5000),
		OuterDst: transport.Addr(netip.MustParseAddr("192.0.2.2"), 53),
	}
	res, err := p.Translate(data, transport.FamilyV6, addrs, 0)
	require.NoError(t, err)
	assert.Nil(t, res.Notify)
	ip4, udp := decodeV4UDP(t, res.Packet)
	assert.True(t, ip4.SrcIP.Equal(net.ParseIP("192.0.2.1")))
	assert.True(t, ip4.DstIP.Equal(net.ParseIP("192.0.2.2")))
	assert.Equal(t, uint8(63), ip4.TTL, "expected decremented ttl")
	assert.Equal(t, layers.UDPPort(5000), udp.SrcPort)
	assert.Equal(t, layers.UDPPort(53), udp.DstPort)
}

func TestTranslateV4ToV6UDP(t *testing.T) {
	p := Pipeline{Cfg: DefaultConfig()}
	data := buildV4UDP(t, "192.0.2.2", "192.0.2.1", 53, 5000, 64, []byte("reply"))

	addrs := Addrs{
		OuterSrc: transport.Addr(netip.MustParseAddr("64:ff9b::c000:202"), 53),
		OuterDst: transport.Addr(netip.MustParseAddr("2001:db8::1"), 5000),
	}
	res, err := p.Translate(data, transport.FamilyV4, addrs, 0)
	require.NoError(t, err)
	ip6, udp := decodeV6UDP(t, res.Packet)
	assert.Equal(t, uint8(63), ip6.HopLimit, "expected decremented hop limit")
	assert.Equal(t, layers.UDPPort(53), udp.SrcPort)
	assert.Equal(t, layers.UDPPort(5000), udp.DstPort)
}

func TestTranslateV6ToV4TTLExceeded(t *testing.T) {
	p := Pipeline{Cfg: DefaultConfig()}
	data := buildV6UDP(t, "2001:db8::1", "64:ff9b::c000:201", 5000, 53, 1, []byte("x"))

	addrs := Addrs{
		OuterSrc: transport.Addr(netip.MustParseAddr("192.0.2.1"), 5000),
		OuterDst: transport.Addr(netip.MustParseAddr("192.0.2.2"), 53),
	}
	res, err := p.Translate(data, transport.FamilyV6, addrs, 0)
	require.NoError(t, err)
	require.NotNil(t, res.Notify, "expected a time-exceeded notify")
	assert.Equal(t, transport.FamilyV6, res.Notify.Family, "expected notify addressed back to v6")
}

func TestTranslateV6EchoToV4Echo(t *testing.T) {
	p := Pipeline{Cfg: DefaultConfig()}
	data := buildV6Echo(t, "2001:db8::1", "64:ff9b::c000:201", 0xabcd, 64)

	addrs := Addrs{
		OuterSrc: transport.Addr(netip.MustParseAddr("192.0.2.1"), 0xabcd),
		OuterDst: transport.Addr(netip.MustParseAddr("192.0.2.2"), 0xabcd),
	}
	res, err := p.Translate(data, transport.FamilyV6, addrs, 0)
	require.NoError(t, err)
	pkt := gopacket.NewPacket(res.Packet, layers.LayerTypeIPv4, gopacket.DecodeOptions{Lazy: false, NoCopy: true})
	icmp, ok := pkt.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4)
	require.True(t, ok, "no icmpv4 layer in result")
	assert.Equal(t, uint8(layers.ICMPv4TypeEchoRequest), icmp.TypeCode.Type(), "expected echo request")
	assert.Equal(t, uint16(0xabcd), icmp.Id, "expected allocated identifier")
}

func TestTranslateV4ICMPErrorMapsTypeAndTranslatesInnerViaSessionAddrs(t *testing.T) {
	p := Pipeline{Cfg: DefaultConfig()}
	// Quoted packet: the NAT64 box's own earlier translation of a v6
	// client's flow, pool-address 192.0.2.2 -> real server 192.0.2.1.
	inner := buildV4UDP(t, "192.0.2.2", "192.0.2.1", 33333, 53, 64, []byte("q"))
	// Outer error: sent by an arbitrary intermediate router (192.0.2.254),
	// not by the real server, back toward the pool address.
	data := buildV4ICMPError(t, "192.0.2.254", "192.0.2.2", 3, inner) // port unreachable

	addrs := Addrs{
		OuterSrc: transport.Addr(netip.MustParseAddr("64:ff9b::c000:2fe"), 0),  // generic xlat of the router
		OuterDst: transport.Addr(netip.MustParseAddr("2001:db8::1"), 0),       // BIB-known v6 client
		InnerSrc: transport.Addr(netip.MustParseAddr("2001:db8::1"), 33333),   // session's v6 client
		InnerDst: transport.Addr(netip.MustParseAddr("64:ff9b::c000:201"), 53), // session's v6 remote (real server)
	}
	res, err := p.Translate(data, transport.FamilyV4, addrs, 0)
	require.NoError(t, err)
	pkt := gopacket.NewPacket(res.Packet, layers.LayerTypeIPv6, gopacket.DecodeOptions{Lazy: false, NoCopy: true})
	icmp, ok := pkt.Layer(layers.LayerTypeICMPv6).(*layers.ICMPv6)
	require.True(t, ok, "no icmpv6 layer in result")
	assert.Equal(t, uint8(layers.ICMPv6TypeDestinationUnreachable), icmp.TypeCode.Type())
	assert.Equal(t, uint8(4), icmp.TypeCode.Code(), "expected port-unreachable mapping")
	require.GreaterOrEqual(t, len(icmp.Payload), 4, "expected reserved field plus inner packet")

	innerPkt := gopacket.NewPacket(icmp.Payload[4:], layers.LayerTypeIPv6, gopacket.DecodeOptions{Lazy: false, NoCopy: true})
	innerIP6, ok := innerPkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
	require.True(t, ok, "expected inner ipv6 layer")
	assert.Equal(t, "2001:db8::1", innerIP6.SrcIP.String())
	assert.Equal(t, "64:ff9b::c000:201", innerIP6.DstIP.String())

	innerUDP, ok := innerPkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
	require.True(t, ok, "expected inner udp layer")
	assert.Equal(t, layers.UDPPort(33333), innerUDP.SrcPort)
	assert.Equal(t, layers.UDPPort(53), innerUDP.DstPort)
}

func TestPickPlateau(t *testing.T) {
	cfg := DefaultConfig()
	mtu, ok := cfg.PickPlateau(1500)
	require.True(t, ok)
	assert.Equal(t, 1280, mtu)

	mtu, ok = cfg.PickPlateau(60)
	assert.False(t, ok, "expected no plateau below smallest, got %d", mtu)
}
