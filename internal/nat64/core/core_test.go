// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package core

import (
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/require"

	"nat64.dev/core/internal/nat64/bib"
	"nat64.dev/core/internal/nat64/filter"
	"nat64.dev/core/internal/nat64/frag"
	"nat64.dev/core/internal/nat64/pktstore"
	"nat64.dev/core/internal/nat64/pool4"
	"nat64.dev/core/internal/nat64/pool6"
	"nat64.dev/core/internal/nat64/transport"
	"nat64.dev/core/internal/nat64/translate"
	"nat64.dev/core/internal/nat64/xlat"
)

func newTestCore() *Core {
	c := New(
		bib.NewManager(),
		pool4.New(netip.MustParseAddr("192.168.2.1")),
		pool6.New(xlat.Prefix{Addr: netip.MustParseAddr("64:ff9b::"), Length: 96}),
		pktstore.New(64),
		nil,
	)
	c.Translate = translate.Pipeline{Cfg: translate.DefaultConfig()}
	c.Frag = frag.Config{MinIPv6MTU: 1280}
	return c
}

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

func TestProcessPacketV6InitiatedUDPRoundTrip(t *testing.T) {
	c := newTestCore()
	policy := filter.DefaultPolicy()
	now := time.Now()

	// v6 client -> NAT64-embedded v4 server.
	out := buildV6UDP(t, "2001:db8::1", "64:ff9b::c000:201", 5000, 53, 64, []byte("query"))
	res := c.ProcessPacket(out, transport.FamilyV6, policy, now)
	require.Equal(t, "continue", res.Verdict.Kind.String())
	require.Len(t, res.Outbound, 1)
	require.Equal(t, transport.FamilyV4, res.Outbound[0].Family)

	pkt := gopacket.NewPacket(res.Outbound[0].Packet, layers.LayerTypeIPv4, gopacket.DecodeOptions{Lazy: false, NoCopy: true})
	ip4 := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	udp := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
	require.True(t, ip4.DstIP.Equal(net.ParseIP("192.0.2.1")), "expected dst 192.0.2.1, got %v", ip4.DstIP)
	require.True(t, ip4.SrcIP.Equal(net.ParseIP("192.168.2.1")), "expected pool src 192.168.2.1, got %v", ip4.SrcIP)

	// Server's reply, v4-ingress, should route back to the original v6
	// client using the same BIB/session just created. The reply targets
	// the pool-allocated port the first translation used as its source,
	// not the original v6-side port.
	reply := buildV4UDP(t, "192.0.2.1", "192.168.2.1", 53, uint16(udp.SrcPort), 64, []byte("reply"))
	res2 := c.ProcessPacket(reply, transport.FamilyV4, policy, now)
	require.Equal(t, "continue", res2.Verdict.Kind.String())
	require.Len(t, res2.Outbound, 1)
	require.Equal(t, transport.FamilyV6, res2.Outbound[0].Family)
	pkt2 := gopacket.NewPacket(res2.Outbound[0].Packet, layers.LayerTypeIPv6, gopacket.DecodeOptions{Lazy: false, NoCopy: true})
	ip6 := pkt2.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
	require.Equal(t, "2001:db8::1", ip6.DstIP.String(), "expected reply routed back to 2001:db8::1")
}

func TestProcessPacketDropsOnNoRecognizedProtocol(t *testing.T) {
	c := newTestCore()
	policy := filter.DefaultPolicy()

	ip4 := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolIGMP, SrcIP: net.ParseIP("192.0.2.1"), DstIP: net.ParseIP("192.168.2.1")}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, ip4, gopacket.Payload([]byte{1, 2, 3})))

	res := c.ProcessPacket(buf.Bytes(), transport.FamilyV4, policy, time.Now())
	require.Equal(t, "drop", res.Verdict.Kind.String())
}
