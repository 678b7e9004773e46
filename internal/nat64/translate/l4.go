// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package translate

import (
	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"nat64.dev/core/internal/nat64/transport"
)

// CloneTCP copies a TCP header (spec.md §4.7): every field except the
// checksum, which the caller recomputes against the new pseudo-header
// during serialization, and the ports, which are rewritten to the
// session's BIB-allocated addresses — src/dst on the wire do not
// generally equal what the ingress packet carried.
func CloneTCP(orig *layers.TCP, src, dst transport.Address) *layers.TCP {
	clone := *orig
	clone.Contents = nil
	clone.Payload = nil
	clone.SrcPort = layers.TCPPort(src.ID)
	clone.DstPort = layers.TCPPort(dst.ID)
	return &clone
}

// CloneUDP copies a UDP header, rewriting its ports the same way CloneTCP
// does. A zero v4 checksum (permitted by RFC 768) is not carried across:
// the v6 side must compute a real one (spec.md §4.7), which
// SerializeOptions.ComputeChecksums does unconditionally once
// SetNetworkLayerForChecksum is called.
func CloneUDP(orig *layers.UDP, src, dst transport.Address) *layers.UDP {
	clone := *orig
	clone.Contents = nil
	clone.Payload = nil
	clone.SrcPort = layers.UDPPort(src.ID)
	clone.DstPort = layers.UDPPort(dst.ID)
	return &clone
}

// Payload extracts the bytes carried by an already-decoded L4 layer.
func Payload(l4 gopacket.Layer) []byte {
	return l4.LayerPayload()
}
