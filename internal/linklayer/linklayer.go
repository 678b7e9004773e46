// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package linklayer defines the egress edge contract: a raw-socket
// writer that puts an already-translated IP packet back on the wire in
// the opposite address family from the one it arrived on. NFQUEUE
// cannot be reused for this (a verdict on a v4-queued packet cannot
// reinject it as v6), so the translator needs a second, direct path out
// — on Linux, an AF_PACKET datagram socket per interface
// (github.com/mdlayher/packet, writer_linux.go); elsewhere writer_stub.go
// reports unsupported.
package linklayer

// PacketWriter is the method set of Writer: it emits already-translated IP
// packets (no link-layer header) on one interface.
type PacketWriter interface {
	// WriteV4 sends an IPv4 packet.
	WriteV4(pkt []byte) error
	// WriteV6 sends an IPv6 packet.
	WriteV6(pkt []byte) error
	Close() error
}
