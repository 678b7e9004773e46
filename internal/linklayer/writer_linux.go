// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package linklayer

import (
	"encoding/binary"
	"net"

	"github.com/mdlayher/packet"

	nerrors "nat64.dev/core/internal/errors"
)

const (
	ethPIP   = 0x0800
	ethPIPv6 = 0x86DD
)

// raw AF_PACKET sockets expect the protocol argument in network byte
// order.
func htons(v uint16) int {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return int(binary.LittleEndian.Uint16(b))
}

// Writer sends translated packets out one interface using a pair of
// AF_PACKET SOCK_DGRAM ("cooked") sockets, one per EtherType; the kernel
// builds the Ethernet header from the destination hardware address the
// caller supplies, the way it would for any other raw L3 send.
type Writer struct {
	v4    *packet.Conn
	v6    *packet.Conn
	nhMAC net.HardwareAddr
}

// NewWriter opens both sockets on ifaceName. nextHop is the link-layer
// address every outgoing packet is addressed to (the default gateway's
// MAC, or a directly connected host's). ARP/NDP resolution of nextHop is
// out of scope for the translator itself (spec.md's Non-goals exclude
// routing); it is expected to be configured alongside the interface.
func NewWriter(ifaceName string, nextHop net.HardwareAddr) (*Writer, error) {
	ifi, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, nerrors.Wrap(err, nerrors.KindInternal, "linklayer: interface lookup failed")
	}
	v4, err := packet.Listen(ifi, packet.Datagram, htons(ethPIP), nil)
	if err != nil {
		return nil, nerrors.Wrap(err, nerrors.KindInternal, "linklayer: open v4 socket failed")
	}
	v6, err := packet.Listen(ifi, packet.Datagram, htons(ethPIPv6), nil)
	if err != nil {
		v4.Close()
		return nil, nerrors.Wrap(err, nerrors.KindInternal, "linklayer: open v6 socket failed")
	}
	return &Writer{v4: v4, v6: v6, nhMAC: nextHop}, nil
}

// WriteV4 implements Writer.
func (w *Writer) WriteV4(pkt []byte) error {
	_, err := w.v4.WriteTo(pkt, &packet.Addr{HardwareAddr: w.nhMAC})
	return err
}

// WriteV6 implements Writer.
func (w *Writer) WriteV6(pkt []byte) error {
	_, err := w.v6.WriteTo(pkt, &packet.Addr{HardwareAddr: w.nhMAC})
	return err
}

// Close releases both sockets.
func (w *Writer) Close() error {
	err1 := w.v4.Close()
	err2 := w.v6.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
