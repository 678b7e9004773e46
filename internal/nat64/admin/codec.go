// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package admin

import (
	"encoding/binary"
	"net/netip"

	nerrors "nat64.dev/core/internal/errors"
	"nat64.dev/core/internal/nat64/transport"
)

// putV6 writes a 16-byte IPv6 address plus its 16-bit L4 id.
func putV6(buf []byte, a transport.Address) {
	copy(buf[0:16], a.IP.As16()[:])
	binary.BigEndian.PutUint16(buf[16:18], a.ID)
}

func getV6(buf []byte) transport.Address {
	var raw [16]byte
	copy(raw[:], buf[0:16])
	return transport.Addr(netip.AddrFrom16(raw), binary.BigEndian.Uint16(buf[16:18]))
}

// putV4 writes a 4-byte IPv4 address plus its 16-bit L4 id.
func putV4(buf []byte, a transport.Address) {
	raw := a.IP.As4()
	copy(buf[0:4], raw[:])
	binary.BigEndian.PutUint16(buf[4:6], a.ID)
}

func getV4(buf []byte) transport.Address {
	var raw [4]byte
	copy(raw[:], buf[0:4])
	return transport.Addr(netip.AddrFrom4(raw), binary.BigEndian.Uint16(buf[4:6]))
}

const (
	v6AddrLen = 18 // 16-byte address + 2-byte id
	v4AddrLen = 6  // 4-byte address + 2-byte id
)

func protoByte(p transport.L4Protocol) byte { return byte(p) }

func protoFromByte(b byte) (transport.L4Protocol, error) {
	p := transport.L4Protocol(b)
	switch p {
	case transport.L4TCP, transport.L4UDP, transport.L4ICMP:
		return p, nil
	default:
		return 0, nerrors.New(nerrors.KindInvalidArgument, "admin: invalid protocol byte")
	}
}
