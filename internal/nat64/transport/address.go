// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package transport holds the wire-family-agnostic address and tuple types
// shared by every nat64 component (spec.md §3 DATA MODEL).
package transport

import (
	"fmt"
	"net/netip"
)

// Family identifies an IP address family.
type Family uint8

const (
	FamilyV4 Family = iota
	FamilyV6
)

func (f Family) String() string {
	if f == FamilyV4 {
		return "v4"
	}
	return "v6"
}

// L4Protocol identifies the transport/ICMP protocol carried by a tuple.
type L4Protocol uint8

const (
	L4None L4Protocol = iota
	L4TCP
	L4UDP
	L4ICMP
)

func (p L4Protocol) String() string {
	switch p {
	case L4TCP:
		return "tcp"
	case L4UDP:
		return "udp"
	case L4ICMP:
		return "icmp"
	default:
		return "none"
	}
}

// Address is a transport address: an IP address plus a 16-bit L4 identifier
// (port for TCP/UDP, the echoed ICMP Identifier for ICMP).
type Address struct {
	IP netip.Addr
	ID uint16
}

// Addr builds a transport address from an IP and L4 identifier.
func Addr(ip netip.Addr, id uint16) Address {
	return Address{IP: ip, ID: id}
}

// Family reports whether the address is v4 or v6.
func (a Address) Family() Family {
	if a.IP.Is4() {
		return FamilyV4
	}
	return FamilyV6
}

func (a Address) String() string {
	if a.Family() == FamilyV4 {
		return fmt.Sprintf("%s:%d", a.IP, a.ID)
	}
	return fmt.Sprintf("[%s]:%d", a.IP, a.ID)
}

// Pair is a {local, remote} pair of same-family transport addresses, used
// by sessions (spec.md §3: "local = the pool-side address, remote = the
// peer").
type Pair struct {
	Local  Address
	Remote Address
}

func (p Pair) String() string {
	return fmt.Sprintf("%s<->%s", p.Local, p.Remote)
}

// Tuple is the RFC 6146 flow identifier: {src, dst, L3 family, L4 proto}.
// For ICMP (a "3-tuple") Src.ID == Dst.ID by invariant.
type Tuple struct {
	Src   Address
	Dst   Address
	L3    Family
	Proto L4Protocol
}

// Valid checks the ICMP 3-tuple invariant from spec.md §3.
func (t Tuple) Valid() bool {
	if t.Proto == L4ICMP && t.Src.ID != t.Dst.ID {
		return false
	}
	return t.Src.Family() == t.L3 && t.Dst.Family() == t.L3
}

// Swapped returns the tuple with source and destination exchanged, as used
// when extracting the outer tuple of an ICMP error from its inner packet
// (spec.md §4.1).
func (t Tuple) Swapped() Tuple {
	t.Src, t.Dst = t.Dst, t.Src
	return t
}

func (t Tuple) String() string {
	return fmt.Sprintf("%s{%s -> %s}/%s", t.L3, t.Src, t.Dst, t.Proto)
}
