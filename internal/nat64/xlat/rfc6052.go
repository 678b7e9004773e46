// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package xlat implements the RFC 6052 algorithmic address translation
// used by the core's IPv6/IPv4 mapping step (spec.md §4.2).
package xlat

import (
	"net/netip"

	nerrors "nat64.dev/core/internal/errors"
)

// Prefix is an RFC 6052 well-known prefix: an IPv6 address plus a prefix
// length drawn from {32,40,48,56,64,96} (spec.md §3).
type Prefix struct {
	Addr   netip.Addr
	Length int
}

// ValidLengths enumerates the only prefix lengths RFC 6052 defines.
var ValidLengths = [...]int{32, 40, 48, 56, 64, 96}

func validLength(n int) bool {
	for _, v := range ValidLengths {
		if v == n {
			return true
		}
	}
	return false
}

// uByteOffset is the fixed byte offset of the "u" octet (bits 64-71),
// reserved as zero by RFC 6052 for
// every prefix length except /96, which has no reserved byte.
const uByteOffset = 8

// To4 strips prefix from v6 and returns the embedded 32-bit IPv4 address
// (spec.md §4.2 addr_6to4). Fails with KindInvalidArgument if the prefix
// length is not one of the well-known lengths.
func To4(v6 netip.Addr, prefix Prefix) (netip.Addr, error) {
	if !validLength(prefix.Length) {
		return netip.Addr{}, nerrors.Errorf(nerrors.KindInvalidArgument, "xlat: invalid prefix length %d", prefix.Length)
	}
	if !v6.Is6() {
		return netip.Addr{}, nerrors.Errorf(nerrors.KindInvalidArgument, "xlat: address %s is not IPv6", v6)
	}

	bytes := v6.As16()
	n := prefix.Length / 8

	var v4 [4]byte
	idx := 0
	pos := n
	for idx < 4 {
		if pos == uByteOffset && prefix.Length != 96 {
			pos++
			continue
		}
		v4[idx] = bytes[pos]
		idx++
		pos++
	}

	return netip.AddrFrom4(v4), nil
}

// From4 inserts the 32 bits of v4 into prefix, zeroing the RFC 6052 "u"
// byte, and returns the resulting IPv6 address (spec.md §4.2 addr_4to6).
// Pure once the prefix is validated: this never fails for a valid prefix.
func From4(v4 netip.Addr, prefix Prefix) (netip.Addr, error) {
	if !validLength(prefix.Length) {
		return netip.Addr{}, nerrors.Errorf(nerrors.KindInvalidArgument, "xlat: invalid prefix length %d", prefix.Length)
	}
	if !v4.Is4() {
		return netip.Addr{}, nerrors.Errorf(nerrors.KindInvalidArgument, "xlat: address %s is not IPv4", v4)
	}
	if !prefix.Addr.Is6() {
		return netip.Addr{}, nerrors.Errorf(nerrors.KindInvalidArgument, "xlat: prefix address %s is not IPv6", prefix.Addr)
	}

	out := prefix.Addr.As16()
	n := prefix.Length / 8

	// Zero everything from the prefix boundary onward before overlaying
	// the embedded v4 bits, so stale suffix bits in the configured prefix
	// address never leak into the result.
	for i := n; i < 16; i++ {
		out[i] = 0
	}

	v4Bytes := v4.As4()
	idx := 0
	pos := n
	for idx < 4 {
		if pos == uByteOffset && prefix.Length != 96 {
			pos++
			continue
		}
		out[pos] = v4Bytes[idx]
		idx++
		pos++
	}

	return netip.AddrFrom16(out), nil
}
