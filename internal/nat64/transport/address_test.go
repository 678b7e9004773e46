// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package transport

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddressFamily(t *testing.T) {
	v4 := Addr(netip.MustParseAddr("192.0.2.1"), 80)
	assert.Equal(t, FamilyV4, v4.Family())
	v6 := Addr(netip.MustParseAddr("2001:db8::1"), 80)
	assert.Equal(t, FamilyV6, v6.Family())
}

func TestTupleValidICMP(t *testing.T) {
	a := Addr(netip.MustParseAddr("2001:db8::1"), 0x1234)
	b := Addr(netip.MustParseAddr("2001:db8::2"), 0x1234)
	tup := Tuple{Src: a, Dst: b, L3: FamilyV6, Proto: L4ICMP}
	assert.True(t, tup.Valid())

	bad := Tuple{Src: a, Dst: Addr(netip.MustParseAddr("2001:db8::2"), 0x9999), L3: FamilyV6, Proto: L4ICMP}
	assert.False(t, bad.Valid(), "expected invalid ICMP tuple (mismatched ids)")
}

func TestTupleSwapped(t *testing.T) {
	a := Addr(netip.MustParseAddr("192.0.2.1"), 1000)
	b := Addr(netip.MustParseAddr("192.0.2.2"), 2000)
	tup := Tuple{Src: a, Dst: b, L3: FamilyV4, Proto: L4UDP}
	sw := tup.Swapped()
	assert.Equal(t, b, sw.Src)
	assert.Equal(t, a, sw.Dst)
}
