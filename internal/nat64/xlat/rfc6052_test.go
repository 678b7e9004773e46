// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package xlat

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripAllLengths(t *testing.T) {
	v4 := netip.MustParseAddr("192.0.2.1")
	for _, n := range ValidLengths {
		prefix := Prefix{Addr: netip.MustParseAddr("64:ff9b::"), Length: n}
		v6, err := From4(v4, prefix)
		require.NoError(t, err, "From4(/%d)", n)
		got, err := To4(v6, prefix)
		require.NoError(t, err, "To4(/%d)", n)
		assert.Equal(t, v4, got, "/%d round-trip", n)
	}
}

func TestWellKnown96(t *testing.T) {
	prefix := Prefix{Addr: netip.MustParseAddr("64:ff9b::"), Length: 96}
	v6, err := From4(netip.MustParseAddr("192.0.2.1"), prefix)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("64:ff9b::c000:201"), v6)
}

func TestInvalidPrefixLength(t *testing.T) {
	prefix := Prefix{Addr: netip.MustParseAddr("64:ff9b::"), Length: 33}
	_, err := From4(netip.MustParseAddr("192.0.2.1"), prefix)
	assert.Error(t, err, "expected error for invalid prefix length")
	_, err = To4(netip.MustParseAddr("64:ff9b::1"), prefix)
	assert.Error(t, err, "expected error for invalid prefix length")
}

func TestUByteZeroedAt64(t *testing.T) {
	// At /64 the u-byte sits immediately after the prefix; confirm it's zero.
	prefix := Prefix{Addr: netip.MustParseAddr("2001:db8:1:2::"), Length: 64}
	v6, err := From4(netip.MustParseAddr("203.0.113.5"), prefix)
	require.NoError(t, err)
	b := v6.As16()
	assert.Zero(t, b[8], "expected u-byte (index 8) to be zero")
}
