// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package pool4

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nat64.dev/core/internal/nat64/transport"
)

func TestAllocatePreservesParityAndClass(t *testing.T) {
	p := New(netip.MustParseAddr("192.168.2.1"))
	got, err := p.Allocate(transport.L4UDP, 32768)
	require.NoError(t, err)
	assert.Zero(t, got.ID%2, "expected even port (32768 is even)")
	assert.GreaterOrEqual(t, got.ID, uint16(49152), "expected dynamic-range port")
}

func TestAllocateFallsOverToNextAddress(t *testing.T) {
	p := New(netip.MustParseAddr("192.168.2.1"), netip.MustParseAddr("192.168.2.2"))

	// Exhaust every identifier on the first address by direct reservation,
	// forcing the next Allocate to overflow onto address 2.
	a := p.allocatorFor(transport.L4UDP, netip.MustParseAddr("192.168.2.1"))
	for port := uint16(1); port != 0; port++ {
		a.used[port] = true
	}

	got, err := p.Allocate(transport.L4UDP, 32768)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.168.2.2"), got.IP, "expected fail-over to second address")
}

func TestReserveRelease(t *testing.T) {
	p := New(netip.MustParseAddr("192.168.2.1"))
	addr := transport.Addr(netip.MustParseAddr("192.168.2.1"), 8080)
	require.True(t, p.Reserve(transport.L4TCP, addr), "expected reserve to succeed")
	assert.False(t, p.Reserve(transport.L4TCP, addr), "expected second reserve to fail")
	p.Release(transport.L4TCP, addr)
	assert.True(t, p.Reserve(transport.L4TCP, addr), "expected reserve to succeed after release")
}

func TestAllocateExhausted(t *testing.T) {
	p := New()
	_, err := p.Allocate(transport.L4UDP, 1000)
	assert.Error(t, err, "expected error when pool has no addresses")
}
