// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package pktstore

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nat64.dev/core/internal/nat64/transport"
)

func testKey(port uint16) transport.Tuple {
	return transport.Tuple{
		Src:   transport.Addr(netip.MustParseAddr("192.0.2.1"), port),
		Dst:   transport.Addr(netip.MustParseAddr("192.168.2.1"), 443),
		L3:    transport.FamilyV4,
		Proto: transport.L4TCP,
	}
}

func TestAddAndCancel(t *testing.T) {
	s := New(10)
	k := testKey(1000)
	require.True(t, s.Add(k, []byte("syn"), time.Now()), "expected add to succeed")
	assert.False(t, s.Add(k, []byte("syn2"), time.Now()), "expected duplicate add to fail")
	require.True(t, s.Cancel(k), "expected cancel to succeed")
	assert.False(t, s.Cancel(k), "expected second cancel to fail")
}

func TestAddDropsNewestOverCap(t *testing.T) {
	s := New(2)
	require.True(t, s.Add(testKey(1), []byte("a"), time.Now()), "expected first add to succeed")
	require.True(t, s.Add(testKey(2), []byte("b"), time.Now()), "expected second add to succeed")
	assert.False(t, s.Add(testKey(3), []byte("c"), time.Now()), "expected third add over cap to be rejected")
	assert.Equal(t, 2, s.Len(), "expected store to still hold 2 entries")
}

func TestExpireReturnsOnlyElapsedEntriesInOrder(t *testing.T) {
	s := New(10)
	old := time.Now().Add(-HoldTime - time.Second)
	recent := time.Now()
	s.Add(testKey(1), []byte("old"), old)
	s.Add(testKey(2), []byte("recent"), recent)

	expired := s.Expire(time.Now())
	require.Len(t, expired, 1, "expected only the old entry expired")
	assert.Equal(t, "old", string(expired[0].Packet))
	assert.Equal(t, 1, s.Len(), "expected recent entry to remain")
}
