// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bib

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nerrors "nat64.dev/core/internal/errors"
	"nat64.dev/core/internal/nat64/transport"
)

func mkSession(v6, v4 transport.Pair, b *BIBEntry) *Session {
	return &Session{V6Pair: v6, V4Pair: v4, Proto: transport.L4UDP, Class: ClassUDP, BIB: b}
}

func TestAddSessionAndLookupBothDirections(t *testing.T) {
	tbl := New(transport.L4UDP)
	b := &BIBEntry{
		V6: transport.Addr(netip.MustParseAddr("2001:db8::1"), 32768),
		V4: transport.Addr(netip.MustParseAddr("192.168.2.1"), 40000),
	}
	require.NoError(t, tbl.AddBIB(b))

	v6pair := transport.Pair{Local: b.V6, Remote: transport.Addr(netip.MustParseAddr("64:ff9b::c000:201"), 53)}
	v4pair := transport.Pair{Local: b.V4, Remote: transport.Addr(netip.MustParseAddr("192.0.2.1"), 53)}
	s := mkSession(v6pair, v4pair, b)

	require.NoError(t, tbl.AddSession(s, time.Now()))
	assert.Equal(t, 1, b.SessionCount())

	got := tbl.GetByV6(v6pair)
	require.NotNil(t, got, "expected lookup by v6 pair to find session")
	assert.Same(t, s, got)
	got.Release()

	got = tbl.GetByV4(v4pair)
	require.NotNil(t, got, "expected lookup by v4 pair to find session")
	assert.Same(t, s, got)
	got.Release()
}

func TestAddBIBDuplicateIsExists(t *testing.T) {
	tbl := New(transport.L4TCP)
	b := &BIBEntry{
		V6: transport.Addr(netip.MustParseAddr("2001:db8::1"), 1000),
		V4: transport.Addr(netip.MustParseAddr("192.168.2.1"), 2000),
	}
	require.NoError(t, tbl.AddBIB(b))
	err := tbl.AddBIB(&BIBEntry{V6: b.V6, V4: transport.Addr(netip.MustParseAddr("192.168.2.1"), 3000)})
	assert.Equal(t, nerrors.KindExists, nerrors.GetKind(err))
}

func TestGetOrCreateByV6IsIdempotent(t *testing.T) {
	tbl := New(transport.L4UDP)
	b := &BIBEntry{
		V6: transport.Addr(netip.MustParseAddr("2001:db8::1"), 32768),
		V4: transport.Addr(netip.MustParseAddr("192.168.2.1"), 40000),
	}
	_ = tbl.AddBIB(b)
	v6pair := transport.Pair{Local: b.V6, Remote: transport.Addr(netip.MustParseAddr("64:ff9b::c000:201"), 53)}

	builds := 0
	build := func() *Session {
		builds++
		return &Session{
			V4Pair: transport.Pair{Local: b.V4, Remote: transport.Addr(netip.MustParseAddr("192.0.2.1"), 53)},
			Proto:  transport.L4UDP,
			Class:  ClassUDP,
			BIB:    b,
		}
	}

	s1, created1 := tbl.GetOrCreateByV6(v6pair, time.Now(), build)
	s2, created2 := tbl.GetOrCreateByV6(v6pair, time.Now(), build)
	s1.Release()
	s2.Release()

	assert.True(t, created1)
	assert.False(t, created2)
	assert.Same(t, s1, s2)
	assert.Equal(t, 1, builds)
}

func TestDeleteSessionRemovesOrphanedDynamicBIB(t *testing.T) {
	tbl := New(transport.L4UDP)
	b := &BIBEntry{
		V6: transport.Addr(netip.MustParseAddr("2001:db8::1"), 32768),
		V4: transport.Addr(netip.MustParseAddr("192.168.2.1"), 40000),
	}
	_ = tbl.AddBIB(b)
	v6pair := transport.Pair{Local: b.V6, Remote: transport.Addr(netip.MustParseAddr("64:ff9b::c000:201"), 53)}
	v4pair := transport.Pair{Local: b.V4, Remote: transport.Addr(netip.MustParseAddr("192.0.2.1"), 53)}
	s := mkSession(v6pair, v4pair, b)
	_ = tbl.AddSession(s, time.Now())

	tbl.DeleteSession(s)

	assert.Equal(t, 0, tbl.CountBIB(), "expected orphaned dynamic BIB to be removed")
	assert.True(t, s.Removed())
}

func TestDeleteSessionKeepsStaticBIB(t *testing.T) {
	tbl := New(transport.L4UDP)
	b := &BIBEntry{
		V6:       transport.Addr(netip.MustParseAddr("2001:db8::1"), 32768),
		V4:       transport.Addr(netip.MustParseAddr("192.168.2.1"), 40000),
		IsStatic: true,
	}
	_ = tbl.AddBIB(b)
	v6pair := transport.Pair{Local: b.V6, Remote: transport.Addr(netip.MustParseAddr("64:ff9b::c000:201"), 53)}
	v4pair := transport.Pair{Local: b.V4, Remote: transport.Addr(netip.MustParseAddr("192.0.2.1"), 53)}
	s := mkSession(v6pair, v4pair, b)
	_ = tbl.AddSession(s, time.Now())

	tbl.DeleteSession(s)

	assert.Equal(t, 1, tbl.CountBIB(), "expected static BIB to survive its last session's removal")
}

func TestDeleteByV4AddrRemovesAllMatching(t *testing.T) {
	tbl := New(transport.L4UDP)
	addr := netip.MustParseAddr("192.168.2.1")
	for i := 0; i < 3; i++ {
		b := &BIBEntry{
			V6: transport.Addr(netip.MustParseAddr("2001:db8::1"), uint16(1000+i)),
			V4: transport.Addr(addr, uint16(2000+i)),
		}
		_ = tbl.AddBIB(b)
		s := mkSession(
			transport.Pair{Local: b.V6, Remote: transport.Addr(netip.MustParseAddr("64:ff9b::c000:201"), 53)},
			transport.Pair{Local: b.V4, Remote: transport.Addr(netip.MustParseAddr("192.0.2.1"), 53)},
			b,
		)
		_ = tbl.AddSession(s, time.Now())
	}

	n := tbl.DeleteByV4Addr(addr)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, tbl.CountBIB())
	assert.Equal(t, 0, tbl.CountSessions())
}

func TestDeleteByV6PrefixRemovesMatching(t *testing.T) {
	tbl := New(transport.L4UDP)
	prefix := netip.MustParsePrefix("2001:db8::/32")
	inside := &BIBEntry{
		V6: transport.Addr(netip.MustParseAddr("2001:db8::1"), 1000),
		V4: transport.Addr(netip.MustParseAddr("192.168.2.1"), 2000),
	}
	outside := &BIBEntry{
		V6: transport.Addr(netip.MustParseAddr("2001:db9::1"), 1001),
		V4: transport.Addr(netip.MustParseAddr("192.168.2.1"), 2001),
	}
	_ = tbl.AddBIB(inside)
	_ = tbl.AddBIB(outside)

	n := tbl.DeleteByV6Prefix(prefix)
	assert.Equal(t, 0, n, "expected 0 sessions removed (no sessions attached)")
	assert.Nil(t, tbl.BIBByV6(inside.V6), "expected inside-prefix BIB removed")
	assert.NotNil(t, tbl.BIBByV6(outside.V6), "expected outside-prefix BIB to survive")
}

func TestFlushEmptiesTable(t *testing.T) {
	tbl := New(transport.L4UDP)
	b := &BIBEntry{
		V6: transport.Addr(netip.MustParseAddr("2001:db8::1"), 1000),
		V4: transport.Addr(netip.MustParseAddr("192.168.2.1"), 2000),
	}
	_ = tbl.AddBIB(b)
	s := mkSession(
		transport.Pair{Local: b.V6, Remote: transport.Addr(netip.MustParseAddr("64:ff9b::c000:201"), 53)},
		transport.Pair{Local: b.V4, Remote: transport.Addr(netip.MustParseAddr("192.0.2.1"), 53)},
		b,
	)
	_ = tbl.AddSession(s, time.Now())

	assert.Equal(t, 1, tbl.Flush())
	assert.Equal(t, 0, tbl.CountBIB())
	assert.Equal(t, 0, tbl.CountSessions())
}

func TestTouchIsNoOpAfterRemoval(t *testing.T) {
	tbl := New(transport.L4UDP)
	b := &BIBEntry{
		V6: transport.Addr(netip.MustParseAddr("2001:db8::1"), 1000),
		V4: transport.Addr(netip.MustParseAddr("192.168.2.1"), 2000),
	}
	_ = tbl.AddBIB(b)
	s := mkSession(
		transport.Pair{Local: b.V6, Remote: transport.Addr(netip.MustParseAddr("64:ff9b::c000:201"), 53)},
		transport.Pair{Local: b.V4, Remote: transport.Addr(netip.MustParseAddr("192.0.2.1"), 53)},
		b,
	)
	_ = tbl.AddSession(s, time.Now())
	tbl.DeleteSession(s)

	before := s.UpdateTime
	tbl.Touch(s, ClassICMP, time.Now().Add(time.Hour))
	assert.Equal(t, before, s.UpdateTime, "expected Touch to be a no-op on a removed session")
}
