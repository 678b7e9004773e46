// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bib

import (
	"container/list"
	"net/netip"
	"sync"
	"time"

	nerrors "nat64.dev/core/internal/errors"
	"nat64.dev/core/internal/nat64/transport"
)

// Table is the dual-indexed, single-protocol session/BIB database of
// spec.md §4.4. One Table exists per transport.L4Protocol. Both indexes
// (v6-keyed and v4-keyed) and all five expirer FIFOs share the same
// mutex: the spec's "never hold two table locks at once" rule concerns
// distinct protocol tables, not the two trees of a single one.
type Table struct {
	mu sync.Mutex

	proto transport.L4Protocol

	bibByV6 map[transport.Address]*BIBEntry
	bibByV4 map[transport.Address]*BIBEntry

	sessByV6 map[transport.Pair]*Session
	sessByV4 map[transport.Pair]*Session

	expirers [5]*list.List
}

// New creates an empty table for proto.
func New(proto transport.L4Protocol) *Table {
	t := &Table{
		proto:    proto,
		bibByV6:  make(map[transport.Address]*BIBEntry),
		bibByV4:  make(map[transport.Address]*BIBEntry),
		sessByV6: make(map[transport.Pair]*Session),
		sessByV4: make(map[transport.Pair]*Session),
	}
	for i := range t.expirers {
		t.expirers[i] = list.New()
	}
	return t
}

// Proto returns the table's protocol.
func (t *Table) Proto() transport.L4Protocol { return t.proto }

// GetByV6 looks up a session by its v6-side pair, acquiring a reference on
// the returned session (spec.md §5); callers must call Release when done.
func (t *Table) GetByV6(pair transport.Pair) *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessByV6[pair]
	if !ok {
		return nil
	}
	s.Acquire()
	return s
}

// GetByV4 looks up a session by its v4-side pair.
func (t *Table) GetByV4(pair transport.Pair) *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessByV4[pair]
	if !ok {
		return nil
	}
	s.Acquire()
	return s
}

// BIBByV6 looks up a BIB entry by its v6 transport address.
func (t *Table) BIBByV6(addr transport.Address) *BIBEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bibByV6[addr]
}

// BIBByV4 looks up a BIB entry by its v4 transport address.
func (t *Table) BIBByV4(addr transport.Address) *BIBEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bibByV4[addr]
}

// AddBIB inserts a new binding. Returns KindExists if either side is
// already bound.
func (t *Table) AddBIB(b *BIBEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.bibByV6[b.V6]; ok {
		return nerrors.New(nerrors.KindExists, "bib: v6 address already bound")
	}
	if _, ok := t.bibByV4[b.V4]; ok {
		return nerrors.New(nerrors.KindExists, "bib: v4 address already bound")
	}
	t.bibByV6[b.V6] = b
	t.bibByV4[b.V4] = b
	return nil
}

// addSessionLocked links s into both session indexes and the class FIFO,
// and bumps its BIB's session count. Must be called with t.mu held.
func (t *Table) addSessionLocked(s *Session, now time.Time) {
	t.sessByV6[s.V6Pair] = s
	t.sessByV4[s.V4Pair] = s
	s.BIB.sessionCount++
	s.UpdateTime = now
	s.listElem = t.expirers[s.Class].PushBack(s)
}

// AddSession inserts a new session bound to s.BIB. Returns KindExists if
// either pair is already occupied.
func (t *Table) AddSession(s *Session, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessByV6[s.V6Pair]; ok {
		return nerrors.New(nerrors.KindExists, "bib: v6 session already exists")
	}
	if _, ok := t.sessByV4[s.V4Pair]; ok {
		return nerrors.New(nerrors.KindExists, "bib: v4 session already exists")
	}
	t.addSessionLocked(s, now)
	return nil
}

// GetOrCreateByV6 returns the existing session keyed by v6pair, or
// builds one with build and inserts it. build must populate V4Pair, Proto,
// Class and BIB; V6Pair is overwritten with v6pair.
func (t *Table) GetOrCreateByV6(v6pair transport.Pair, now time.Time, build func() *Session) (s *Session, created bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessByV6[v6pair]; ok {
		s.Acquire()
		return s, false
	}
	s = build()
	s.V6Pair = v6pair
	t.addSessionLocked(s, now)
	s.Acquire()
	return s, true
}

// GetOrCreateByV4 mirrors GetOrCreateByV6 for the v4-initiated path.
func (t *Table) GetOrCreateByV4(v4pair transport.Pair, now time.Time, build func() *Session) (s *Session, created bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessByV4[v4pair]; ok {
		s.Acquire()
		return s, false
	}
	s = build()
	s.V4Pair = v4pair
	t.addSessionLocked(s, now)
	s.Acquire()
	return s, true
}

// Touch moves s to the tail of class and bumps its update time. A no-op if
// s has already been removed from the table (spec.md §4.4).
func (t *Table) Touch(s *Session, class ExpirerClass, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s.Removed() {
		return
	}
	if s.Class != class {
		t.expirers[s.Class].Remove(s.listElem.(*list.Element))
		s.Class = class
		s.listElem = t.expirers[class].PushBack(s)
	} else {
		t.expirers[class].MoveToBack(s.listElem.(*list.Element))
	}
	s.UpdateTime = now
}

// removeSessionLocked severs s from both indexes and its FIFO, decrements
// its BIB's count, and deletes the BIB too if it was dynamic and now has
// no sessions left. Must be called with t.mu held.
func (t *Table) removeSessionLocked(s *Session) {
	if s.Removed() {
		return
	}
	delete(t.sessByV6, s.V6Pair)
	delete(t.sessByV4, s.V4Pair)
	t.expirers[s.Class].Remove(s.listElem.(*list.Element))
	s.removed.Store(true)

	b := s.BIB
	b.sessionCount--
	if b.sessionCount <= 0 && !b.IsStatic {
		delete(t.bibByV6, b.V6)
		delete(t.bibByV4, b.V4)
	}
}

// DeleteSession removes a single session (and its BIB, if now orphaned and
// dynamic).
func (t *Table) DeleteSession(s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeSessionLocked(s)
}

// DeleteByBIB removes every session bound to b, and then b itself, whether
// b is static or dynamic. Returns the number of sessions removed.
func (t *Table) DeleteByBIB(b *BIBEntry) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, s := range t.sessByV6 {
		if s.BIB == b {
			t.removeSessionLocked(s)
			n++
		}
	}
	if b.sessionCount <= 0 {
		delete(t.bibByV6, b.V6)
		delete(t.bibByV4, b.V4)
	}
	return n
}

// DeleteByV4Addr removes every BIB (and its sessions) whose pool-side
// address is addr, used when an address leaves pool4 (spec.md §6 REMOVE).
func (t *Table) DeleteByV4Addr(addr netip.Addr) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for v4, b := range t.bibByV4 {
		if v4.IP != addr {
			continue
		}
		for _, s := range t.sessByV4 {
			if s.BIB == b {
				t.removeSessionLocked(s)
				n++
			}
		}
		delete(t.bibByV6, b.V6)
		delete(t.bibByV4, b.V4)
	}
	return n
}

// DeleteByV6Prefix removes every BIB (and its sessions) whose v6 address
// falls under prefix, used when a pool6 prefix is removed.
func (t *Table) DeleteByV6Prefix(prefix netip.Prefix) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for v6, b := range t.bibByV6 {
		if !prefix.Contains(v6.IP) {
			continue
		}
		for _, s := range t.sessByV6 {
			if s.BIB == b {
				t.removeSessionLocked(s)
				n++
			}
		}
		delete(t.bibByV6, b.V6)
		delete(t.bibByV4, b.V4)
	}
	return n
}

// Flush removes every session and BIB in the table, returning the number
// of sessions removed.
func (t *Table) Flush() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.sessByV6)
	t.sessByV6 = make(map[transport.Pair]*Session)
	t.sessByV4 = make(map[transport.Pair]*Session)
	t.bibByV6 = make(map[transport.Address]*BIBEntry)
	t.bibByV4 = make(map[transport.Address]*BIBEntry)
	for i := range t.expirers {
		t.expirers[i] = list.New()
	}
	return n
}

// CountBIB and CountSessions report table sizes for administrative COUNT
// operations (spec.md §6).
func (t *Table) CountBIB() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.bibByV6)
}

func (t *Table) CountSessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessByV6)
}

// ListBIB returns a snapshot of all bindings, for DISPLAY operations.
func (t *Table) ListBIB() []*BIBEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*BIBEntry, 0, len(t.bibByV6))
	for _, b := range t.bibByV6 {
		out = append(out, b)
	}
	return out
}

// ListSessions returns a snapshot of all sessions, for DISPLAY operations.
func (t *Table) ListSessions() []*Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Session, 0, len(t.sessByV6))
	for _, s := range t.sessByV6 {
		out = append(out, s)
	}
	return out
}
