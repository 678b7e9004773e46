// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package bib implements the session/BIB database of spec.md §4.4: a
// concurrent, dual-indexed table of dynamic bindings with per-entry
// expiration, state machines and bulk removal.
//
// Cyclic references between BIB and Session (spec.md §9) are resolved the
// way the spec prescribes: Session holds a strong reference to its BIB,
// BIB holds only a count. Enumerating the sessions of a BIB is done via
// the session table index, never via a BIB-local list.
package bib

import (
	"sync/atomic"
	"time"

	"nat64.dev/core/internal/nat64/tcpfsm"
	"nat64.dev/core/internal/nat64/transport"
)

// BIBEntry is the static portion of a NAT64 binding (spec.md §3).
type BIBEntry struct {
	V6       transport.Address
	V4       transport.Address
	Proto    transport.L4Protocol
	IsStatic bool

	// sessionCount is the BIB's sole back-reference to its sessions: a
	// bare count, not pointers (spec.md §9). Guarded by the owning
	// Table's mutex.
	sessionCount int
}

// SessionCount returns the number of sessions currently bound to this BIB.
func (b *BIBEntry) SessionCount() int { return b.sessionCount }

// ExpirerClass names one of the five expiration FIFOs a session can live
// on (spec.md §4.4).
type ExpirerClass uint8

const (
	ClassUDP ExpirerClass = iota
	ClassICMP
	ClassTCPEst
	ClassTCPTrans
	ClassTCPSyn
)

func (c ExpirerClass) String() string {
	switch c {
	case ClassUDP:
		return "udp"
	case ClassICMP:
		return "icmp"
	case ClassTCPEst:
		return "tcp_est"
	case ClassTCPTrans:
		return "tcp_trans"
	case ClassTCPSyn:
		return "tcp_syn"
	default:
		return "unknown"
	}
}

// ClassForTimer maps a tcpfsm.Timer to the expirer class it corresponds to.
func ClassForTimer(t tcpfsm.Timer) ExpirerClass {
	if t == tcpfsm.TimerTCPEst {
		return ClassTCPEst
	}
	return ClassTCPTrans
}

// Session is an active flow bound to a BIBEntry (spec.md §3).
type Session struct {
	V6Pair transport.Pair
	V4Pair transport.Pair
	Proto  transport.L4Protocol

	// TCPState is meaningful only when Proto == transport.L4TCP.
	TCPState tcpfsm.State

	UpdateTime time.Time
	Class      ExpirerClass

	// ProbeCount counts ESTABLISHED->TRANS keepalive probes already raised
	// for this session (SPEC_FULL.md §3's bounded-retry supplement); reset
	// whenever the session returns to ESTABLISHED.
	ProbeCount int

	// BIB is the session's strong reference to its parent binding
	// (spec.md invariant A).
	BIB *BIBEntry

	refcount atomic.Int32

	// removed marks that the session's tree links have been severed; Touch
	// becomes a no-op once this is set (spec.md §4.4).
	removed atomic.Bool

	// listElem is opaque storage for the owning Table's expirer FIFO node;
	// only Table manipulates it.
	listElem any
}

// Acquire increments the session's reference count. Callers that hold a
// *Session returned from a lookup own one reference and must call Release
// when done with it (spec.md §5).
func (s *Session) Acquire() { s.refcount.Add(1) }

// Release decrements the reference count taken by a lookup.
func (s *Session) Release() { s.refcount.Add(-1) }

// Removed reports whether the session has already been unlinked from its
// table (both trees), per spec.md §4.4's Touch no-op contract.
func (s *Session) Removed() bool { return s.removed.Load() }
