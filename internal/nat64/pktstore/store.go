// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package pktstore implements the TCP simultaneous-open packet store of
// spec.md §4.5: ingress v4 SYNs with no matching state are held for a
// short window awaiting a matching v6 SYN, and surfaced for an ICMPv4
// Destination/Address Unreachable error if none arrives in time.
package pktstore

import (
	"container/list"
	"sync"
	"time"

	"nat64.dev/core/internal/nat64/transport"
)

// HoldTime is how long a stored packet waits for a matching v6 SYN before
// expiry (spec.md §4.5).
const HoldTime = 6 * time.Second

// Entry is a held packet awaiting simultaneous-open resolution.
type Entry struct {
	Key        transport.Tuple
	Packet     []byte
	InsertedAt time.Time

	elem *list.Element
}

// Store is the concurrency-safe packet store. It is capped at MaxPkts;
// admissions over the cap are rejected (spec.md §4.5: "drop newest").
type Store struct {
	mu      sync.Mutex
	maxPkts int
	entries map[transport.Tuple]*Entry
	order   *list.List // FIFO by insertion order, for bounded expiry walks
}

// New creates a store capped at maxPkts entries.
func New(maxPkts int) *Store {
	return &Store{
		maxPkts: maxPkts,
		entries: make(map[transport.Tuple]*Entry),
		order:   list.New(),
	}
}

// Add stores packet under key at time now. Returns false if the store is
// at capacity or key is already held.
func (s *Store) Add(key transport.Tuple, packet []byte, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; exists {
		return false
	}
	if len(s.entries) >= s.maxPkts {
		return false
	}

	e := &Entry{Key: key, Packet: packet, InsertedAt: now}
	e.elem = s.order.PushBack(e)
	s.entries[key] = e
	return true
}

// Cancel removes and discards the stored packet for key, used when the
// matching v6 SYN arrives (spec.md §4.5). Returns false if nothing was
// stored for key.
func (s *Store) Cancel(key transport.Tuple) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	s.removeLocked(e)
	return true
}

// Take removes and returns the stored entry for key without discarding it,
// for the V4_INIT->ESTABLISHED transition path when the caller still wants
// to inspect the held packet (not currently exercised, kept symmetric with
// Cancel).
func (s *Store) Take(key transport.Tuple) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	s.removeLocked(e)
	return e, true
}

func (s *Store) removeLocked(e *Entry) {
	delete(s.entries, e.Key)
	s.order.Remove(e.elem)
}

// Expire walks the store from its oldest entry, removing and returning
// every one whose InsertedAt+HoldTime has passed as of now. Callers must
// turn each returned Entry into an ICMPv4 Destination Unreachable using
// its stored packet as the inner packet (spec.md §4.5).
func (s *Store) Expire(now time.Time) []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*Entry
	for {
		front := s.order.Front()
		if front == nil {
			break
		}
		e := front.Value.(*Entry)
		if now.Sub(e.InsertedAt) < HoldTime {
			break
		}
		s.removeLocked(e)
		expired = append(expired, e)
	}
	return expired
}

// Len reports the number of currently held packets.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
