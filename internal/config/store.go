// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"runtime"
	"sync/atomic"
)

// Store holds the live Config under a swap-and-quiesce discipline
// (spec.md §5, §9): readers on the hot path call Load and never block;
// a writer calling Swap installs a new snapshot immediately for future
// Loads, then waits for every reader that observed the old snapshot
// before it returns, so a caller freeing resources tied to the old
// Config (e.g. a replaced pool) can do so safely afterward.
//
// This has equivalent semantics to RCU but is built from a per-generation
// reader count rather than a true grace-period mechanism: each Load
// increments the generation it observed, then re-checks that the
// generation is still current (a sync.WaitGroup would misuse-panic on
// this double-check, since Add can race a concurrent Wait reaching
// zero; a plain atomic counter cannot). Swap installs the new pointer,
// then spins until the old generation's count drains to zero.
type Store struct {
	cur atomic.Pointer[generation]
}

type generation struct {
	cfg   *Config
	count atomic.Int64
}

// NewStore creates a Store seeded with cfg.
func NewStore(cfg *Config) *Store {
	s := &Store{}
	s.cur.Store(&generation{cfg: cfg})
	return s
}

// Handle is a reference to one Load's snapshot. Callers on the hot path
// must call Release once they are done consulting Config.
type Handle struct {
	gen *generation
}

// Config returns the snapshot this handle observed.
func (h Handle) Config() *Config { return h.gen.cfg }

// Release signals that the caller is done consulting this snapshot.
func (h Handle) Release() { h.gen.count.Add(-1) }

// Load returns a handle to the current Config snapshot. The hot path
// must pair every Load with a Release.
func (s *Store) Load() Handle {
	for {
		gen := s.cur.Load()
		gen.count.Add(1)
		if s.cur.Load() == gen {
			return Handle{gen: gen}
		}
		// Lost the race against a concurrent Swap; the generation we
		// just joined may already be draining. Back out and retry
		// against whatever is now current.
		gen.count.Add(-1)
	}
}

// Snapshot returns the current Config without participating in the
// quiesce protocol, for callers (administrative DISPLAY) that only need
// a momentary read and release no handle.
func (s *Store) Snapshot() *Config {
	return s.cur.Load().cfg
}

// Swap installs cfg as the new snapshot and blocks until every reader
// that observed the previous snapshot has released it. Not called from
// the hot path: the administrative GENERAL UPDATE operation (spec.md
// §6) is the only caller.
func (s *Store) Swap(cfg *Config) {
	next := &generation{cfg: cfg}
	old := s.cur.Swap(next)
	for old.count.Load() > 0 {
		runtime.Gosched()
	}
}
