// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package pool6 implements the IPv6 prefix pool collaborator (spec.md §3):
// an ordered set of RFC 6052 prefixes exposing a simple membership/lookup
// interface. It is intentionally minimal — the pool itself does not
// allocate anything, it only tells the rest of the core which prefix (if
// any) an outgoing v6 address should be built under.
package pool6

import (
	"net/netip"
	"sync"

	nerrors "nat64.dev/core/internal/errors"
	"nat64.dev/core/internal/nat64/xlat"
)

// Pool is a concurrency-safe ordered set of RFC 6052 prefixes.
type Pool struct {
	mu       sync.RWMutex
	prefixes []xlat.Prefix
}

// New creates a pool seeded with the given prefixes, preserving order.
func New(prefixes ...xlat.Prefix) *Pool {
	p := &Pool{}
	p.prefixes = append(p.prefixes, prefixes...)
	return p
}

// Default returns the well-known NAT64 prefix pool used absent
// administrator configuration (spec.md §6: "{64:ff9b::/96}").
func Default() *Pool {
	return New(xlat.Prefix{Addr: wellKnown, Length: 96})
}

// Add appends a prefix to the pool. Duplicate (address, length) pairs are
// rejected.
func (p *Pool) Add(prefix xlat.Prefix) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.prefixes {
		if existing == prefix {
			return false
		}
	}
	p.prefixes = append(p.prefixes, prefix)
	return true
}

// Remove deletes a prefix from the pool, returning whether it was present.
func (p *Pool) Remove(prefix xlat.Prefix) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, existing := range p.prefixes {
		if existing == prefix {
			p.prefixes = append(p.prefixes[:i], p.prefixes[i+1:]...)
			return true
		}
	}
	return false
}

// Flush removes every configured prefix, returning the count removed.
func (p *Pool) Flush() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.prefixes)
	p.prefixes = nil
	return n
}

// List returns a snapshot of the configured prefixes in pool order.
func (p *Pool) List() []xlat.Prefix {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]xlat.Prefix, len(p.prefixes))
	copy(out, p.prefixes)
	return out
}

// Primary returns the first configured prefix, used by the translation
// pipeline to build outgoing v6 addresses when no more specific policy
// applies. Reports ok=false if the pool is empty.
func (p *Pool) Primary() (xlat.Prefix, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.prefixes) == 0 {
		return xlat.Prefix{}, false
	}
	return p.prefixes[0], true
}

// To4 extracts the v4 address embedded under the pool's primary prefix
// (spec.md §4.2 addr_6to4), used to compute the remote side of a session's
// v4-pair from the v6-side destination address.
func (p *Pool) To4(v6 netip.Addr) (netip.Addr, error) {
	prefix, ok := p.Primary()
	if !ok {
		return netip.Addr{}, nerrors.New(nerrors.KindNotFound, "pool6: no prefix configured")
	}
	return xlat.To4(v6, prefix)
}

// To6 embeds a v4 address under the pool's primary prefix (spec.md §4.2
// addr_4to6), used to build the v6-side remote address of a v4-initiated
// session.
func (p *Pool) To6(v4 netip.Addr) (netip.Addr, error) {
	prefix, ok := p.Primary()
	if !ok {
		return netip.Addr{}, nerrors.New(nerrors.KindNotFound, "pool6: no prefix configured")
	}
	return xlat.From4(v4, prefix)
}
