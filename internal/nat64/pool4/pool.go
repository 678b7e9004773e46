// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package pool4 implements the IPv4 address pool and per-(address,L4)
// port/ICMP-id allocator that backs dynamic BIB creation (spec.md §4.6).
package pool4

import (
	"net/netip"
	"sync"

	nerrors "nat64.dev/core/internal/errors"
	"nat64.dev/core/internal/nat64/transport"
)

// portClass is one of RFC 6146's three port-range classes.
type portClass int

const (
	classWellKnown portClass = iota
	classRegistered
	classDynamic
)

func classOf(port uint16) portClass {
	switch {
	case port < 1024:
		return classWellKnown
	case port < 49152:
		return classRegistered
	default:
		return classDynamic
	}
}

func classBounds(c portClass) (lo, hi uint16) {
	switch c {
	case classWellKnown:
		return 1, 1023
	case classRegistered:
		return 1024, 49151
	default:
		return 49152, 65535
	}
}

// addrAllocator tracks allocated identifiers for a single (pool address,
// L4 protocol) pair.
type addrAllocator struct {
	used map[uint16]bool
}

func newAddrAllocator() *addrAllocator {
	return &addrAllocator{used: make(map[uint16]bool)}
}

// tryAllocate attempts to allocate a free port in the same class and of
// the same parity as want. Returns 0, false if none is free.
func (a *addrAllocator) tryAllocate(want uint16) (uint16, bool) {
	class := classOf(want)
	lo, hi := classBounds(class)
	parity := want % 2

	for p := lo; ; p++ {
		if p%2 == parity && !a.used[p] {
			a.used[p] = true
			return p, true
		}
		if p == hi {
			break
		}
	}
	return 0, false
}

// allocateAny falls back to any free identifier in the full 1-65535 range
// when the preferred class/parity is exhausted (spec.md §4.6 fail-over).
func (a *addrAllocator) allocateAny() (uint16, bool) {
	for p := uint16(1); p != 0; p++ {
		if !a.used[p] {
			a.used[p] = true
			return p, true
		}
	}
	return 0, false
}

func (a *addrAllocator) release(port uint16) {
	delete(a.used, port)
}

func (a *addrAllocator) reserve(port uint16) bool {
	if a.used[port] {
		return false
	}
	a.used[port] = true
	return true
}

// Pool is the concurrency-safe IPv4 address pool and port/ICMP-id
// allocator. One allocator set exists per L4 protocol so a TCP and a UDP
// flow through the same address never contend over the same identifier
// space.
type Pool struct {
	mu        sync.Mutex
	addrs     []netip.Addr
	allocator map[transport.L4Protocol]map[netip.Addr]*addrAllocator
}

// New creates a pool seeded with the given IPv4 addresses, in order.
func New(addrs ...netip.Addr) *Pool {
	p := &Pool{
		addrs:     append([]netip.Addr(nil), addrs...),
		allocator: make(map[transport.L4Protocol]map[netip.Addr]*addrAllocator),
	}
	return p
}

// Default returns the default four-address pool from spec.md §6
// (192.168.2.1 - 192.168.2.4).
func Default() *Pool {
	return New(
		netip.MustParseAddr("192.168.2.1"),
		netip.MustParseAddr("192.168.2.2"),
		netip.MustParseAddr("192.168.2.3"),
		netip.MustParseAddr("192.168.2.4"),
	)
}

func (p *Pool) allocatorFor(proto transport.L4Protocol, addr netip.Addr) *addrAllocator {
	byAddr, ok := p.allocator[proto]
	if !ok {
		byAddr = make(map[netip.Addr]*addrAllocator)
		p.allocator[proto] = byAddr
	}
	a, ok := byAddr[addr]
	if !ok {
		a = newAddrAllocator()
		byAddr[addr] = a
	}
	return a
}

// Allocate assigns a v4 transport address for proto, preferring the same
// port parity and range class as wantPort, falling over to any free
// identifier on the same address, then to the next pool address
// (spec.md §4.6).
func (p *Pool) Allocate(proto transport.L4Protocol, wantPort uint16) (transport.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.addrs) == 0 {
		return transport.Address{}, nerrors.New(nerrors.KindOutOfMemory, "pool4: no addresses configured")
	}

	for _, addr := range p.addrs {
		a := p.allocatorFor(proto, addr)
		if port, ok := a.tryAllocate(wantPort); ok {
			return transport.Addr(addr, port), nil
		}
		if port, ok := a.allocateAny(); ok {
			return transport.Addr(addr, port), nil
		}
	}

	return transport.Address{}, nerrors.New(nerrors.KindOutOfMemory, "pool4: exhausted")
}

// Reserve marks a specific (address, proto, id) as used, for administrator
// driven static BIB creation (SPEC_FULL.md §3). Returns false if already
// taken.
func (p *Pool) Reserve(proto transport.L4Protocol, addr transport.Address) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	a := p.allocatorFor(proto, addr.IP)
	return a.reserve(addr.ID)
}

// Release returns an identifier to the free pool.
func (p *Pool) Release(proto transport.L4Protocol, addr transport.Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a := p.allocatorFor(proto, addr.IP)
	a.release(addr.ID)
}

// Addresses returns a snapshot of the configured pool addresses.
func (p *Pool) Addresses() []netip.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]netip.Addr, len(p.addrs))
	copy(out, p.addrs)
	return out
}

// Add appends an address to the pool.
func (p *Pool) Add(addr netip.Addr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addrs = append(p.addrs, addr)
}

// Remove deletes an address from the pool, releasing its allocator state.
// Returns false if the address was not configured.
func (p *Pool) Remove(addr netip.Addr) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, a := range p.addrs {
		if a == addr {
			p.addrs = append(p.addrs[:i], p.addrs[i+1:]...)
			for _, byAddr := range p.allocator {
				delete(byAddr, addr)
			}
			return true
		}
	}
	return false
}

// Flush removes every pool address, returning the count removed.
func (p *Pool) Flush() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.addrs)
	p.addrs = nil
	p.allocator = make(map[transport.L4Protocol]map[netip.Addr]*addrAllocator)
	return n
}
