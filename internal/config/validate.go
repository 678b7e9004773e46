// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"net/netip"
	"sort"
	"time"

	nerrors "nat64.dev/core/internal/errors"
	"nat64.dev/core/internal/nat64/xlat"
)

// Validate checks a Config for internal consistency (spec.md §6's
// default table and §3's prefix-length constraints). It does
// not mutate c; callers that want the plateau list normalized should use
// Normalize first.
func (c *Config) Validate() error {
	if len(c.Pool6) == 0 {
		return nerrors.New(nerrors.KindInvalidArgument, "config: pool6 must not be empty")
	}
	for _, p := range c.Pool6 {
		addr, err := netip.ParseAddr(p.Address)
		if err != nil || !addr.Is6() {
			return nerrors.Errorf(nerrors.KindInvalidArgument, "config: pool6 address %q invalid", p.Address)
		}
		length := p.Length
		if length == 0 {
			length = 96 // omitted length, as Pool6Prefixes reads it
		}
		if !validPrefixLength(length) {
			return nerrors.Errorf(nerrors.KindInvalidArgument, "config: pool6 length %d not in {32,40,48,56,64,96}", p.Length)
		}
	}

	if len(c.Pool4) == 0 {
		return nerrors.New(nerrors.KindInvalidArgument, "config: pool4 must not be empty")
	}
	for _, a := range c.Pool4 {
		addr, err := netip.ParseAddr(a)
		if err != nil || !addr.Is4() {
			return nerrors.Errorf(nerrors.KindInvalidArgument, "config: pool4 address %q invalid", a)
		}
	}

	for _, d := range []string{c.Timeouts.UDP, c.Timeouts.ICMP, c.Timeouts.TCPEstablished, c.Timeouts.TCPTransitory, c.Timeouts.Fragment} {
		if _, err := time.ParseDuration(d); err != nil {
			return nerrors.Errorf(nerrors.KindInvalidArgument, "config: invalid duration %q", d)
		}
	}

	if c.Translation.MinIPv6MTU < 1280 {
		return nerrors.New(nerrors.KindInvalidArgument, "config: min_ipv6_mtu must be >= 1280")
	}
	if !sort.IntsAreSorted(reverseInts(c.Translation.MTUPlateaus)) {
		return nerrors.New(nerrors.KindInvalidArgument, "config: mtu_plateaus must be sorted descending")
	}
	if c.Queue.MaxStoredPackets <= 0 {
		return nerrors.New(nerrors.KindInvalidArgument, "config: max_pkts must be positive")
	}
	if c.Timeouts.TCPProbeRetries < 0 {
		return nerrors.New(nerrors.KindInvalidArgument, "config: tcp_probe_retries must not be negative")
	}
	return nil
}

func validPrefixLength(n int) bool {
	for _, v := range xlat.ValidLengths {
		if v == n {
			return true
		}
	}
	return false
}

// reverseInts returns a reversed copy of xs, used only to check
// descending order against sort.IntsAreSorted (which checks ascending).
func reverseInts(xs []int) []int {
	out := make([]int, len(xs))
	for i, v := range xs {
		out[len(xs)-1-i] = v
	}
	return out
}

// Normalize sorts MTUPlateaus descending and removes duplicates in
// place, matching the invariant translate.Config.PickPlateau assumes.
func (c *Config) Normalize() {
	sort.Sort(sort.Reverse(sort.IntSlice(c.Translation.MTUPlateaus)))
	out := c.Translation.MTUPlateaus[:0]
	var last int
	first := true
	for _, p := range c.Translation.MTUPlateaus {
		if first || p != last {
			out = append(out, p)
		}
		last, first = p, false
	}
	c.Translation.MTUPlateaus = out
}
