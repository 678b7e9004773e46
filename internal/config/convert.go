// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"net/netip"
	"time"

	"nat64.dev/core/internal/nat64/filter"
	"nat64.dev/core/internal/nat64/translate"
	"nat64.dev/core/internal/nat64/xlat"
)

// ToPolicy converts the filtering-relevant fields to filter.Policy, the
// snapshot type the core's hot path consumes directly (spec.md §5).
func (c *Config) ToPolicy() filter.Policy {
	return filter.Policy{
		AddressDependentFiltering: c.Filtering.AddressDependent,
		DropICMPv6Info:            c.Filtering.DropICMPv6Info,
		DropExternalTCP:           c.Filtering.DropExternalTCP,
		UDPTimeout:                mustDuration(c.Timeouts.UDP),
		ICMPTimeout:               mustDuration(c.Timeouts.ICMP),
		TCPEstTimeout:             mustDuration(c.Timeouts.TCPEstablished),
		TCPTransTimeout:           mustDuration(c.Timeouts.TCPTransitory),
		MaxStoredPackets:          c.Queue.MaxStoredPackets,
		TCPProbeRetries:           c.Timeouts.TCPProbeRetries,
	}
}

// ToTranslateConfig converts the translation-relevant fields to
// translate.Config.
func (c *Config) ToTranslateConfig() translate.Config {
	return translate.Config{
		ResetTrafficClass: c.Translation.ResetTrafficClass,
		ResetTOS:          c.Translation.ResetTOS,
		NewTOS:            c.Translation.NewTOS,
		DFAlwaysOn:        c.Translation.DFAlwaysOn,
		BuildIPv4ID:       c.Translation.BuildIPv4ID,
		MTUPlateaus:       append([]int(nil), c.Translation.MTUPlateaus...),
		LowerMTUFail:      c.Translation.LowerMTUFail,
		MinIPv6MTU:        c.Translation.MinIPv6MTU,
	}
}

// FragmentTimeout parses the configured fragment reassembly timeout.
func (c *Config) FragmentTimeout() time.Duration {
	return mustDuration(c.Timeouts.Fragment)
}

// Pool6Prefixes converts the configured IPv6 pool entries to
// xlat.Prefix. Callers should call Validate first; malformed entries are
// skipped here rather than erroring, since this is meant to be called
// only after validation.
func (c *Config) Pool6Prefixes() []xlat.Prefix {
	out := make([]xlat.Prefix, 0, len(c.Pool6))
	for _, p := range c.Pool6 {
		addr, err := netip.ParseAddr(p.Address)
		if err != nil {
			continue
		}
		length := p.Length
		if length == 0 {
			length = 96
		}
		out = append(out, xlat.Prefix{Addr: addr, Length: length})
	}
	return out
}

// Pool4Addresses converts the configured IPv4 pool entries to netip.Addr.
func (c *Config) Pool4Addresses() []netip.Addr {
	out := make([]netip.Addr, 0, len(c.Pool4))
	for _, a := range c.Pool4 {
		addr, err := netip.ParseAddr(a)
		if err != nil {
			continue
		}
		out = append(out, addr)
	}
	return out
}

// mustDuration parses a duration already checked by Validate; an
// unparseable value falls back to zero rather than panicking, since a
// config that skipped Validate must not be allowed to crash the host
// (spec.md §7).
func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
