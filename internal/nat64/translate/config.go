// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package translate implements spec.md §4.7: the rewrite step. Given an
// ingress tuple already filtered and an outgoing tuple already computed, it
// builds the opposite-family L3/L4 headers, recomputes checksums against
// the new pseudo-header, and re-translates ICMP error payloads one level
// deep.
package translate

// Config is the subset of administrator-mutable translation flags spec.md
// §3 lists, passed by value for the same reason filter.Policy is: callers
// hand in a snapshot read from a config store.
type Config struct {
	ResetTrafficClass bool
	ResetTOS          bool
	NewTOS            uint8
	DFAlwaysOn        bool
	BuildIPv4ID       bool

	// MTUPlateaus must already be sorted descending and deduplicated
	// (spec.md §4.7, §6 validation); PickPlateau assumes this.
	MTUPlateaus  []int
	LowerMTUFail bool
	MinIPv6MTU   int
}

// DefaultConfig returns a Config with MinIPv6MTU 1280 and the six-entry
// plateau list {1500, 1280, 1006, 508, 296, 68}. The daemon does not use
// it: its startup plateau list comes from config.Default via
// Config.ToTranslateConfig.
func DefaultConfig() Config {
	return Config{
		MTUPlateaus: []int{1500, 1280, 1006, 508, 296, 68},
		MinIPv6MTU:  1280,
	}
}

// PickPlateau returns the greatest configured plateau strictly less than
// totalLen (spec.md §4.7's MTU derivation for ICMPv6 Packet Too Big). If
// LowerMTUFail is set the result is never below 1280. Reports ok=false if
// no plateau qualifies.
func (c Config) PickPlateau(totalLen int) (mtu int, ok bool) {
	for _, p := range c.MTUPlateaus {
		if p < totalLen {
			mtu, ok = p, true
			break
		}
	}
	if ok && c.LowerMTUFail && mtu < 1280 {
		mtu = 1280
	}
	return mtu, ok
}
