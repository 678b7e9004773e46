// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config provides the administrator-mutable configuration
// (spec.md §3, §6): session timeouts, filtering and translation flags,
// the IPv6 prefix pool and IPv4 pool seed data, and the queue/fragment
// settings. It is expressed as HCL, following the teacher's
// internal/config round-trip pattern, and exposes a swap-and-quiesce
// Store (spec.md §5, §9) so the hot path never takes a read lock.
package config

// CurrentSchemaVersion is bumped whenever a field is added or renamed.
const CurrentSchemaVersion = "1.0"

// Config is the top-level administrator-mutable configuration. Every
// field here is reachable from the GENERAL mode of the administrative
// protocol (spec.md §6): DISPLAY returns the whole struct, UPDATE
// replaces one or more leaves.
type Config struct {
	// @enum: 1.0
	// @default: "1.0"
	SchemaVersion string `hcl:"schema_version,optional" json:"schema_version,omitempty"`

	// IPv6 prefix pool, in order of preference. Absent administrator
	// configuration this is the single well-known prefix.
	// @default: [{address: "64:ff9b::", length: 96}]
	Pool6 []Pool6Prefix `hcl:"pool6,block" json:"pool6,omitempty"`

	// IPv4 pool addresses, in order of preference.
	// @default: ["192.168.2.1", "192.168.2.2", "192.168.2.3", "192.168.2.4"]
	Pool4 []string `hcl:"pool4,optional" json:"pool4,omitempty"`

	Timeouts    Timeouts    `hcl:"timeouts,block" json:"timeouts,omitempty"`
	Filtering   Filtering   `hcl:"filtering,block" json:"filtering,omitempty"`
	Translation Translation `hcl:"translation,block" json:"translation,omitempty"`
	Queue       Queue       `hcl:"queue,block" json:"queue,omitempty"`

	// Administrative protocol listen address (spec.md §6). Empty disables
	// the administrative listener entirely.
	// @default: "/var/run/natcored.sock"
	AdminSocket string `hcl:"admin_socket,optional" json:"admin_socket,omitempty"`
}

// Pool6Prefix is one entry of the IPv6 prefix pool. Length must be one of
// xlat.ValidLengths; HCL has no native CIDR type, so it is carried as a
// plain address/length pair (mirrors the teacher's preference for
// primitive HCL attributes over custom decoders).
type Pool6Prefix struct {
	// @example: "64:ff9b::"
	Address string `hcl:"address" json:"address"`
	// @enum: 32, 40, 48, 56, 64, 96
	// @default: 96
	Length int `hcl:"length,optional" json:"length,omitempty"`
}

// Timeouts holds the four session expiration timeouts (spec.md §3),
// expressed as HCL duration strings ("5m", "2h") the way the teacher's
// Interval/RefreshInterval fields are.
type Timeouts struct {
	// @default: "5m"
	UDP string `hcl:"udp,optional" json:"udp,omitempty"`
	// @default: "1m"
	ICMP string `hcl:"icmp,optional" json:"icmp,omitempty"`
	// @default: "2h"
	TCPEstablished string `hcl:"tcp_established,optional" json:"tcp_established,omitempty"`
	// @default: "4m"
	TCPTransitory string `hcl:"tcp_transitory,optional" json:"tcp_transitory,omitempty"`
	// Fragment reassembly timeout (spec.md §6); not presently enforced by
	// the translate package since ingress is assumed unfragmented, kept
	// for administrative parity with the spec's default table.
	// @default: "2s"
	Fragment string `hcl:"fragment,optional" json:"fragment,omitempty"`

	// TCPProbeRetries bounds how many ESTABLISHED->TRANS keepalive probes
	// are raised before a session is forced to CLOSED, rather than sitting
	// on the TRANS class indefinitely (SPEC_FULL.md §3).
	// @default: 3
	TCPProbeRetries int `hcl:"tcp_probe_retries,optional" json:"tcp_probe_retries,omitempty"`
}

// Filtering holds the three filtering flags (spec.md §3, §4.3).
type Filtering struct {
	// @default: false
	AddressDependent bool `hcl:"address_dependent_filtering,optional" json:"address_dependent_filtering,omitempty"`
	// @default: false
	DropICMPv6Info bool `hcl:"drop_icmpv6_info,optional" json:"drop_icmpv6_info,omitempty"`
	// @default: false
	DropExternalTCP bool `hcl:"drop_external_tcp,optional" json:"drop_external_tcp,omitempty"`
}

// Translation holds the RFC 6145 rewrite-step flags (spec.md §3, §4.7).
type Translation struct {
	// @default: false
	ResetTrafficClass bool `hcl:"reset_traffic_class,optional" json:"reset_traffic_class,omitempty"`
	// @default: false
	ResetTOS bool `hcl:"reset_tos,optional" json:"reset_tos,omitempty"`
	// @default: 0
	NewTOS uint8 `hcl:"new_tos,optional" json:"new_tos,omitempty"`
	// @default: false
	DFAlwaysOn bool `hcl:"df_always_on,optional" json:"df_always_on,omitempty"`
	// @default: false
	BuildIPv4ID bool `hcl:"build_ipv4_id,optional" json:"build_ipv4_id,omitempty"`
	// @default: false
	LowerMTUFail bool `hcl:"lower_mtu_fail,optional" json:"lower_mtu_fail,omitempty"`
	// Plateau list for ICMPv6 Packet Too Big MTU selection (spec.md §4.7).
	// Must be validated sorted descending and deduplicated before use;
	// see Validate.
	// @default: [65535, 32000, 17914, 8166, 4352, 2002, 1492, 1006, 508, 296, 68]
	MTUPlateaus []int `hcl:"mtu_plateaus,optional" json:"mtu_plateaus,omitempty"`
	// @default: 1280
	MinIPv6MTU int `hcl:"min_ipv6_mtu,optional" json:"min_ipv6_mtu,omitempty"`
}

// Queue holds the packet-store bound (spec.md §3, §4.5).
type Queue struct {
	// @default: 64
	MaxStoredPackets int `hcl:"max_pkts,optional" json:"max_pkts,omitempty"`
}

// Default returns spec.md §6's startup defaults.
func Default() *Config {
	return &Config{
		SchemaVersion: CurrentSchemaVersion,
		Pool6:         []Pool6Prefix{{Address: "64:ff9b::", Length: 96}},
		Pool4:         []string{"192.168.2.1", "192.168.2.2", "192.168.2.3", "192.168.2.4"},
		Timeouts: Timeouts{
			UDP:             "5m",
			ICMP:            "1m",
			TCPEstablished:  "2h",
			TCPTransitory:   "4m",
			Fragment:        "2s",
			TCPProbeRetries: 3,
		},
		Translation: Translation{
			MTUPlateaus: []int{65535, 32000, 17914, 8166, 4352, 2002, 1492, 1006, 508, 296, 68},
			MinIPv6MTU:  1280,
		},
		Queue:       Queue{MaxStoredPackets: 64},
		AdminSocket: "/var/run/natcored.sock",
	}
}

// Clone returns a deep-enough copy for safe concurrent reading: every
// slice Config exposes is copied so a writer replacing one Config never
// mutates memory a reader still holds.
func (c *Config) Clone() *Config {
	out := *c
	out.Pool6 = append([]Pool6Prefix(nil), c.Pool6...)
	out.Pool4 = append([]string(nil), c.Pool4...)
	out.Translation.MTUPlateaus = append([]int(nil), c.Translation.MTUPlateaus...)
	return &out
}
