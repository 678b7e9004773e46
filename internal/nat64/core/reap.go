// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package core

import (
	"nat64.dev/core/internal/nat64/pktstore"
	"nat64.dev/core/internal/nat64/transport"
	"nat64.dev/core/internal/nat64/translate"
)

// NotifyHostUnreachable builds a self-raised ICMPv4 Destination Unreachable
// (Host Unreachable) quoting e's stored packet, for a simultaneous-open
// v4 SYN that timed out with no matching v6 SYN arriving (spec.md §4.5).
func (c *Core) NotifyHostUnreachable(e *pktstore.Entry) Outbound {
	return c.notifyOutbound(&translate.Notify{
		Family: transport.FamilyV4,
		Type:   3, // Destination Unreachable
		Code:   1, // Host Unreachable
		Quote:  e.Packet,
	})
}
