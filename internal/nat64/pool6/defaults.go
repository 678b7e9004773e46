// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package pool6

import "net/netip"

// wellKnown is the RFC 6052 Well-Known Prefix, the default seed for the
// pool absent administrator configuration (spec.md §6).
var wellKnown = netip.MustParseAddr("64:ff9b::")
