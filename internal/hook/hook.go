// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package hook defines the ingress edge contract: the interface between
// the kernel's packet-interception mechanism and core.Core.ProcessPacket.
// On Linux this is backed by NFQUEUE (github.com/florianl/go-nfqueue/v2,
// queue_linux.go); everywhere else queue_stub.go reports unsupported, the
// way the teacher's internal/ctlplane pairs *_linux.go with *_stub.go.
package hook

import "context"

// Verdict is what the hook layer reports back to the kernel about one
// intercepted packet (spec.md §7's three hot-path-visible verdicts;
// Continue is internal to core and never escapes ProcessPacket).
type Verdict int

const (
	VerdictAccept Verdict = iota
	VerdictDrop
	VerdictStolen
)

func (v Verdict) String() string {
	switch v {
	case VerdictAccept:
		return "accept"
	case VerdictDrop:
		return "drop"
	case VerdictStolen:
		return "stolen"
	default:
		return "unknown"
	}
}

// Handler decides the fate of one intercepted IP packet. It is called
// synchronously from the queue's receive loop; it must not block on I/O
// (spec.md §5: "no operation in the hot path may block on I/O").
type Handler func(pkt []byte) (Verdict, error)

// Queue is the edge contract every platform binding satisfies.
type Queue interface {
	// Run blocks, feeding intercepted packets to h until ctx is
	// cancelled or an unrecoverable error occurs.
	Run(ctx context.Context, h Handler) error
	Close() error
}
