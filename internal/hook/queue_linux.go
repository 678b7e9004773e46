// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package hook

import (
	"context"
	"time"

	nfqueue "github.com/florianl/go-nfqueue/v2"

	"nat64.dev/core/internal/logging"
)

// NFQueue binds one NFQUEUE number to a Handler via go-nfqueue/v2. The
// translator is normally reached by two NFQUEUE rules, one on the v6
// ingress chain and one on the v4 ingress chain, each with its own
// queue number and its own NFQueue instance.
type NFQueue struct {
	num uint16
	log *logging.Logger
	nf  *nfqueue.Nfqueue
}

// NewNFQueue opens NFQUEUE number num. maxQueueLen bounds how many
// packets the kernel holds awaiting a verdict before it starts dropping
// them itself.
func NewNFQueue(num uint16, maxQueueLen uint32, log *logging.Logger) (*NFQueue, error) {
	if log == nil {
		log = logging.New("hook")
	}
	cfg := &nfqueue.Config{
		NfQueue:      num,
		MaxPacketLen: 0xffff,
		MaxQueueLen:  maxQueueLen,
		Copymode:     nfqueue.NfQnlCopyPacket,
		ReadTimeout:  10 * time.Millisecond,
		WriteTimeout: 15 * time.Millisecond,
	}
	nf, err := nfqueue.Open(cfg)
	if err != nil {
		return nil, err
	}
	return &NFQueue{num: num, log: log, nf: nf}, nil
}

// Run registers h against the queue and blocks until ctx is done.
func (q *NFQueue) Run(ctx context.Context, h Handler) error {
	fn := func(a nfqueue.Attribute) int {
		if a.PacketID == nil || a.Payload == nil {
			return 0
		}
		id := *a.PacketID
		verdict, err := h(*a.Payload)
		if err != nil {
			q.log.Warnf("queue %d: handler error: %v", q.num, err)
			verdict = VerdictDrop
		}
		switch verdict {
		case VerdictAccept:
			_ = q.nf.SetVerdict(id, nfqueue.NfAccept)
		case VerdictStolen:
			// The packet store (pktstore) already owns the payload;
			// telling NFQUEUE to drop it here releases the kernel's
			// copy without forwarding it (spec.md §9's "Stolen" note).
			_ = q.nf.SetVerdict(id, nfqueue.NfDrop)
		default:
			_ = q.nf.SetVerdict(id, nfqueue.NfDrop)
		}
		return 0
	}
	errFn := func(e error) int {
		q.log.Debugf("queue %d: %v", q.num, e)
		return 0
	}
	if err := q.nf.RegisterWithErrorFunc(ctx, fn, errFn); err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

// Close releases the NFQUEUE handle.
func (q *NFQueue) Close() error {
	return q.nf.Close()
}
