// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bib

import (
	"context"
	"time"

	"nat64.dev/core/internal/nat64/transport"
)

// IdlePoll bounds how long an expirer goroutine sleeps when its FIFO is
// empty, so a freshly added session is never kept waiting longer than this
// before its deadline is first considered.
const IdlePoll = 5 * time.Second

// Manager owns the three per-protocol tables spec.md §4.4 describes (one
// each for TCP, UDP and ICMP) and the goroutines that drive their expirer
// FIFOs.
type Manager struct {
	tables map[transport.L4Protocol]*Table
}

// NewManager creates a Manager with an empty table for each of TCP, UDP
// and ICMP.
func NewManager() *Manager {
	m := &Manager{tables: make(map[transport.L4Protocol]*Table)}
	for _, p := range []transport.L4Protocol{transport.L4TCP, transport.L4UDP, transport.L4ICMP} {
		m.tables[p] = New(p)
	}
	return m
}

// Table returns the table for proto.
func (m *Manager) Table(proto transport.L4Protocol) *Table {
	return m.tables[proto]
}

// TimeoutFunc returns the currently configured timeout for a class; it is
// re-evaluated on every wakeup so a live configuration reload (spec.md §6
// UPDATE) takes effect without restarting the goroutine.
type TimeoutFunc func() time.Duration

// RunClassExpirer drives one class's FIFO on table until ctx is cancelled.
// decide is supplied by the caller (the filter package), which alone knows
// how to translate an elapsed deadline into a TCP state transition, a
// probe emission or a plain removal.
func RunClassExpirer(ctx context.Context, table *Table, class ExpirerClass, timeout TimeoutFunc, decide ExpireFunc) {
	timer := time.NewTimer(IdlePoll)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		deadline, ok := table.RunExpirer(class, time.Now(), timeout(), decide)
		var wait time.Duration
		if !ok {
			wait = IdlePoll
		} else {
			wait = time.Until(deadline)
			if wait < MinTimerSleep {
				wait = MinTimerSleep
			}
		}
		timer.Reset(wait)
	}
}
