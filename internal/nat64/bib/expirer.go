// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bib

import (
	"time"
)

// MinTimerSleep is the floor on how soon an expirer goroutine will ever be
// rescheduled, avoiding a tight loop when a class's configured timeout is
// very small. spec.md's Open Question on "minimum timer granularity" is
// left to the implementation; this follows the teacher's ~250ms polling
// floor used elsewhere in the codebase for similar housekeeping loops.
const MinTimerSleep = 250 * time.Millisecond

// Decision is what a caller's expiry callback wants done with a session
// whose deadline has passed.
type Decision struct {
	// Remove, if true, deletes the session (and possibly its BIB).
	Remove bool
	// MoveTo, meaningful only when !Remove, re-homes the session onto a
	// different class FIFO with its update time reset to now (used for the
	// ESTABLISHED->TRANS probe transition, spec.md §4.3).
	MoveTo ExpirerClass
}

// ExpireFunc decides the fate of a session whose class timeout has
// elapsed. It must not block and must not call back into the Table.
type ExpireFunc func(s *Session, now time.Time) Decision

// RunExpirer walks class's FIFO from the head, expiring every session
// whose UpdateTime+timeout has passed as of now, applying decide to each.
// It stops at the first session still within its deadline and returns that
// deadline so the caller can reschedule its timer; ok is false if the FIFO
// is empty.
func (t *Table) RunExpirer(class ExpirerClass, now time.Time, timeout time.Duration, decide ExpireFunc) (nextDeadline time.Time, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fifo := t.expirers[class]
	for {
		front := fifo.Front()
		if front == nil {
			return time.Time{}, false
		}
		s := front.Value.(*Session)
		deadline := s.UpdateTime.Add(timeout)
		if now.Before(deadline) {
			return deadline, true
		}

		d := decide(s, now)
		if d.Remove {
			t.removeSessionLocked(s)
			continue
		}

		fifo.Remove(front)
		s.Class = d.MoveTo
		s.UpdateTime = now
		s.listElem = t.expirers[d.MoveTo].PushBack(s)
	}
}

// expirerListLen reports the number of entries on class's FIFO, for tests
// and metrics.
func (t *Table) expirerListLen(class ExpirerClass) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expirers[class].Len()
}
