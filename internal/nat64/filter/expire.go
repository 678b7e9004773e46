// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package filter

import (
	"time"

	"nat64.dev/core/internal/nat64/bib"
	"nat64.dev/core/internal/nat64/tcpfsm"
)

// SimpleDecider builds the bib.ExpireFunc for UDP and ICMP sessions
// (spec.md §4.4): the only transition either protocol's state machine
// defines for an elapsed timeout is removal.
func SimpleDecider() bib.ExpireFunc {
	return func(s *bib.Session, now time.Time) bib.Decision {
		return bib.Decision{Remove: true}
	}
}

// TCPDecider builds the bib.ExpireFunc for TCP sessions, driving
// tcpfsm.Transition on EventExpiry and applying SPEC_FULL.md §3's bounded
// ESTABLISHED->TRANS probe retry: once probeRetries keepalive probes have
// been raised with no intervening data segment, the session is forced to
// CLOSED instead of being kept alive indefinitely on the TRANS class.
//
// A real zero-length ACK probe is never synthesized here: spec.md §3's
// Session carries only the four transport addresses of a flow, not its TCP
// sequence/ack state, so there is no data this layer could build a valid
// segment from without extending that data model. onProbe is invoked
// instead as the observable side effect (metrics, logging); an
// implementation that wants wire probes would need to carry sequence
// state in Session, which is out of scope here.
func TCPDecider(probeRetries int, onProbe func(*bib.Session), onUnreachable func(*bib.Session)) bib.ExpireFunc {
	return func(s *bib.Session, now time.Time) bib.Decision {
		if s.TCPState == tcpfsm.Trans && s.ProbeCount > 0 && s.ProbeCount < probeRetries {
			s.ProbeCount++
			if onProbe != nil {
				onProbe(s)
			}
			return bib.Decision{MoveTo: bib.ClassTCPTrans}
		}

		res, ok := tcpfsm.Transition(s.TCPState, tcpfsm.EventExpiry)
		if !ok {
			return bib.Decision{Remove: true}
		}
		s.TCPState = res.Next

		switch res.Action {
		case tcpfsm.ActionEmitProbe:
			s.ProbeCount = 1
			if onProbe != nil {
				onProbe(s)
			}
			return bib.Decision{MoveTo: bib.ClassTCPTrans}
		case tcpfsm.ActionEmitUnreachable:
			if onUnreachable != nil {
				onUnreachable(s)
			}
			return bib.Decision{Remove: true}
		case tcpfsm.ActionRemove:
			return bib.Decision{Remove: true}
		default:
			class := bib.ClassTCPTrans
			if res.Timer == tcpfsm.TimerTCPEst {
				class = bib.ClassTCPEst
			}
			return bib.Decision{MoveTo: class}
		}
	}
}
