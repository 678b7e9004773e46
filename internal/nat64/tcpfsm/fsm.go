// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package tcpfsm implements the per-session TCP state machine from
// spec.md §4.3 as a pure function over a transition table, in the style of
// a BFD-style finite state machine: no side effects, no table/session
// dependency, trivially testable against the spec's transition table.
package tcpfsm

// State is a TCP session state (spec.md §3).
type State uint8

const (
	Closed State = iota
	V4Init
	V6Init
	Established
	V4FinRcv
	V6FinRcv
	V4FinV6FinRcv
	Trans
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case V4Init:
		return "V4_INIT"
	case V6Init:
		return "V6_INIT"
	case Established:
		return "ESTABLISHED"
	case V4FinRcv:
		return "V4_FIN_RCV"
	case V6FinRcv:
		return "V6_FIN_RCV"
	case V4FinV6FinRcv:
		return "V4_FIN_V6_FIN_RCV"
	case Trans:
		return "TRANS"
	default:
		return "UNKNOWN"
	}
}

// Event is a TCP FSM input event (spec.md §4.3).
type Event uint8

const (
	// EventV6SYN is an ingress v6 SYN with no existing session.
	EventV6SYN Event = iota
	// EventV4SYN is an ingress v4 SYN with no existing session
	// (drop_external_tcp must be false for this to reach the FSM).
	EventV4SYN
	// EventV4SYNMatching is an ingress v4 SYN that completes a V6_INIT
	// simultaneous-open.
	EventV4SYNMatching
	// EventV6SYNMatching is an ingress v6 SYN that completes a V4_INIT
	// simultaneous-open (the stored packet is discarded, SPEC_FULL.md §0).
	EventV6SYNMatching
	// EventV4FIN is an ingress v4 FIN.
	EventV4FIN
	// EventV6FIN is an ingress v6 FIN.
	EventV6FIN
	// EventRST is an ingress RST from either side.
	EventRST
	// EventData is any ingress data segment (non-SYN/FIN/RST).
	EventData
	// EventExpiry fires when the session's expirer timer elapses.
	EventExpiry
)

func (e Event) String() string {
	switch e {
	case EventV6SYN:
		return "V6SYN"
	case EventV4SYN:
		return "V4SYN"
	case EventV4SYNMatching:
		return "V4SYNMatching"
	case EventV6SYNMatching:
		return "V6SYNMatching"
	case EventV4FIN:
		return "V4FIN"
	case EventV6FIN:
		return "V6FIN"
	case EventRST:
		return "RST"
	case EventData:
		return "Data"
	case EventExpiry:
		return "Expiry"
	default:
		return "Unknown"
	}
}

// Timer names the expirer class a session should be (re)enqueued on after
// a transition (spec.md §4.4).
type Timer uint8

const (
	TimerNone Timer = iota
	TimerTCPEst
	TimerTCPTrans
)

// Action is a side effect the caller (the filter/BIB layer) must perform
// after applying a transition. The FSM itself never performs these.
type Action uint8

const (
	ActionNone Action = iota
	// ActionStorePacket holds the packet in the simultaneous-open store
	// (spec.md §4.5); only ever paired with a V4Init transition.
	ActionStorePacket
	// ActionCancelStoredPacket discards a previously stored packet because
	// the matching v6 SYN arrived (SPEC_FULL.md §0, RFC 5382 REQ-4).
	ActionCancelStoredPacket
	// ActionEmitProbe sends the zero-length ACK probe of spec.md §4.4.
	ActionEmitProbe
	// ActionEmitUnreachable emits the ICMPv4 error described in spec.md
	// §4.5 using the stored packet as the inner packet.
	ActionEmitUnreachable
	// ActionRemove deletes the session; the caller must do so regardless
	// of any other action returned alongside it.
	ActionRemove
)

// Result is the outcome of applying an Event to a State.
type Result struct {
	Next   State
	Timer  Timer
	Action Action
}

// Transition applies ev to current and returns the resulting state, timer
// class and side-effect action, implementing spec.md §4.3's table
// verbatim. ok is false for event/state combinations the table does not
// define, which the caller must treat as a no-op (stay in current state).
func Transition(current State, ev Event) (Result, bool) {
	// RST forces TRANS from any state (table row "any | RST | TRANS").
	if ev == EventRST {
		return Result{Next: Trans, Timer: TimerTCPTrans}, true
	}

	switch current {
	case Closed:
		switch ev {
		case EventV6SYN:
			return Result{Next: V6Init, Timer: TimerTCPTrans}, true
		case EventV4SYN:
			return Result{Next: V4Init, Timer: TimerTCPTrans, Action: ActionStorePacket}, true
		}

	case V6Init:
		switch ev {
		case EventV4SYNMatching:
			return Result{Next: Established, Timer: TimerTCPEst}, true
		case EventExpiry:
			return Result{Next: Closed, Action: ActionRemove}, true
		}

	case V4Init:
		switch ev {
		case EventV6SYNMatching:
			return Result{Next: Established, Timer: TimerTCPEst, Action: ActionCancelStoredPacket}, true
		case EventExpiry:
			return Result{Next: Closed, Action: ActionEmitUnreachable}, true
		}

	case Established:
		switch ev {
		case EventV4FIN:
			return Result{Next: V4FinRcv, Timer: TimerTCPEst}, true
		case EventV6FIN:
			return Result{Next: V6FinRcv, Timer: TimerTCPEst}, true
		case EventExpiry:
			return Result{Next: Trans, Timer: TimerTCPTrans, Action: ActionEmitProbe}, true
		}

	case V4FinRcv:
		switch ev {
		case EventV6FIN:
			return Result{Next: V4FinV6FinRcv, Timer: TimerTCPTrans}, true
		case EventExpiry:
			return Result{Next: Closed, Action: ActionRemove}, true
		}

	case V6FinRcv:
		switch ev {
		case EventV4FIN:
			return Result{Next: V4FinV6FinRcv, Timer: TimerTCPTrans}, true
		case EventExpiry:
			return Result{Next: Closed, Action: ActionRemove}, true
		}

	case V4FinV6FinRcv:
		if ev == EventExpiry {
			return Result{Next: Closed, Action: ActionRemove}, true
		}

	case Trans:
		switch ev {
		case EventData:
			return Result{Next: Established, Timer: TimerTCPEst}, true
		case EventExpiry:
			return Result{Next: Closed, Action: ActionRemove}, true
		}
	}

	return Result{}, false
}

// Terminal reports whether s is the CLOSED state, at which point the
// session must be removed (spec.md §3).
func Terminal(s State) bool {
	return s == Closed
}
