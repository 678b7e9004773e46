// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package verdict defines the four-valued packet disposition of spec.md
// §7, generalized from the ctlplane package's narrower drop/accept verdict.
package verdict

// Kind is the disposition a pipeline stage (filter, translate, core) hands
// back to its caller.
type Kind uint8

const (
	// Continue means processing should proceed to the next pipeline step.
	Continue Kind = iota
	// Accept means the packet is not for translation and must be handed to
	// the host stack unmodified.
	Accept
	// Drop means the packet must be silently discarded; the core may
	// already have emitted an ICMP error on its behalf.
	Drop
	// Stolen means the core retained the packet for later processing (the
	// simultaneous-open packet store); the caller must not access or free
	// it.
	Stolen
)

func (k Kind) String() string {
	switch k {
	case Continue:
		return "continue"
	case Accept:
		return "accept"
	case Drop:
		return "drop"
	case Stolen:
		return "stolen"
	default:
		return "unknown"
	}
}

// Verdict pairs a Kind with an optional human-readable reason, used for
// drop-reason metrics and diagnostic logging.
type Verdict struct {
	Kind   Kind
	Reason string
}

func (v Verdict) String() string {
	if v.Reason == "" {
		return v.Kind.String()
	}
	return v.Kind.String() + ": " + v.Reason
}

// C returns a Continue verdict.
func C() Verdict { return Verdict{Kind: Continue} }

// A returns an Accept verdict.
func A() Verdict { return Verdict{Kind: Accept} }

// D returns a Drop verdict with reason.
func D(reason string) Verdict { return Verdict{Kind: Drop, Reason: reason} }

// S returns a Stolen verdict with reason.
func S(reason string) Verdict { return Verdict{Kind: Stolen, Reason: reason} }
