// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package filter

import (
	"net/netip"
	"time"

	"nat64.dev/core/internal/logging"
	"nat64.dev/core/internal/nat64/bib"
	"nat64.dev/core/internal/nat64/pktstore"
	"nat64.dev/core/internal/nat64/pool4"
	"nat64.dev/core/internal/nat64/tcpfsm"
	"nat64.dev/core/internal/nat64/transport"
	"nat64.dev/core/internal/nat64/verdict"
)

// Translator maps addresses across families, backed by pool6+xlat
// (spec.md §4.2). The filter step needs it to complete a session's
// opposite-family pair at creation time.
type Translator interface {
	To4(v6 netip.Addr) (netip.Addr, error)
	To6(v4 netip.Addr) (netip.Addr, error)
}

// Engine wires the session/BIB tables, the IPv4 allocator, the packet
// store and the address translator into spec.md §4.3's filtering policy.
type Engine struct {
	Tables     *bib.Manager
	Pool4      *pool4.Pool
	Store      *pktstore.Store
	Translator Translator
	Log        *logging.Logger
}

// New creates a filtering engine from its collaborators.
func New(tables *bib.Manager, p4 *pool4.Pool, store *pktstore.Store, tr Translator, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.New("filter")
	}
	return &Engine{Tables: tables, Pool4: p4, Store: store, Translator: tr, Log: log}
}

// Outcome is what a filtering call hands back to the pipeline: either a
// session the next step can translate against, or a verdict explaining why
// none was produced.
type Outcome struct {
	Session *bib.Session
	Verdict verdict.Verdict
}

func continueWith(s *bib.Session) Outcome { return Outcome{Session: s, Verdict: verdict.C()} }
func dropWith(reason string) Outcome      { return Outcome{Verdict: verdict.D(reason)} }

// HandleUDP implements spec.md §4.3's UDP policy for both directions.
// ingress names the family the packet arrived on.
func (e *Engine) HandleUDP(tuple transport.Tuple, ingress transport.Family, policy Policy, now time.Time) Outcome {
	return e.handleSimple(transport.L4UDP, bib.ClassUDP, policy.UDPTimeout, tuple, ingress, policy, now)
}

// HandleICMPInformational implements spec.md §4.3's ICMP informational
// policy (echo request/reply), sharing UDP's create/touch/filter shape but
// using the icmp timer class and respecting drop-icmpv6-info.
func (e *Engine) HandleICMPInformational(tuple transport.Tuple, ingress transport.Family, policy Policy, now time.Time) Outcome {
	if ingress == transport.FamilyV6 && policy.DropICMPv6Info {
		return dropWith("drop-icmpv6-info")
	}
	return e.handleSimple(transport.L4ICMP, bib.ClassICMP, policy.ICMPTimeout, tuple, ingress, policy, now)
}

// handleSimple is the common shape of the UDP and ICMP-informational
// policies: v6-initiated flows create state on demand, v4-initiated flows
// require an existing BIB (and, if address-dependent filtering is on, an
// existing session matching the remote address).
func (e *Engine) handleSimple(proto transport.L4Protocol, class bib.ExpirerClass, timeout time.Duration, tuple transport.Tuple, ingress transport.Family, policy Policy, now time.Time) Outcome {
	table := e.Tables.Table(proto)

	if ingress == transport.FamilyV6 {
		v6pair := transport.Pair{Local: tuple.Src, Remote: tuple.Dst}
		s, created := table.GetOrCreateByV6(v6pair, now, func() *bib.Session {
			b, err := e.bibForV6(table, proto, tuple.Src, tuple.Src.ID)
			if err != nil {
				return nil
			}
			v4Remote, err := e.Translator.To4(tuple.Dst.IP)
			if err != nil {
				return nil
			}
			return &bib.Session{
				V4Pair: transport.Pair{Local: b.V4, Remote: transport.Addr(v4Remote, tuple.Dst.ID)},
				Proto:  proto,
				Class:  class,
				BIB:    b,
			}
		})
		if s == nil {
			return dropWith("pool4 exhausted or translation failed")
		}
		if !created {
			table.Touch(s, class, now)
		}
		return continueWith(s)
	}

	// v4-initiated (inbound): requires an existing BIB for the destination
	// pool address; address-dependent filtering additionally requires an
	// existing session whose remote matches the packet's source.
	b := table.BIBByV4(tuple.Dst)
	if b == nil {
		return dropWith("no BIB for destination address")
	}
	if policy.AddressDependentFiltering {
		if !e.allow(table, tuple.Dst, tuple.Src.IP) {
			return dropWith("address-dependent filtering rejected")
		}
	}

	v6Remote, err := e.Translator.To6(tuple.Src.IP)
	if err != nil {
		return dropWith("v4-to-v6 translation failed")
	}
	v4pair := transport.Pair{Local: tuple.Dst, Remote: tuple.Src}
	s, created := table.GetOrCreateByV4(v4pair, now, func() *bib.Session {
		return &bib.Session{
			V6Pair: transport.Pair{Local: b.V6, Remote: transport.Addr(v6Remote, tuple.Src.ID)},
			Proto:  proto,
			Class:  class,
			BIB:    b,
		}
	})
	if !created {
		table.Touch(s, class, now)
	}
	return continueWith(s)
}

// bibForV6 returns the existing BIB for a v6 local address, or allocates a
// fresh v4 transport address from the pool and creates one.
func (e *Engine) bibForV6(table *bib.Table, proto transport.L4Protocol, v6local transport.Address, wantID uint16) (*bib.BIBEntry, error) {
	if b := table.BIBByV6(v6local); b != nil {
		return b, nil
	}
	v4addr, err := e.Pool4.Allocate(proto, wantID)
	if err != nil {
		return nil, err
	}
	b := &bib.BIBEntry{V6: v6local, V4: v4addr, Proto: proto}
	if err := table.AddBIB(b); err != nil {
		// Lost a race to create the same BIB; use the winner's entry.
		if existing := table.BIBByV6(v6local); existing != nil {
			e.Pool4.Release(proto, v4addr)
			return existing, nil
		}
		return nil, err
	}
	return b, nil
}

// allow implements spec.md §4.4's allow(v4-tuple): true iff some session
// exists whose (v4.local, v4.remote.address) matches, ignoring remote port.
func (e *Engine) allow(table *bib.Table, v4local transport.Address, v4remoteAddr netip.Addr) bool {
	for _, s := range table.ListSessions() {
		if s.V4Pair.Local == v4local && s.V4Pair.Remote.IP == v4remoteAddr {
			return true
		}
	}
	return false
}

// eventForFoundSession classifies an ingress TCP segment against a session
// that already exists. Finding the session via table lookup is itself what
// makes a SYN "matching" in spec.md §4.3's sense, so a SYN that lands on an
// opposite-family V6_INIT/V4_INIT session is the *Matching variant, never
// the bare initial-SYN event (that only applies to brand-new sessions).
func eventForFoundSession(state tcpfsm.State, ingress transport.Family, syn, fin, rst bool) tcpfsm.Event {
	switch {
	case rst:
		return tcpfsm.EventRST
	case syn && state == tcpfsm.V6Init && ingress == transport.FamilyV4:
		return tcpfsm.EventV4SYNMatching
	case syn && state == tcpfsm.V4Init && ingress == transport.FamilyV6:
		return tcpfsm.EventV6SYNMatching
	case fin && ingress == transport.FamilyV6:
		return tcpfsm.EventV6FIN
	case fin:
		return tcpfsm.EventV4FIN
	default:
		return tcpfsm.EventData
	}
}

// HandleTCP implements spec.md §4.3's TCP policy, driving the tcpfsm state
// machine and the simultaneous-open packet store.
func (e *Engine) HandleTCP(tuple transport.Tuple, ingress transport.Family, rawPacket []byte, syn, fin, rst bool, policy Policy, now time.Time) Outcome {
	table := e.Tables.Table(transport.L4TCP)

	if ingress == transport.FamilyV6 {
		v6pair := transport.Pair{Local: tuple.Src, Remote: tuple.Dst}
		if s := table.GetByV6(v6pair); s != nil {
			return e.advanceTCP(table, s, eventForFoundSession(s.TCPState, ingress, syn, fin, rst), policy, now)
		}
		if !syn {
			return dropWith("no TCP session and not a SYN")
		}
		b, err := e.bibForV6(table, transport.L4TCP, tuple.Src, tuple.Src.ID)
		if err != nil {
			return dropWith("pool4 exhausted")
		}
		v4Remote, err := e.Translator.To4(tuple.Dst.IP)
		if err != nil {
			return dropWith("v6-to-v4 translation failed")
		}
		s := &bib.Session{
			V6Pair: v6pair,
			V4Pair: transport.Pair{Local: b.V4, Remote: transport.Addr(v4Remote, tuple.Dst.ID)},
			Proto:  transport.L4TCP,
			Class:  bib.ClassTCPTrans,
			BIB:    b,
		}

		res, ok := tcpfsm.Transition(tcpfsm.Closed, tcpfsm.EventV6SYN)
		if !ok {
			return dropWith("undefined TCP transition")
		}
		s.TCPState = res.Next

		// A v4 SYN may already be waiting in the simultaneous-open store
		// for exactly the v4 5-tuple this BIB produces (spec.md §4.5):
		// resolve straight through to ESTABLISHED instead of sitting in
		// V6_INIT.
		storeKey := transport.Tuple{Src: s.V4Pair.Remote, Dst: s.V4Pair.Local, L3: transport.FamilyV4, Proto: transport.L4TCP}
		if e.Store.Cancel(storeKey) {
			if res2, ok2 := tcpfsm.Transition(s.TCPState, tcpfsm.EventV4SYNMatching); ok2 {
				s.TCPState = res2.Next
				res = res2
			}
		}
		if res.Timer == tcpfsm.TimerTCPEst {
			s.Class = bib.ClassTCPEst
		}
		if err := table.AddSession(s, now); err != nil {
			return dropWith("session already exists")
		}
		return continueWith(s)
	}

	// Ingress v4.
	if s := table.GetByV4(transport.Pair{Local: tuple.Dst, Remote: tuple.Src}); s != nil {
		return e.advanceTCP(table, s, eventForFoundSession(s.TCPState, ingress, syn, fin, rst), policy, now)
	}
	if !syn {
		return dropWith("no TCP session and not a SYN")
	}
	if policy.DropExternalTCP {
		return dropWith("drop-external-tcp")
	}
	if e.Store.Add(tuple, rawPacket, now) {
		return Outcome{Verdict: verdict.S("held pending simultaneous open")}
	}
	return dropWith("packet store exhausted")
}

// advanceTCP applies ev to s's state machine and performs the resulting
// action, returning the verdict the caller should hand the packet.
func (e *Engine) advanceTCP(table *bib.Table, s *bib.Session, ev tcpfsm.Event, policy Policy, now time.Time) Outcome {
	defer s.Release()

	res, ok := tcpfsm.Transition(s.TCPState, ev)
	if !ok {
		// Undefined event for this state: spec.md treats this as a no-op,
		// not a drop (e.g. a retransmitted SYN on an ESTABLISHED session).
		table.Touch(s, s.Class, now)
		return continueWith(s)
	}
	s.TCPState = res.Next
	if s.TCPState == tcpfsm.Established {
		s.ProbeCount = 0
	}

	switch res.Action {
	case tcpfsm.ActionCancelStoredPacket:
		e.Store.Cancel(transport.Tuple{Src: s.V4Pair.Remote, Dst: s.V4Pair.Local, L3: transport.FamilyV4, Proto: transport.L4TCP})
	}

	class := bib.ClassTCPTrans
	if res.Timer == tcpfsm.TimerTCPEst {
		class = bib.ClassTCPEst
	}
	table.Touch(s, class, now)

	if tcpfsm.Terminal(s.TCPState) {
		table.DeleteSession(s)
	}

	return continueWith(s)
}
