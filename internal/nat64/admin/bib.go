// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package admin

import (
	"encoding/binary"
	"sort"

	nerrors "nat64.dev/core/internal/errors"
	"nat64.dev/core/internal/nat64/bib"
)

// BIB wire entry: {proto u8, v6(18), v4(6), is_static u8} = 26 bytes.
const bibEntryLen = 1 + v6AddrLen + v4AddrLen + 1

// displayChunkSize bounds how many BIB/session entries one DISPLAY
// response carries before reporting more=1 and expecting a follow-up
// request with an updated cursor (spec.md §6).
const displayChunkSize = 256

func (s *Server) dispatchBIB(op Operation, payload []byte) ([]byte, error) {
	switch op {
	case OpCount:
		if len(payload) < 1 {
			return nil, nerrors.New(nerrors.KindInvalidArgument, "admin: short bib count request")
		}
		proto, err := protoFromByte(payload[0])
		if err != nil {
			return nil, err
		}
		out := make([]byte, 4)
		binary.BigEndian.PutUint32(out, uint32(s.Tables.Table(proto).CountBIB()))
		return out, nil

	case OpDisplay:
		return s.displayBIB(payload)

	case OpAdd:
		return nil, s.addBIB(payload)

	case OpRemove:
		return nil, s.removeBIB(payload)

	default:
		return nil, nerrors.New(nerrors.KindInvalidArgument, "admin: unsupported bib operation")
	}
}

func (s *Server) displayBIB(payload []byte) ([]byte, error) {
	if len(payload) < 1+1+v4AddrLen {
		return nil, nerrors.New(nerrors.KindInvalidArgument, "admin: short bib display request")
	}
	proto, err := protoFromByte(payload[0])
	if err != nil {
		return nil, err
	}
	iterate := payload[1] != 0
	cursor := getV4(payload[2 : 2+v4AddrLen])

	entries := s.Tables.Table(proto).ListBIB()
	sort.Slice(entries, func(i, j int) bool {
		return lessAddress(entries[i].V4, entries[j].V4)
	})

	start := 0
	if iterate {
		for i, e := range entries {
			if lessAddress(cursor, e.V4) {
				start = i
				break
			}
			start = i + 1
		}
	}

	end := start + displayChunkSize
	more := false
	if end < len(entries) {
		more = true
	} else {
		end = len(entries)
	}

	out := make([]byte, 1, 1+bibEntryLen*(end-start))
	if more {
		out[0] = 1
	}
	for _, e := range entries[start:end] {
		entry := make([]byte, bibEntryLen)
		entry[0] = protoByte(e.Proto)
		putV6(entry[1:1+v6AddrLen], e.V6)
		putV4(entry[1+v6AddrLen:1+v6AddrLen+v4AddrLen], e.V4)
		if e.IsStatic {
			entry[bibEntryLen-1] = 1
		}
		out = append(out, entry...)
	}
	return out, nil
}

func lessAddress(a, b interface{ String() string }) bool {
	return a.String() < b.String()
}

func (s *Server) addBIB(payload []byte) error {
	if len(payload) < 1+v6AddrLen+v4AddrLen {
		return nerrors.New(nerrors.KindInvalidArgument, "admin: short bib add request")
	}
	proto, err := protoFromByte(payload[0])
	if err != nil {
		return err
	}
	v6 := getV6(payload[1 : 1+v6AddrLen])
	v4 := getV4(payload[1+v6AddrLen : 1+v6AddrLen+v4AddrLen])

	if !s.Pool4.Reserve(proto, v4) {
		return nerrors.New(nerrors.KindExists, "admin: requested v4 transport address already allocated")
	}
	entry := &bib.BIBEntry{V6: v6, V4: v4, Proto: proto, IsStatic: true}
	if err := s.Tables.Table(proto).AddBIB(entry); err != nil {
		s.Pool4.Release(proto, v4)
		return err
	}
	return nil
}

func (s *Server) removeBIB(payload []byte) error {
	if len(payload) < 1+v4AddrLen {
		return nerrors.New(nerrors.KindInvalidArgument, "admin: short bib remove request")
	}
	proto, err := protoFromByte(payload[0])
	if err != nil {
		return err
	}
	v4 := getV4(payload[1 : 1+v4AddrLen])

	table := s.Tables.Table(proto)
	entry := table.BIBByV4(v4)
	if entry == nil {
		return nerrors.New(nerrors.KindNotFound, "admin: no bib entry for that v4 transport address")
	}
	table.DeleteByBIB(entry)
	s.Pool4.Release(proto, v4)
	return nil
}
