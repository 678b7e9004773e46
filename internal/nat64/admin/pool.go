// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package admin

import (
	"encoding/binary"
	"net/netip"

	nerrors "nat64.dev/core/internal/errors"
	"nat64.dev/core/internal/nat64/xlat"
)

// POOL6 wire entry: {length u8, address[16]}.
const pool6EntryLen = 1 + 16

func (s *Server) dispatchPool6(op Operation, payload []byte) ([]byte, error) {
	switch op {
	case OpDisplay:
		var out []byte
		for _, p := range s.Pool6.List() {
			entry := make([]byte, pool6EntryLen)
			entry[0] = byte(p.Length)
			raw := p.Addr.As16()
			copy(entry[1:], raw[:])
			out = append(out, entry...)
		}
		return out, nil

	case OpCount:
		out := make([]byte, 4)
		binary.BigEndian.PutUint32(out, uint32(len(s.Pool6.List())))
		return out, nil

	case OpAdd:
		prefix, err := decodePool6Entry(payload)
		if err != nil {
			return nil, err
		}
		if !s.Pool6.Add(prefix) {
			return nil, nerrors.New(nerrors.KindExists, "admin: pool6 prefix already present")
		}
		return nil, nil

	case OpRemove:
		prefix, err := decodePool6Entry(payload)
		if err != nil {
			return nil, err
		}
		if !s.Pool6.Remove(prefix) {
			return nil, nerrors.New(nerrors.KindNotFound, "admin: pool6 prefix not found")
		}
		return nil, nil

	case OpFlush:
		n := s.Pool6.Flush()
		out := make([]byte, 4)
		binary.BigEndian.PutUint32(out, uint32(n))
		return out, nil

	default:
		return nil, nerrors.New(nerrors.KindInvalidArgument, "admin: unsupported pool6 operation")
	}
}

func decodePool6Entry(payload []byte) (xlat.Prefix, error) {
	if len(payload) < pool6EntryLen {
		return xlat.Prefix{}, nerrors.New(nerrors.KindInvalidArgument, "admin: short pool6 payload")
	}
	var raw [16]byte
	copy(raw[:], payload[1:pool6EntryLen])
	return xlat.Prefix{Addr: netip.AddrFrom16(raw), Length: int(payload[0])}, nil
}

// POOL4 wire entry: {address[4]}.
const pool4EntryLen = 4

func (s *Server) dispatchPool4(op Operation, payload []byte) ([]byte, error) {
	switch op {
	case OpDisplay:
		var out []byte
		for _, a := range s.Pool4.Addresses() {
			raw := a.As4()
			out = append(out, raw[:]...)
		}
		return out, nil

	case OpCount:
		out := make([]byte, 4)
		binary.BigEndian.PutUint32(out, uint32(len(s.Pool4.Addresses())))
		return out, nil

	case OpAdd:
		addr, err := decodePool4Entry(payload)
		if err != nil {
			return nil, err
		}
		s.Pool4.Add(addr)
		return nil, nil

	case OpRemove:
		addr, err := decodePool4Entry(payload)
		if err != nil {
			return nil, err
		}
		if !s.Pool4.Remove(addr) {
			return nil, nerrors.New(nerrors.KindNotFound, "admin: pool4 address not found")
		}
		return nil, nil

	case OpFlush:
		n := s.Pool4.Flush()
		out := make([]byte, 4)
		binary.BigEndian.PutUint32(out, uint32(n))
		return out, nil

	default:
		return nil, nerrors.New(nerrors.KindInvalidArgument, "admin: unsupported pool4 operation")
	}
}

func decodePool4Entry(payload []byte) (netip.Addr, error) {
	if len(payload) < pool4EntryLen {
		return netip.Addr{}, nerrors.New(nerrors.KindInvalidArgument, "admin: short pool4 payload")
	}
	var raw [4]byte
	copy(raw[:], payload[:pool4EntryLen])
	return netip.AddrFrom4(raw), nil
}
