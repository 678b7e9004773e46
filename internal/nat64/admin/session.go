// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package admin

import (
	"encoding/binary"
	"sort"

	nerrors "nat64.dev/core/internal/errors"
	"nat64.dev/core/internal/nat64/bib"
)

// Session wire entry: {proto u8, v6local(18), v6remote(18), v4local(6),
// v4remote(6), tcp_state u8, update_time_unix i64} = 58 bytes.
const sessionEntryLen = 1 + v6AddrLen*2 + v4AddrLen*2 + 1 + 8

func (s *Server) dispatchSession(op Operation, payload []byte) ([]byte, error) {
	switch op {
	case OpCount:
		if len(payload) < 1 {
			return nil, nerrors.New(nerrors.KindInvalidArgument, "admin: short session count request")
		}
		proto, err := protoFromByte(payload[0])
		if err != nil {
			return nil, err
		}
		out := make([]byte, 4)
		binary.BigEndian.PutUint32(out, uint32(s.Tables.Table(proto).CountSessions()))
		return out, nil

	case OpDisplay:
		return s.displaySession(payload)

	default:
		return nil, nerrors.New(nerrors.KindInvalidArgument, "admin: unsupported session operation")
	}
}

func (s *Server) displaySession(payload []byte) ([]byte, error) {
	if len(payload) < 1+1+v4AddrLen {
		return nil, nerrors.New(nerrors.KindInvalidArgument, "admin: short session display request")
	}
	proto, err := protoFromByte(payload[0])
	if err != nil {
		return nil, err
	}
	iterate := payload[1] != 0
	cursor := getV4(payload[2 : 2+v4AddrLen])

	sessions := s.Tables.Table(proto).ListSessions()
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].V4Pair.Local.String() < sessions[j].V4Pair.Local.String()
	})

	start := 0
	if iterate {
		for i, sess := range sessions {
			if cursor.String() < sess.V4Pair.Local.String() {
				start = i
				break
			}
			start = i + 1
		}
	}

	end := start + displayChunkSize
	more := false
	if end < len(sessions) {
		more = true
	} else {
		end = len(sessions)
	}

	out := make([]byte, 1, 1+sessionEntryLen*(end-start))
	if more {
		out[0] = 1
	}
	for _, sess := range sessions[start:end] {
		out = append(out, encodeSession(sess)...)
	}
	return out, nil
}

func encodeSession(sess *bib.Session) []byte {
	entry := make([]byte, sessionEntryLen)
	i := 0
	entry[i] = protoByte(sess.Proto)
	i++
	putV6(entry[i:i+v6AddrLen], sess.V6Pair.Local)
	i += v6AddrLen
	putV6(entry[i:i+v6AddrLen], sess.V6Pair.Remote)
	i += v6AddrLen
	putV4(entry[i:i+v4AddrLen], sess.V4Pair.Local)
	i += v4AddrLen
	putV4(entry[i:i+v4AddrLen], sess.V4Pair.Remote)
	i += v4AddrLen
	entry[i] = byte(sess.TCPState)
	i++
	binary.BigEndian.PutUint64(entry[i:i+8], uint64(sess.UpdateTime.Unix()))
	return entry
}
