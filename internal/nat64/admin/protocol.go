// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package admin implements the administrative protocol of spec.md §6: a
// length-prefixed binary request/response framing over a Unix domain
// socket, driving DISPLAY/COUNT/ADD/UPDATE/REMOVE/FLUSH across the
// IPv6 pool, IPv4 pool, BIB, session and general-configuration modes.
package admin

import (
	"encoding/binary"
	"io"

	nerrors "nat64.dev/core/internal/errors"
)

// Mode is the bit-flag mode field of request_hdr (spec.md §6).
type Mode uint8

const (
	ModeGeneral Mode = 1 << 0
	ModePool6   Mode = 1 << 1
	ModePool4   Mode = 1 << 2
	ModeBIB     Mode = 1 << 3
	ModeSession Mode = 1 << 4
)

// Operation is the bit-flag operation field of request_hdr.
type Operation uint8

const (
	OpDisplay Operation = 1 << 0
	OpCount   Operation = 1 << 1
	OpAdd     Operation = 1 << 2
	OpUpdate  Operation = 1 << 3
	OpRemove  Operation = 1 << 4
	OpFlush   Operation = 1 << 5
)

// allowedOps enumerates spec.md §6's mode/operation combination table.
var allowedOps = map[Mode]Operation{
	ModePool6:   OpDisplay | OpCount | OpAdd | OpRemove | OpFlush,
	ModePool4:   OpDisplay | OpCount | OpAdd | OpRemove | OpFlush,
	ModeBIB:     OpDisplay | OpCount | OpAdd | OpRemove,
	ModeSession: OpDisplay | OpCount,
	ModeGeneral: OpDisplay | OpUpdate,
}

// Allowed reports whether op is valid for mode.
func Allowed(mode Mode, op Operation) bool {
	ops, ok := allowedOps[mode]
	return ok && ops&op != 0
}

// requestHdr is spec.md §6's request_hdr: {length u32, mode u8, operation u8}.
const requestHdrLen = 4 + 1 + 1

type requestHdr struct {
	Length uint32
	Mode   Mode
	Op     Operation
}

// readRequest reads one framed request from r: the header followed by
// length-6 bytes of mode/operation-specific payload.
func readRequest(r io.Reader) (requestHdr, []byte, error) {
	var buf [requestHdrLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return requestHdr{}, nil, err
	}
	hdr := requestHdr{
		Length: binary.BigEndian.Uint32(buf[0:4]),
		Mode:   Mode(buf[4]),
		Op:     Operation(buf[5]),
	}
	if hdr.Length < requestHdrLen {
		return requestHdr{}, nil, nerrors.New(nerrors.KindInvalidArgument, "admin: request length shorter than header")
	}
	payload := make([]byte, hdr.Length-requestHdrLen)
	if len(payload) > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return requestHdr{}, nil, err
		}
	}
	return hdr, payload, nil
}

// responseHdr mirrors requestHdr but carries a status code in place of
// mode: {length u32, status u8, operation u8}. status 0 means success;
// any other value is 1 + a nerrors.Kind ordinal (spec.md §7's
// administrative error codes); see statusCode.
type responseHdr struct {
	Status uint8
	Op     Operation
}

func writeResponse(w io.Writer, hdr responseHdr, payload []byte) error {
	buf := make([]byte, requestHdrLen+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(requestHdrLen+len(payload)))
	buf[4] = hdr.Status
	buf[5] = byte(hdr.Op)
	copy(buf[requestHdrLen:], payload)
	_, err := w.Write(buf)
	return err
}

// statusCode maps an error to the single-byte status a response carries.
// 0 is reserved for success; everything else is 1 + the error's Kind
// ordinal so a client that only understands "zero means ok" still works.
func statusCode(err error) uint8 {
	if err == nil {
		return 0
	}
	return uint8(nerrors.GetKind(err)) + 1
}
