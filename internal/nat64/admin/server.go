// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package admin

import (
	"context"
	"net"

	"nat64.dev/core/internal/config"
	"nat64.dev/core/internal/logging"
	"nat64.dev/core/internal/nat64/bib"
	nerrors "nat64.dev/core/internal/errors"
	"nat64.dev/core/internal/nat64/pool4"
	"nat64.dev/core/internal/nat64/pool6"
)

// Server is the administrative protocol's dispatch target: the one
// process-wide handle on the tables, pools and configuration every
// GENERAL/POOL6/POOL4/BIB/SESSION request eventually reaches. Grounded
// on the general shape of the teacher's internal/ctlplane.Server — a
// struct holding every subsystem the control plane can touch — narrowed
// to spec.md §6's mode table instead of ctlplane's much larger net/rpc
// surface.
type Server struct {
	Tables *bib.Manager
	Pool4  *pool4.Pool
	Pool6  *pool6.Pool
	Config *config.Store
	Log    *logging.Logger

	// OnConfigUpdate, if set, is called with the newly installed
	// configuration after a successful GENERAL UPDATE, so callers can
	// reconfigure collaborators (e.g. re-seed Pool4/Pool6 if the admin
	// also changed the pool lists) outside of the config.Store swap
	// itself.
	OnConfigUpdate func(*config.Config)
}

// NewServer builds a Server from its collaborators.
func NewServer(tables *bib.Manager, p4 *pool4.Pool, p6 *pool6.Pool, cfg *config.Store, log *logging.Logger) *Server {
	if log == nil {
		log = logging.New("admin")
	}
	return &Server{Tables: tables, Pool4: p4, Pool6: p6, Config: cfg, Log: log}
}

// ListenAndServe accepts connections on a Unix domain socket at path
// until ctx is cancelled. Each connection may carry multiple
// sequential requests (spec.md §6 does not mandate one request per
// connection).
func (s *Server) ListenAndServe(ctx context.Context, path string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "unix", path)
	if err != nil {
		return nerrors.Wrap(err, nerrors.KindInternal, "admin: listen failed")
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return nerrors.Wrap(err, nerrors.KindInternal, "admin: accept failed")
			}
		}
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	for {
		hdr, payload, err := readRequest(conn)
		if err != nil {
			return
		}
		if !Allowed(hdr.Mode, hdr.Op) {
			_ = writeResponse(conn, responseHdr{Status: statusCode(nerrors.New(nerrors.KindInvalidArgument, "")), Op: hdr.Op}, nil)
			continue
		}
		resp, err := s.dispatch(hdr.Mode, hdr.Op, payload)
		if err != nil {
			s.Log.Debugf("admin: request mode=%d op=%d failed: %v", hdr.Mode, hdr.Op, err)
		}
		if werr := writeResponse(conn, responseHdr{Status: statusCode(err), Op: hdr.Op}, resp); werr != nil {
			return
		}
	}
}

func (s *Server) dispatch(mode Mode, op Operation, payload []byte) ([]byte, error) {
	switch mode {
	case ModePool6:
		return s.dispatchPool6(op, payload)
	case ModePool4:
		return s.dispatchPool4(op, payload)
	case ModeBIB:
		return s.dispatchBIB(op, payload)
	case ModeSession:
		return s.dispatchSession(op, payload)
	case ModeGeneral:
		return s.dispatchGeneral(op, payload)
	default:
		return nil, nerrors.New(nerrors.KindInvalidArgument, "admin: unknown mode")
	}
}
