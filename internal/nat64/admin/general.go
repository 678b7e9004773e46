// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package admin

import (
	"encoding/json"

	"nat64.dev/core/internal/config"
	nerrors "nat64.dev/core/internal/errors"
)

// GENERAL mode carries the whole administrator-mutable Config as JSON
// (spec.md §6 leaves payload encoding undefined beyond the header; JSON
// reuses Config's existing hcl/json struct tags instead of inventing a
// third schema alongside HCL and the binary POOL6/POOL4/BIB/SESSION
// formats).
func (s *Server) dispatchGeneral(op Operation, payload []byte) ([]byte, error) {
	switch op {
	case OpDisplay:
		cfg := s.Config.Snapshot()
		out, err := json.Marshal(cfg)
		if err != nil {
			return nil, nerrors.Wrap(err, nerrors.KindInternal, "admin: encode config")
		}
		return out, nil

	case OpUpdate:
		next := s.Config.Snapshot().Clone()
		if err := json.Unmarshal(payload, next); err != nil {
			return nil, nerrors.Wrap(err, nerrors.KindInvalidArgument, "admin: decode config")
		}
		next.Normalize()
		if err := next.Validate(); err != nil {
			return nil, err
		}
		s.Config.Swap(next)
		if s.OnConfigUpdate != nil {
			s.OnConfigUpdate(next)
		}
		return nil, nil

	default:
		return nil, nerrors.New(nerrors.KindInvalidArgument, "admin: unsupported general operation")
	}
}
