// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux

package linklayer

import (
	"net"

	nerrors "nat64.dev/core/internal/errors"
)

// Writer is a stub for non-Linux systems; AF_PACKET is Linux-only.
type Writer struct{}

// NewWriter always fails on non-Linux systems.
func NewWriter(ifaceName string, nextHop net.HardwareAddr) (*Writer, error) {
	return nil, nerrors.New(nerrors.KindInternal, "linklayer: raw socket writer is only supported on Linux")
}

// WriteV4 always fails on the stub.
func (w *Writer) WriteV4(pkt []byte) error {
	return nerrors.New(nerrors.KindInternal, "linklayer: unsupported platform")
}

// WriteV6 always fails on the stub.
func (w *Writer) WriteV6(pkt []byte) error {
	return nerrors.New(nerrors.KindInternal, "linklayer: unsupported platform")
}

// Close is a no-op on the stub.
func (w *Writer) Close() error { return nil }
