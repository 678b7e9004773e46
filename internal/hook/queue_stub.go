// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux

package hook

import (
	"context"
	"fmt"

	"nat64.dev/core/internal/logging"
)

// NFQueue is a stub for non-Linux systems; NFQUEUE is a Linux-only
// netfilter mechanism.
type NFQueue struct{}

// NewNFQueue always fails on non-Linux systems.
func NewNFQueue(num uint16, maxQueueLen uint32, log *logging.Logger) (*NFQueue, error) {
	return nil, fmt.Errorf("hook: NFQUEUE is only supported on Linux")
}

// Run never succeeds on the stub.
func (q *NFQueue) Run(ctx context.Context, h Handler) error {
	return fmt.Errorf("hook: NFQUEUE is only supported on Linux")
}

// Close is a no-op on the stub.
func (q *NFQueue) Close() error { return nil }
