// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreLoadReleaseRoundTrip(t *testing.T) {
	s := NewStore(Default())
	h := s.Load()
	assert.Equal(t, "/var/run/natcored.sock", h.Config().AdminSocket)
	h.Release()
}

func TestStoreSwapInstallsNewSnapshot(t *testing.T) {
	s := NewStore(Default())
	next := Default()
	next.AdminSocket = "/tmp/other.sock"
	s.Swap(next)

	h := s.Load()
	defer h.Release()
	assert.Equal(t, "/tmp/other.sock", h.Config().AdminSocket, "Load returned stale snapshot")
}

func TestStoreSwapWaitsForOutstandingReaders(t *testing.T) {
	s := NewStore(Default())
	h := s.Load()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Swap(Default())
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Swap returned before the outstanding reader released its handle")
	default:
	}

	h.Release()
	wg.Wait()
}

func TestStoreConcurrentLoadAndSwap(t *testing.T) {
	s := NewStore(Default())
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				h := s.Load()
				_ = h.Config()
				h.Release()
			}
		}()
	}

	for i := 0; i < 20; i++ {
		cfg := Default()
		cfg.Queue.MaxStoredPackets = i + 1
		s.Swap(cfg)
	}
	close(stop)
	wg.Wait()
}
