// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
}

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	cfg := Default()
	require.Len(t, cfg.Pool6, 1)
	assert.Equal(t, "64:ff9b::", cfg.Pool6[0].Address)
	assert.Equal(t, 96, cfg.Pool6[0].Length)
	assert.Len(t, cfg.Pool4, 4)

	wantPlateaus := []int{65535, 32000, 17914, 8166, 4352, 2002, 1492, 1006, 508, 296, 68}
	assert.Equal(t, wantPlateaus, cfg.Translation.MTUPlateaus)
}

func TestValidateRejectsEmptyPools(t *testing.T) {
	cfg := Default()
	cfg.Pool6 = nil
	assert.Error(t, cfg.Validate(), "expected error for empty pool6")

	cfg = Default()
	cfg.Pool4 = nil
	assert.Error(t, cfg.Validate(), "expected error for empty pool4")
}

func TestValidateRejectsBadPrefixLength(t *testing.T) {
	cfg := Default()
	cfg.Pool6[0].Length = 100
	assert.Error(t, cfg.Validate(), "expected error for invalid prefix length")
}

func TestValidateRejectsNegativeTCPProbeRetries(t *testing.T) {
	cfg := Default()
	cfg.Timeouts.TCPProbeRetries = -1
	assert.Error(t, cfg.Validate(), "expected error for negative tcp_probe_retries")
}

func TestValidateRejectsUnsortedPlateaus(t *testing.T) {
	cfg := Default()
	cfg.Translation.MTUPlateaus = []int{68, 296, 1006}
	assert.Error(t, cfg.Validate(), "expected error for ascending plateau list")
}

func TestNormalizeDedupsAndSortsDescending(t *testing.T) {
	cfg := Default()
	cfg.Translation.MTUPlateaus = []int{500, 1500, 500, 68, 1500}
	cfg.Normalize()
	assert.Equal(t, []int{1500, 500, 68}, cfg.Translation.MTUPlateaus)
}

func TestToPolicyAndToTranslateConfig(t *testing.T) {
	cfg := Default()
	policy := cfg.ToPolicy()
	assert.Equal(t, "5m0s", policy.UDPTimeout.String())
	assert.Equal(t, 64, policy.MaxStoredPackets)
	assert.Equal(t, 3, policy.TCPProbeRetries)

	tc := cfg.ToTranslateConfig()
	assert.Equal(t, 1280, tc.MinIPv6MTU)
	assert.Len(t, tc.MTUPlateaus, len(cfg.Translation.MTUPlateaus))
}

func TestPool6PrefixesAndPool4Addresses(t *testing.T) {
	cfg := Default()
	prefixes := cfg.Pool6Prefixes()
	require.Len(t, prefixes, 1)
	assert.Equal(t, 96, prefixes[0].Length)

	addrs := cfg.Pool4Addresses()
	assert.Len(t, addrs, 4)
}

func TestCloneIsIndependent(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Pool4[0] = "10.0.0.1"
	clone.Translation.MTUPlateaus[0] = 9999
	assert.NotEqual(t, "10.0.0.1", cfg.Pool4[0], "Clone shared the Pool4 backing array")
	assert.NotEqual(t, 9999, cfg.Translation.MTUPlateaus[0], "Clone shared the MTUPlateaus backing array")
}
