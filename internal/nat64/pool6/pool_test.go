// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package pool6

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nat64.dev/core/internal/nat64/xlat"
)

func TestDefaultPool(t *testing.T) {
	p := Default()
	prefix, ok := p.Primary()
	require.True(t, ok, "expected default pool to be non-empty")
	assert.Equal(t, 96, prefix.Length)
	assert.Equal(t, wellKnown, prefix.Addr)
}

func TestAddRemoveFlush(t *testing.T) {
	p := New()
	pfx := xlat.Prefix{Addr: wellKnown, Length: 96}
	require.True(t, p.Add(pfx), "expected add to succeed")
	assert.False(t, p.Add(pfx), "expected duplicate add to fail")
	assert.Len(t, p.List(), 1)
	require.True(t, p.Remove(pfx), "expected remove to succeed")
	assert.False(t, p.Remove(pfx), "expected second remove to fail")

	p.Add(pfx)
	assert.Equal(t, 1, p.Flush())
	assert.Empty(t, p.List(), "expected pool to be empty after flush")
}
