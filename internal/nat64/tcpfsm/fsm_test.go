// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tcpfsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimultaneousOpenV6First(t *testing.T) {
	res, ok := Transition(Closed, EventV6SYN)
	require.True(t, ok)
	require.Equal(t, V6Init, res.Next)

	res, ok = Transition(V6Init, EventV4SYNMatching)
	require.True(t, ok)
	assert.Equal(t, Established, res.Next)
	assert.Equal(t, TimerTCPEst, res.Timer)
}

func TestSimultaneousOpenV4First(t *testing.T) {
	res, ok := Transition(Closed, EventV4SYN)
	require.True(t, ok)
	assert.Equal(t, V4Init, res.Next)
	assert.Equal(t, ActionStorePacket, res.Action)

	res, ok = Transition(V4Init, EventV6SYNMatching)
	require.True(t, ok)
	assert.Equal(t, Established, res.Next)
	assert.Equal(t, ActionCancelStoredPacket, res.Action)
}

func TestV4InitExpiryEmitsUnreachable(t *testing.T) {
	res, ok := Transition(V4Init, EventExpiry)
	require.True(t, ok)
	assert.Equal(t, Closed, res.Next)
	assert.Equal(t, ActionEmitUnreachable, res.Action)
}

func TestEstablishedExpiryProbesAndKeeps(t *testing.T) {
	res, ok := Transition(Established, EventExpiry)
	require.True(t, ok)
	assert.Equal(t, Trans, res.Next)
	assert.Equal(t, ActionEmitProbe, res.Action)
	assert.NotEqual(t, ActionRemove, res.Action, "ESTABLISHED expiry must not remove the session")
}

func TestFinExchange(t *testing.T) {
	res, _ := Transition(Established, EventV4FIN)
	require.Equal(t, V4FinRcv, res.Next)

	res, _ = Transition(res.Next, EventV6FIN)
	require.Equal(t, V4FinV6FinRcv, res.Next)
	require.Equal(t, TimerTCPTrans, res.Timer)

	res, ok := Transition(res.Next, EventExpiry)
	require.True(t, ok)
	assert.Equal(t, Closed, res.Next)
	assert.Equal(t, ActionRemove, res.Action)
}

func TestRSTFromAnyState(t *testing.T) {
	for _, s := range []State{Closed, V4Init, V6Init, Established, V4FinRcv, V6FinRcv, V4FinV6FinRcv, Trans} {
		res, ok := Transition(s, EventRST)
		require.True(t, ok, "state %v", s)
		assert.Equal(t, Trans, res.Next, "state %v", s)
		assert.Equal(t, TimerTCPTrans, res.Timer, "state %v", s)
	}
}

func TestTransDataReturnsToEstablished(t *testing.T) {
	res, ok := Transition(Trans, EventData)
	require.True(t, ok)
	assert.Equal(t, Established, res.Next)
	assert.Equal(t, TimerTCPEst, res.Timer)
}

func TestUndefinedTransitionIsNotOK(t *testing.T) {
	_, ok := Transition(Closed, EventData)
	assert.False(t, ok, "expected undefined transition to report ok=false")
}

func TestTerminal(t *testing.T) {
	assert.True(t, Terminal(Closed), "CLOSED must be terminal")
	assert.False(t, Terminal(Established), "ESTABLISHED must not be terminal")
}
