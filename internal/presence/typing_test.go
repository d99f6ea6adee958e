package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypingStartRequiresRegisteredConn(t *testing.T) {
	registry := NewRegistry()
	tracker := NewTypingTracker(registry)

	err := tracker.Start("ghost", "alice", "bob")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestTypingStartStop(t *testing.T) {
	registry := NewRegistry()
	tracker := NewTypingTracker(registry)
	require.NoError(t, registry.Register(newFakeConn("conn-1", "alice")))

	require.NoError(t, tracker.Start("conn-1", "alice", "bob"))
	assert.Equal(t, 1, tracker.Active())

	indicator, ok := tracker.Stop("conn-1")
	require.True(t, ok)
	assert.Equal(t, "alice", indicator.UserUuid)
	assert.Equal(t, "bob", indicator.PeerUuid)
	assert.Equal(t, 0, tracker.Active())
}

func TestTypingStopWithoutStartIsNoop(t *testing.T) {
	tracker := NewTypingTracker(NewRegistry())

	_, ok := tracker.Stop("conn-1")
	assert.False(t, ok)
}

func TestTypingRestartOverwritesPeer(t *testing.T) {
	registry := NewRegistry()
	tracker := NewTypingTracker(registry)
	require.NoError(t, registry.Register(newFakeConn("conn-1", "alice")))

	require.NoError(t, tracker.Start("conn-1", "alice", "bob"))
	require.NoError(t, tracker.Start("conn-1", "alice", "carol"))
	assert.Equal(t, 1, tracker.Active())

	indicator, ok := tracker.Stop("conn-1")
	require.True(t, ok)
	assert.Equal(t, "carol", indicator.PeerUuid)
}
