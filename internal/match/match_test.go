package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ft-transcendence/pong-core/internal/physics"
)

func TestSideAssignmentIsFixed(t *testing.T) {
	m := New("alice", "bob", "")

	side, ok := m.SideOf("alice")
	require.True(t, ok)
	assert.Equal(t, physics.SideLeft, side)

	side, ok = m.SideOf("bob")
	require.True(t, ok)
	assert.Equal(t, physics.SideRight, side)

	_, ok = m.SideOf("mallory")
	assert.False(t, ok, "outsiders must not resolve to a side")

	assert.Equal(t, "alice", m.PlayerOn(physics.SideLeft))
	assert.Equal(t, "bob", m.PlayerOn(physics.SideRight))
}

func TestFinishIsTerminalAndIdempotent(t *testing.T) {
	m := New("alice", "bob", "")

	require.True(t, m.Finish("alice", OutcomeScore, 5, 3))
	assert.False(t, m.Finish("bob", OutcomeWalkover, 0, 0), "second finish must be refused")
	assert.False(t, m.SetStatus(StatusRunning), "no transition out of finished")

	v := m.Snapshot()
	assert.Equal(t, StatusFinished, v.Status)
	assert.Equal(t, "alice", v.WinnerID)
	assert.Equal(t, OutcomeScore, v.Outcome)
	assert.Equal(t, 5, v.ScoreLeft)
	assert.Equal(t, 3, v.ScoreRight)
}

func TestScoreFrozenAfterFinish(t *testing.T) {
	m := New("alice", "bob", "")
	m.Finish("bob", OutcomeScore, 2, 5)
	m.SetScore(9, 9)
	v := m.Snapshot()
	assert.Equal(t, 2, v.ScoreLeft)
	assert.Equal(t, 5, v.ScoreRight)
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	m := r.Create("alice", "bob", "t1")

	got, ok := r.Get(m.ID)
	require.True(t, ok)
	assert.Same(t, m, got)
	assert.Equal(t, 1, r.Len())

	_, ok = r.Get("nope")
	assert.False(t, ok)

	r.Remove(m.ID)
	_, ok = r.Get(m.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}
