package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botscript.ai/internal/protocol"
)

func moveTo(agent string, target Vec3i, tol float64) protocol.ActMsg {
	return protocol.NewAct(agent, 0, nil, []protocol.TaskReq{{ID: "m", Type: protocol.TaskMoveTo, Target: target.ToArray(), Tolerance: tol}})
}

func TestMoveOneBlockPerTick(t *testing.T) {
	w := newTestWorld(t)
	require.NoError(t, w.Submit(moveTo("bot", Vec3i{X: 3, Z: -2}, 0)))

	for tick := uint64(1); tick <= 5; tick++ {
		w.RunTick(tick)
		pos, _ := w.AgentPos("bot")
		assert.Equal(t, int(tick), DistXZ(pos, Vec3i{}), "tick %d", tick)
	}
	pos, _ := w.AgentPos("bot")
	assert.Equal(t, Vec3i{X: 3, Z: -2}, pos)
	assert.False(t, w.Moving("bot"))
}

func TestMoveStopsWithinTolerance(t *testing.T) {
	w := newTestWorld(t)
	require.NoError(t, w.Submit(moveTo("bot", Vec3i{X: 6}, 1.5)))
	for tick := uint64(1); tick <= 10; tick++ {
		w.RunTick(tick)
	}
	pos, _ := w.AgentPos("bot")
	assert.Equal(t, Vec3i{X: 4}, pos)
}

func TestMoveAroundObstacle(t *testing.T) {
	w := newTestWorld(t)
	w.Block(Vec3i{X: 1})
	w.Block(Vec3i{X: 1, Z: -1})
	require.NoError(t, w.Submit(moveTo("bot", Vec3i{X: 4}, 0)))
	for tick := uint64(1); tick <= 12; tick++ {
		w.RunTick(tick)
		pos, _ := w.AgentPos("bot")
		require.False(t, w.isBlocked(pos))
	}
	pos, _ := w.AgentPos("bot")
	assert.Equal(t, Vec3i{X: 4}, pos)
}

func TestMoveFailsWhenBoxedIn(t *testing.T) {
	w := newTestWorld(t)
	for _, p := range []Vec3i{{X: 1}, {X: -1}, {Z: 1}, {Z: -1}} {
		w.Block(p)
	}
	require.NoError(t, w.Submit(moveTo("bot", Vec3i{X: 4}, 0)))
	w.RunTick(1)
	assert.False(t, w.Moving("bot"))

	var failed bool
	for _, e := range w.TakeEvents("bot") {
		if e["type"] == "TASK_FAIL" {
			failed = true
			assert.Equal(t, protocol.ErrBlocked, e["code"])
		}
	}
	assert.True(t, failed)
}

func TestMoveRejectsOutOfBounds(t *testing.T) {
	w := New(WorldConfig{BoundaryR: 5})
	require.NoError(t, w.AddAgent(&Agent{ID: "bot"}))
	require.NoError(t, w.Submit(moveTo("bot", Vec3i{X: 9}, 0)))
	w.RunTick(1)
	assert.False(t, w.Moving("bot"))
	e, ok := w.LastRejection("bot")
	require.True(t, ok)
	assert.Equal(t, protocol.ErrInvalidTarget, e.Code)
}

func TestStopCancelsMove(t *testing.T) {
	w := newTestWorld(t)
	require.NoError(t, w.Submit(moveTo("bot", Vec3i{X: 8}, 0)))
	w.RunTick(1)
	require.True(t, w.Moving("bot"))
	require.NoError(t, w.Submit(protocol.NewAct("bot", 1, nil, []protocol.TaskReq{{Type: protocol.TaskStop}})))
	w.RunTick(2)
	assert.False(t, w.Moving("bot"))
	pos, _ := w.AgentPos("bot")
	assert.Equal(t, Vec3i{X: 1}, pos)
}
