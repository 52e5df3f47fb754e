package actions

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"botscript.ai/internal/protocol"
	"botscript.ai/internal/sched"
	"botscript.ai/internal/script"
	"botscript.ai/internal/sim/world"
)

type env struct {
	s   *sched.TickScheduler
	w   *world.World
	d   *script.Dispatcher
	rec *Memory
	a   *Actor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	s := sched.New()
	w := world.New(world.WorldConfig{
		ID:           "actions",
		StarterCoins: 25,
		Items: map[string]world.ItemDef{
			"IRON_HELMET": {Slot: protocol.SlotHead, Price: 20},
			"BREAD":       {Price: 5},
		},
	})
	require.NoError(t, w.Setup(world.Layout{
		Agents: []*world.Agent{{ID: "bot", Inventory: map[string]int{"LOG": 6}}},
		Containers: []*world.Container{
			{ID: "bank", Type: world.ContainerBank, Pos: world.Vec3i{X: 8}},
			{ID: "chest", Type: world.ContainerChest, Pos: world.Vec3i{X: 1}},
		},
		Shops: []*world.Shop{{ID: "shop", Pos: world.Vec3i{Z: -6}, Stock: map[string]int{"IRON_HELMET": 1, "BREAD": 5}}},
		NPCs: []*world.NPC{{
			ID:  "guide",
			Pos: world.Vec3i{X: -5},
			Nodes: map[string]world.DialogueNode{
				world.DialogueStart: {Options: []world.DialogueOption{{ID: "quest", Next: "quest"}, {ID: "bye"}}},
				"quest":             {Options: []world.DialogueOption{{ID: "accept", SetFlag: "quest"}}},
			},
		}},
	}))
	s.RunEveryTick(w)
	rec := &Memory{}
	return &env{s: s, w: w, d: script.NewDispatcher(s), rec: rec, a: New("bot", w, s, zerolog.Nop(), rec)}
}

// script runs body as a task and ticks until it finishes.
func (e *env) script(t *testing.T, limit int, body script.Body) *script.Handle {
	t.Helper()
	h := script.NewHandle("bot", e.d, body)
	require.True(t, h.Start())
	for i := 0; i < limit && !h.IsDone(); i++ {
		require.NoError(t, e.s.Tick())
	}
	require.True(t, h.IsDone(), "script still running after %d ticks", limit)
	return h
}

// outcome runs a single helper call as a script and returns its result.
func (e *env) outcome(t *testing.T, limit int, fn func(ctx context.Context) (bool, error)) bool {
	t.Helper()
	var ok bool
	h := e.script(t, limit, func(ctx context.Context) error {
		var err error
		ok, err = fn(ctx)
		return err
	})
	require.NoError(t, h.Err())
	return ok
}

func (e *env) pollers() int { return e.s.Stats().EveryTick - 1 }
