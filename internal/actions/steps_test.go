package actions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botscript.ai/internal/protocol"
	"botscript.ai/internal/sim/world"
)

func TestWalkTo(t *testing.T) {
	e := newEnv(t)
	target := world.Vec3i{X: 4, Z: 3}
	ok := e.outcome(t, 30, func(ctx context.Context) (bool, error) { return e.a.WalkTo(ctx, target, 0) })
	require.True(t, ok)

	pos, _ := e.w.AgentPos("bot")
	assert.Equal(t, target, pos)
	recs := e.rec.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "walk_to", recs[0].Step)
	assert.True(t, recs[0].OK)
	assert.NotEmpty(t, recs[0].TaskID)
	assert.Equal(t, uint64(7), recs[0].EndTick-recs[0].StartTick)
}

func TestWalkToAlreadyThere(t *testing.T) {
	e := newEnv(t)
	ok, err := e.a.WalkTo(context.Background(), world.Vec3i{X: 1}, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, e.pollers())
}

func TestWalkToUnreachableTimesOut(t *testing.T) {
	e := newEnv(t)
	for _, p := range []world.Vec3i{{X: 1}, {X: -1}, {Z: 1}, {Z: -1}} {
		e.w.Block(p)
	}
	ok := e.outcome(t, 40, func(ctx context.Context) (bool, error) { return e.a.WalkTo(ctx, world.Vec3i{X: 4}, 0) })
	require.False(t, ok)

	rec := e.rec.Records()[0]
	assert.Equal(t, "timeout", rec.Reason)
	assert.Equal(t, uint64(WalkTimeout(4)), rec.EndTick-rec.StartTick)
	assert.Equal(t, 0, e.pollers())
}

func TestPreconditionsFailWithoutSuspending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	cases := map[string]func() (bool, error){
		"walk negative tolerance": func() (bool, error) { return e.a.WalkTo(ctx, world.Vec3i{X: 9}, -1) },
		"interact unknown":        func() (bool, error) { return e.a.Interact(ctx, "nowhere") },
		"interact out of range":   func() (bool, error) { return e.a.Interact(ctx, "bank") },
		"close nothing open":      func() (bool, error) { return e.a.CloseInterface(ctx) },
		"deposit nothing open":    func() (bool, error) { return e.a.Deposit(ctx, "LOG", 1) },
		"deposit all none":        func() (bool, error) { return e.a.DepositAll(ctx, "GOLD") },
		"withdraw nothing open":   func() (bool, error) { return e.a.Withdraw(ctx, "LOG", 1) },
		"equip missing item":      func() (bool, error) { return e.a.Equip(ctx, "IRON_HELMET") },
		"unequip empty slot":      func() (bool, error) { return e.a.Unequip(ctx, protocol.SlotHead) },
		"buy no shop":             func() (bool, error) { return e.a.Buy(ctx, "BREAD", 1) },
		"sell no shop":            func() (bool, error) { return e.a.Sell(ctx, "LOG", 1) },
		"choose no dialogue":      func() (bool, error) { return e.a.ChooseDialogue(ctx, "quest") },
		"say empty":               func() (bool, error) { return e.a.Say(ctx, "") },
		"wait nil predicate":      func() (bool, error) { return e.a.Wait(ctx, "nil", nil, 5) },
		"wait ticks zero":         func() (bool, error) { return e.a.WaitTicks(ctx, 0) },
		"bank deposit not a bank": func() (bool, error) { return e.a.BankDeposit(ctx, "chest", "LOG", 1) },
		"buy and equip not shop":  func() (bool, error) { return e.a.BuyAndEquip(ctx, "bank", "BREAD") },
		"talk not an npc":         func() (bool, error) { return e.a.Talk(ctx, "shop", "hi") },
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			ok, err := fn()
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Equal(t, 0, e.pollers())
			assert.Equal(t, 0, e.w.Pending(), "no input may be emitted")
		})
	}
	for _, r := range e.rec.Records() {
		assert.False(t, r.OK)
		assert.NotEmpty(t, r.Reason)
		assert.Equal(t, r.StartTick, r.EndTick)
	}
}

func TestContainerSteps(t *testing.T) {
	e := newEnv(t)
	ok := e.outcome(t, 20, func(ctx context.Context) (bool, error) {
		if ok, err := e.a.Interact(ctx, "chest"); !ok || err != nil {
			return ok, err
		}
		if ok, err := e.a.Deposit(ctx, "LOG", 3); !ok || err != nil {
			return ok, err
		}
		if ok, err := e.a.Withdraw(ctx, "LOG", 2); !ok || err != nil {
			return ok, err
		}
		if ok, err := e.a.Withdraw(ctx, "LOG", 2); ok || err != nil {
			return false, err
		}
		return e.a.DepositAll(ctx, "LOG")
	})
	require.True(t, ok)
	assert.Equal(t, 0, e.w.ItemCount("bot", "LOG"))
	assert.Equal(t, 6, e.w.ContainerCount("chest", "LOG"))
	assert.Equal(t, []string{"interact", "deposit", "withdraw", "withdraw", "deposit"}, e.rec.Steps())
}

func TestShopSteps(t *testing.T) {
	e := newEnv(t)
	ok := e.outcome(t, 30, func(ctx context.Context) (bool, error) {
		if ok, err := e.a.WalkTo(ctx, world.Vec3i{Z: -5}, 0); !ok || err != nil {
			return ok, err
		}
		if ok, err := e.a.Interact(ctx, "shop"); !ok || err != nil {
			return ok, err
		}
		if ok, err := e.a.Buy(ctx, "BREAD", 2); !ok || err != nil {
			return ok, err
		}
		return e.a.Sell(ctx, "BREAD", 1)
	})
	require.True(t, ok)
	assert.Equal(t, 1, e.w.ItemCount("bot", "BREAD"))
	assert.Equal(t, 25-10+3, e.w.Coins("bot"))
	assert.Equal(t, 4, e.w.ShopStock("shop", "BREAD"))
}

func TestSayAndWait(t *testing.T) {
	e := newEnv(t)
	ok := e.outcome(t, 20, func(ctx context.Context) (bool, error) {
		if ok, err := e.a.Say(ctx, "hello"); !ok || err != nil {
			return ok, err
		}
		// Repeating a line still observes the new message.
		return e.a.Say(ctx, "hello")
	})
	require.True(t, ok)
	assert.Equal(t, 2, e.w.ChatCount("bot"))

	ok = e.outcome(t, 20, func(ctx context.Context) (bool, error) { return e.a.WaitTicks(ctx, 5) })
	require.True(t, ok)
	ok = e.outcome(t, 20, func(ctx context.Context) (bool, error) {
		return e.a.Wait(ctx, "never", func() bool { return false }, 5)
	})
	require.False(t, ok)

	recs := e.rec.Records()
	require.Len(t, recs, 4)
	assert.Equal(t, uint64(5), recs[2].EndTick-recs[2].StartTick)
	assert.True(t, recs[2].OK)
	assert.Equal(t, uint64(5), recs[3].EndTick-recs[3].StartTick)
	assert.False(t, recs[3].OK)
}

func TestEquipSteps(t *testing.T) {
	e := newEnv(t)
	ok := e.outcome(t, 10, func(ctx context.Context) (bool, error) {
		if ok, err := e.a.Equip(ctx, "LOG"); !ok || err != nil {
			return ok, err
		}
		return e.a.Unequip(ctx, protocol.SlotMainHand)
	})
	require.True(t, ok)
	assert.Equal(t, "", e.w.Equipped("bot", protocol.SlotMainHand))
	assert.Equal(t, 6, e.w.ItemCount("bot", "LOG"))
}

func TestActorTimeoutBoundsOpenEndedWaits(t *testing.T) {
	e := newEnv(t)
	e.a.Timeout = 5
	ok := e.outcome(t, 20, func(ctx context.Context) (bool, error) {
		return e.a.Wait(ctx, "never", func() bool { return false }, 0)
	})
	require.False(t, ok)

	rec := e.rec.Records()[0]
	assert.Equal(t, "timeout", rec.Reason)
	assert.Equal(t, uint64(5), rec.EndTick-rec.StartTick)
}

func TestTicksElapsedIsRepeatable(t *testing.T) {
	e := newEnv(t)
	pred := e.a.ticksElapsed(2)
	for i := 0; i < 3; i++ {
		assert.False(t, pred(), "checking must not advance the count")
	}
	require.NoError(t, e.s.Advance(1))
	assert.False(t, pred())
	require.NoError(t, e.s.Advance(1))
	assert.True(t, pred())
	assert.True(t, pred())
}
