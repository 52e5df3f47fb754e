// Package actions composes world inputs into multi-step scripts.
//
// Every helper follows the same protocol: validate preconditions against the
// current world state (failing fast without suspending), emit one input,
// submit a condition poller that observes the expected change, await it and
// branch on the result. A false result is the normal failure outcome; errors
// are reserved for usage errors and context cancellation outside a task.
package actions

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/rs/zerolog"

	"botscript.ai/internal/protocol"
	"botscript.ai/internal/sched"
	"botscript.ai/internal/script"
	"botscript.ai/internal/sim/world"
)

// World is the state an actor reads and the input sink it writes to.
// Reads happen on the tick thread.
type World interface {
	Submit(act protocol.ActMsg) error
	CurrentTick() uint64
	InteractRange() int

	AgentPos(agentID string) (world.Vec3i, bool)
	ItemCount(agentID, item string) int
	Coins(agentID string) int
	OpenUI(agentID string) string
	Equipped(agentID, slot string) string
	SlotOf(item string) string
	DialogueOptions(agentID string) []string
	ChoiceCount(agentID string) int
	ChatCount(agentID string) int
	Moving(agentID string) bool

	EntityPos(id string) (world.Vec3i, bool)
	EntityKind(id string) string
	ContainerCount(containerID, item string) int
	ShopStock(shopID, item string) int
	ShopPrice(shopID, item string) (int, bool)
}

// Actor runs helpers on behalf of one agent. Use it by pointer.
type Actor struct {
	ID       string
	World    World
	Sched    sched.Scheduler
	Log      zerolog.Logger
	Recorder Recorder

	// Timeout bounds single-step waits that have no natural duration. Zero
	// selects script.DefaultTimeoutTicks.
	Timeout int

	seq atomic.Uint64
}

func New(id string, w World, s sched.Scheduler, log zerolog.Logger, rec Recorder) *Actor {
	return &Actor{ID: id, World: w, Sched: s, Log: log, Recorder: rec}
}

func (a *Actor) timeout() int {
	if a.Timeout > 0 {
		return a.Timeout
	}
	return script.DefaultTimeoutTicks
}

// step is one emit-and-observe unit.
type step struct {
	name    string
	detail  string
	act     *protocol.ActMsg
	pred    script.Predicate
	timeout int
}

func (a *Actor) logger(ctx context.Context, name string) zerolog.Logger {
	c := a.Log.With().Str("actor", a.ID).Str("step", name)
	if t := script.TaskFrom(ctx); t != nil {
		c = c.Str("task", t.ID())
	}
	return c.Logger()
}

func (a *Actor) nextRef(kind string) string {
	return a.ID + "-" + kind + "-" + strconv.FormatUint(a.seq.Add(1), 10)
}

func (a *Actor) instant(inst protocol.InstantReq) *protocol.ActMsg {
	inst.ID = a.nextRef("i")
	act := protocol.NewAct(a.ID, a.World.CurrentTick(), []protocol.InstantReq{inst}, nil)
	return &act
}

func (a *Actor) task(tr protocol.TaskReq) *protocol.ActMsg {
	tr.ID = a.nextRef("t")
	act := protocol.NewAct(a.ID, a.World.CurrentTick(), nil, []protocol.TaskReq{tr})
	return &act
}

// run emits the step's input, then waits for its predicate.
func (a *Actor) run(ctx context.Context, st step) (bool, error) {
	log := a.logger(ctx, st.name)
	start := a.World.CurrentTick()
	log.Info().Str("detail", st.detail).Int("timeout_ticks", st.timeout).Msg("attempting")

	if st.act != nil {
		if err := a.World.Submit(*st.act); err != nil {
			a.record(ctx, st.name, st.detail, start, false, err.Error())
			return false, fmt.Errorf("%s: submit: %w", st.name, err)
		}
	}
	ok, err := script.Wait(ctx, a.Sched, st.pred, st.timeout)
	reason := ""
	switch {
	case err != nil:
		reason = err.Error()
		log.Warn().Err(err).Msg("wait aborted")
	case !ok:
		reason = "timeout"
		log.Info().Uint64("ticks", a.World.CurrentTick()-start).Msg("step failed")
	default:
		log.Debug().Uint64("ticks", a.World.CurrentTick()-start).Msg("step done")
	}
	a.record(ctx, st.name, st.detail, start, ok, reason)
	return ok, err
}

// reject fails a step before any input is emitted.
func (a *Actor) reject(ctx context.Context, name, detail, reason string) (bool, error) {
	log := a.logger(ctx, name)
	log.Info().Str("detail", detail).Str("reason", reason).Msg("precondition failed")
	now := a.World.CurrentTick()
	a.record(ctx, name, detail, now, false, reason)
	return false, nil
}

// satisfied succeeds a step whose goal already holds.
func (a *Actor) satisfied(ctx context.Context, name, detail string) (bool, error) {
	log := a.logger(ctx, name)
	log.Debug().Str("detail", detail).Msg("already satisfied")
	now := a.World.CurrentTick()
	a.record(ctx, name, detail, now, true, "")
	return true, nil
}

func (a *Actor) record(ctx context.Context, name, detail string, start uint64, ok bool, reason string) {
	if a.Recorder == nil {
		return
	}
	rec := StepRecord{
		Actor:     a.ID,
		Step:      name,
		Detail:    detail,
		StartTick: start,
		EndTick:   a.World.CurrentTick(),
		OK:        ok,
		Reason:    reason,
	}
	if t := script.TaskFrom(ctx); t != nil {
		rec.TaskID = t.ID()
	}
	a.Recorder.RecordStep(rec)
}
