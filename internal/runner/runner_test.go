package runner

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botscript.ai/internal/actions"
	"botscript.ai/internal/config"
	"botscript.ai/internal/logging"
	plog "botscript.ai/internal/persistence/log"
	"botscript.ai/internal/persistence/indexdb"
	"botscript.ai/internal/protocol"
)

const market = `
max_ticks: 500
world:
  items:
    bread: {price: 2}
    cap: {slot: HEAD, price: 5}
  agents:
    - {id: bob, pos: [0, 0, 0], coins: 50, inventory: {ore: 5}}
    - {id: amy, pos: [0, 0, 1], coins: 50}
  containers:
    - {id: bank, type: BANK, pos: [5, 0, 0]}
  shops:
    - {id: shop, pos: [0, 0, -5], stock: {cap: 1}}
actors:
  - id: bob
    steps:
      - {op: bank_deposit, target: bank, item: ore, count: 3}
      - {op: say, text: banked}
  - id: amy
    steps:
      - {op: buy_and_equip, target: shop, item: cap}
`

func parse(t *testing.T, doc string) config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(doc))
	require.NoError(t, err)
	return cfg
}

func TestRun_PlansComplete(t *testing.T) {
	r, err := New(parse(t, market), WithLogger(logging.ForTest(t)))
	require.NoError(t, err)

	rep, err := r.Run(context.Background())
	require.NoError(t, err)
	require.True(t, rep.OK(), "%+v", rep.Actors)

	w := r.World()
	assert.Equal(t, 3, w.ContainerCount("bank", "ore"))
	assert.Equal(t, 2, w.ItemCount("bob", "ore"))
	assert.Equal(t, "banked", w.LastChat("bob"))
	assert.Equal(t, "cap", w.Equipped("amy", protocol.SlotHead))
	assert.Equal(t, 45, w.Coins("amy"))

	require.Len(t, rep.Tasks, 2)
	var resumes int64
	for _, m := range rep.Tasks {
		assert.Equal(t, protocol.TaskFinished, m.State)
		assert.Greater(t, m.Resumes, int64(1))
		resumes += m.Resumes
	}
	assert.GreaterOrEqual(t, rep.Resumptions, uint64(resumes), "every resumption goes through the dispatcher")
	assert.Zero(t, rep.FailedSteps)
	assert.Equal(t, rep.Steps, len(r.Steps().Records()))
	assert.Equal(t, 0, r.Scheduler().Stats().EveryTick-1, "no pollers left behind")
}

func TestRun_FirstFalseAbortsPlan(t *testing.T) {
	doc := `
world:
  items: {bread: {price: 2}}
  agents: [{id: bob, pos: [0, 0, 0], coins: 10}]
  shops: [{id: shop, pos: [1, 0, 0], stock: {bread: 0}}]
actors:
  - id: bob
    steps:
      - {op: interact, target: shop}
      - {op: buy, item: bread, count: 1}
      - {op: say, text: never}
`
	r, err := New(parse(t, doc))
	require.NoError(t, err)
	rep, err := r.Run(context.Background())
	require.NoError(t, err)
	require.False(t, rep.OK())

	ar := rep.Actors[0]
	assert.Equal(t, protocol.TaskFailed, ar.State)
	assert.Equal(t, 1, ar.FailedStep)
	assert.Equal(t, "buy", ar.FailedName)
	assert.Equal(t, 1, ar.Pass)
	assert.Contains(t, ar.Error, "step 1 (buy) failed")
	assert.Equal(t, 0, r.World().ChatCount("bob"))
	assert.Equal(t, []string{"interact", "buy"}, r.Steps().Steps())
}

func TestRun_LoopStopsAtTickLimit(t *testing.T) {
	doc := `
max_ticks: 30
world:
  agents: [{id: bob}]
actors:
  - id: bob
    loop: true
    steps:
      - {op: say, text: ping}
`
	r, err := New(parse(t, doc))
	require.NoError(t, err)
	rep, err := r.Run(context.Background())
	require.ErrorIs(t, err, ErrTickLimit)

	require.Len(t, rep.Actors, 1)
	assert.Equal(t, protocol.TaskStopped, rep.Actors[0].State)
	assert.Greater(t, r.World().ChatCount("bob"), 3)
	h, ok := r.Handle("bob")
	require.True(t, ok)
	assert.False(t, h.IsActive())
	assert.True(t, h.IsDone())
	assert.Equal(t, 0, r.Scheduler().Stats().EveryTick-1)
}

func TestRun_ContextCancelStopsScripts(t *testing.T) {
	doc := `
max_ticks: 0
world:
  agents: [{id: bob}]
actors:
  - id: bob
    steps:
      - {op: wait_ticks, ticks: 1000000}
`
	r, err := New(parse(t, doc))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	rep, err := r.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, protocol.TaskStopped, rep.Actors[0].State)
}

func TestRun_Realtime(t *testing.T) {
	doc := `
tick_rate_hz: 1000
world:
  agents: [{id: bob}]
actors:
  - id: bob
    steps:
      - {op: walk_to, pos: [3, 0, 0]}
      - {op: say, text: arrived}
`
	r, err := New(parse(t, doc), WithRealtime(true))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rep, err := r.Run(ctx)
	require.NoError(t, err)
	assert.True(t, rep.OK())
	assert.Equal(t, "arrived", r.World().LastChat("bob"))
}

func TestRun_TraceAndIndex(t *testing.T) {
	dir := t.TempDir()
	cfg := parse(t, market)
	cfg.Trace.Dir = filepath.Join(dir, "trace")
	cfg.Trace.DB = filepath.Join(dir, "index.db")

	extra := &actions.Memory{}
	var tasks []protocol.TaskMsg
	r, err := New(cfg,
		WithLogger(zerolog.Nop()),
		WithRecorder(extra),
		WithTaskSink(taskFunc(func(m protocol.TaskMsg) error { tasks = append(tasks, m); return nil })),
	)
	require.NoError(t, err)
	rep, err := r.Run(context.Background())
	require.NoError(t, err)
	require.True(t, rep.OK())
	assert.Len(t, extra.Records(), rep.Steps)
	assert.Len(t, tasks, 2)

	files, err := plog.Glob(cfg.Trace.Dir, "trace")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	counts := map[string]int{}
	for _, f := range files {
		require.NoError(t, plog.ReadTrace(f, func(l plog.Line) error {
			counts[l.Type]++
			return nil
		}))
	}
	assert.Equal(t, rep.Steps, counts[protocol.TypeStep])
	assert.Equal(t, 2, counts[protocol.TypeTask])
	assert.Positive(t, counts[plog.TypeTick])
	assert.Positive(t, counts[plog.TypeAudit])

	idx, err := indexdb.OpenSQLite(cfg.Trace.DB)
	require.NoError(t, err)
	defer idx.Close()
	ctx := context.Background()
	require.NoError(t, idx.Sync(ctx))
	steps, err := idx.Steps(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"walk_to", "interact", "deposit", "close", "bank_deposit", "say"}, stepNames(steps))
	m, ok, err := idx.Task(ctx, tasks[0].TaskID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, protocol.TaskFinished, m.State)
}

func TestNew_RejectsBadLayout(t *testing.T) {
	cfg := parse(t, "world:\n  agents: [{id: bob, pos: [1, 0, 0]}]\n  obstacles: [[1, 0, 0]]\n")
	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

type taskFunc func(protocol.TaskMsg) error

func (f taskFunc) RecordTask(m protocol.TaskMsg) error { return f(m) }

func stepNames(steps []protocol.StepMsg) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Step)
	}
	return out
}
