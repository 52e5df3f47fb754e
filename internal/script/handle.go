package script

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Handle owns at most one running task for an actor.
type Handle struct {
	actor  string
	disp   *Dispatcher
	body   Body
	parent context.Context
	log    zerolog.Logger
	onExit func(TaskResult)

	live atomic.Bool
	cur  atomic.Pointer[Task]
	last atomic.Pointer[Task]
}

type HandleOption func(*Handle)

// WithContext sets the parent context of every task the handle starts.
func WithContext(ctx context.Context) HandleOption {
	return func(h *Handle) { h.parent = ctx }
}

func WithLogger(l zerolog.Logger) HandleOption {
	return func(h *Handle) { h.log = l }
}

// OnExit registers fn to run on the tick thread when a task ends, however
// it ended.
func OnExit(fn func(TaskResult)) HandleOption {
	return func(h *Handle) { h.onExit = fn }
}

func NewHandle(actor string, d *Dispatcher, body Body, opts ...HandleOption) *Handle {
	h := &Handle{
		actor:  actor,
		disp:   d,
		body:   body,
		parent: context.Background(),
		log:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(h)
	}
	h.log = h.log.With().Str("actor", actor).Logger()
	return h
}

func (h *Handle) Actor() string { return h.actor }

// Start launches the body unless a task is already live. The first line of
// the body runs at the next tick-thread opportunity.
func (h *Handle) Start() bool {
	if !h.live.CompareAndSwap(false, true) {
		return false
	}
	t := newTask(h.parent, h.actor, h.disp, h.log)
	h.cur.Store(t)
	h.last.Store(t)
	t.start(h.body, h.exited)
	return true
}

// Stop cancels the live task. The task unwinds at its next suspension
// point; anything it already did stays done. Returns false if no task was
// live.
func (h *Handle) Stop() bool {
	t := h.cur.Load()
	if t == nil || !h.cur.CompareAndSwap(t, nil) {
		return false
	}
	h.live.Store(false)
	if t.isDone() {
		return false
	}
	t.stop()
	h.log.Info().Str("task_id", t.id).Msg("script stop requested")
	return true
}

func (h *Handle) exited(t *Task) {
	if h.cur.CompareAndSwap(t, nil) {
		h.live.Store(false)
	}
	res := t.result()
	ev := h.log.Info()
	if res.Err != nil && !res.Stopped {
		ev = h.log.Warn().Err(res.Err)
	}
	ev.Str("task_id", res.TaskID).Bool("stopped", res.Stopped).Int64("resumes", res.Resumes).
		Uint64("start_tick", res.StartTick).Uint64("end_tick", res.EndTick).Msg("script finished")
	if h.onExit != nil {
		h.onExit(res)
	}
}

// IsActive reports whether a task is live. The answer can be stale by the
// time the caller reads it.
func (h *Handle) IsActive() bool { return h.live.Load() }

// IsDone reports whether the most recent task has finished, or none was
// ever started. Like IsActive, it is advisory.
func (h *Handle) IsDone() bool {
	t := h.last.Load()
	return t == nil || t.isDone()
}

// Task returns the most recently started task.
func (h *Handle) Task() *Task { return h.last.Load() }

// Err returns the most recent task's result once it has finished.
func (h *Handle) Err() error {
	t := h.last.Load()
	if t == nil || !t.isDone() {
		return nil
	}
	return t.err
}

// Wait blocks until the most recent task finishes. Never call it from the
// tick thread: the task needs that thread to make progress.
func (h *Handle) Wait(ctx context.Context) error {
	t := h.last.Load()
	if t == nil {
		return nil
	}
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
