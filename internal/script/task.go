package script

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"botscript.ai/internal/goroutineid"
	"botscript.ai/internal/sched"
)

// Body is a script. It runs on the tick thread between suspension points.
type Body func(ctx context.Context) error

type taskKey struct{}

// running maps a task goroutine's id to its task while the body runs.
var running sync.Map

// runningTask returns the task whose goroutine is the caller, or nil.
func runningTask() *Task {
	t, _ := running.Load(goroutineid.Get())
	tt, _ := t.(*Task)
	return tt
}

// TaskFrom returns the task running ctx's script, or nil.
func TaskFrom(ctx context.Context) *Task {
	t, _ := ctx.Value(taskKey{}).(*Task)
	return t
}

// Task is one run of a script body.
type Task struct {
	id    string
	actor string
	disp  *Dispatcher
	log   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	gid    atomic.Int64
	ready  chan struct{}
	resume chan struct{}
	yield  chan struct{}
	wake   sched.Unit

	parked  atomic.Bool
	stopped atomic.Bool
	unwound atomic.Bool
	resumes atomic.Int64

	startTick uint64
	endTick   atomic.Uint64

	done chan struct{}
	err  error
}

// TaskResult describes a finished task.
type TaskResult struct {
	TaskID    string
	Actor     string
	Err       error
	Stopped   bool
	Resumes   int64
	StartTick uint64
	EndTick   uint64
}

func newTask(parent context.Context, actor string, d *Dispatcher, l zerolog.Logger) *Task {
	t := &Task{
		id:     uuid.NewString(),
		actor:  actor,
		disp:   d,
		ready:  make(chan struct{}),
		resume: make(chan struct{}),
		yield:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	t.log = l.With().Str("task_id", t.id).Logger()
	t.ctx, t.cancel = context.WithCancel(context.WithValue(parent, taskKey{}, t))
	t.wake = sched.Func(t.step)
	t.startTick = d.s.CurrentTick()
	return t
}

func (t *Task) ID() string              { return t.id }
func (t *Task) Actor() string           { return t.actor }
func (t *Task) Logger() *zerolog.Logger { return &t.log }

// Stopped reports whether a stop unwound the body. A body that was asked to
// stop but returned on its own before its next suspension point was not
// stopped.
func (t *Task) Stopped() bool { return t.unwound.Load() }

// Err is the body's result. Only meaningful once Done is closed.
func (t *Task) Err() error { return t.err }

func (t *Task) start(body Body, onExit func(*Task)) {
	t.parked.Store(true)
	go t.main(body, onExit)
	t.disp.DispatchUnit(t.wake)
}

func (t *Task) main(body Body, onExit func(*Task)) {
	gid := goroutineid.Get()
	t.gid.Store(gid)
	running.Store(gid, t)
	close(t.ready)

	returned := false
	defer func() {
		running.Delete(gid)
		if r := recover(); r != nil {
			t.err = fmt.Errorf("script: task panicked: %v", r)
			t.log.Error().Str("panic", fmt.Sprint(r)).Msg("script panicked")
		} else if !returned {
			t.err = ErrTaskStopped
			t.unwound.Store(true)
		}
		t.endTick.Store(t.disp.s.CurrentTick())
		t.cancel()
		close(t.done)
		if onExit != nil {
			onExit(t)
		}
		t.yield <- struct{}{}
	}()

	<-t.resume
	if t.stopped.Load() {
		runtime.Goexit()
	}
	t.log.Debug().Msg("script started")
	t.err = body(t.ctx)
	returned = true
}

// step runs on the tick thread. It lends the baton to the task goroutine
// and waits for it to park or finish.
func (t *Task) step(uint64) {
	if !t.parked.CompareAndSwap(true, false) {
		return
	}
	<-t.ready
	t.resumes.Add(1)
	restore := t.disp.lend(t.gid.Load())
	t.resume <- struct{}{}
	<-t.yield
	restore()
}

// park suspends the task until sig resolves or the task is stopped. It is
// only called from the task goroutine while it holds the baton.
func (t *Task) park(sig *Signal) bool {
	if t.stopped.Load() {
		runtime.Goexit()
	}
	t.parked.Store(true)
	sig.notify(func() { t.disp.DispatchUnit(t.wake) })
	t.yield <- struct{}{}
	<-t.resume
	if t.stopped.Load() {
		runtime.Goexit()
	}
	v, _ := sig.Peek()
	return v
}

// stop marks the task stopped and wakes it so a parked task unwinds.
func (t *Task) stop() bool {
	if !t.stopped.CompareAndSwap(false, true) {
		return false
	}
	t.cancel()
	t.disp.DispatchUnit(t.wake)
	return true
}

func (t *Task) isDone() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *Task) result() TaskResult {
	return TaskResult{
		TaskID:    t.id,
		Actor:     t.actor,
		Err:       t.err,
		Stopped:   t.unwound.Load(),
		Resumes:   t.resumes.Load(),
		StartTick: t.startTick,
		EndTick:   t.endTick.Load(),
	}
}
