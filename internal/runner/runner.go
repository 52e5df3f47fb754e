package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"botscript.ai/internal/actions"
	"botscript.ai/internal/config"
	plog "botscript.ai/internal/persistence/log"
	"botscript.ai/internal/persistence/indexdb"
	"botscript.ai/internal/protocol"
	"botscript.ai/internal/sched"
	"botscript.ai/internal/script"
	"botscript.ai/internal/sim/world"
	"botscript.ai/internal/transport/observer"
)

// TaskSink receives a message for every finished script run.
type TaskSink interface {
	RecordTask(m protocol.TaskMsg) error
}

type Runner struct {
	cfg      config.Config
	log      zerolog.Logger
	realtime bool

	sched *sched.TickScheduler
	world *world.World
	disp  *script.Dispatcher

	memory   *actions.Memory
	trace    *plog.TraceWriter
	index    *indexdb.SQLiteIndex
	observer *observer.Server

	extraRec  []actions.Recorder
	taskSinks []TaskSink

	actors  []*actions.Actor
	handles []*script.Handle

	mu    sync.Mutex
	tasks []protocol.TaskMsg
}

type Option func(*Runner)

func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithRealtime paces ticks at the configured rate instead of running them
// back to back.
func WithRealtime(on bool) Option {
	return func(r *Runner) { r.realtime = on }
}

// WithRecorder adds a step recorder next to the configured sinks.
func WithRecorder(rec actions.Recorder) Option {
	return func(r *Runner) { r.extraRec = append(r.extraRec, rec) }
}

func WithTaskSink(s TaskSink) Option {
	return func(r *Runner) { r.taskSinks = append(r.taskSinks, s) }
}

// New builds the world, scheduler and one task handle per configured actor.
// Tasks are not started until Run.
func New(cfg config.Config, opts ...Option) (*Runner, error) {
	r := &Runner{cfg: cfg, log: zerolog.Nop(), memory: &actions.Memory{}}
	for _, o := range opts {
		o(r)
	}
	r.log = r.log.With().Str("component", "runner").Logger()

	r.sched = sched.New(sched.WithLogger(r.log))
	r.world = world.New(cfg.WorldConfig(), world.WithLogger(r.log))
	if err := r.world.Setup(cfg.Layout()); err != nil {
		return nil, err
	}
	r.sched.RunEveryTick(r.world)
	r.disp = script.NewDispatcher(r.sched)

	if err := r.openSinks(); err != nil {
		r.closeSinks()
		return nil, err
	}

	recs := []actions.Recorder{r.memory}
	if r.trace != nil {
		recs = append(recs, r.trace)
	}
	if r.index != nil {
		recs = append(recs, r.index)
	}
	if r.observer != nil {
		recs = append(recs, r.observer)
	}
	rec := actions.Multi(append(recs, r.extraRec...)...)

	for _, spec := range cfg.Actors {
		plan, err := Compile(spec)
		if err != nil {
			r.closeSinks()
			return nil, err
		}
		a := actions.New(spec.ID, r.world, r.sched, r.log, rec)
		a.Timeout = cfg.DefaultTimeoutTicks
		h := script.NewHandle(spec.ID, r.disp, plan.Body(a),
			script.WithLogger(r.log),
			script.OnExit(r.exited),
		)
		r.actors = append(r.actors, a)
		r.handles = append(r.handles, h)
	}
	return r, nil
}

func (r *Runner) openSinks() error {
	if dir := r.cfg.Trace.Dir; dir != "" {
		r.trace = plog.NewTraceWriter(dir, r.log)
		r.taskSinks = append(r.taskSinks, r.trace)
	}
	if path := r.cfg.Trace.DB; path != "" {
		idx, err := indexdb.OpenSQLite(path)
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		r.index = idx
		r.taskSinks = append(r.taskSinks, idx)
	}
	if r.cfg.Observer.Listen != "" {
		var opts []observer.Option
		if r.cfg.Observer.AllowInput {
			opts = append(opts, observer.WithInput(r.world))
		}
		r.observer = observer.NewServer(r.log, opts...)
		r.taskSinks = append(r.taskSinks, r.observer)
	}

	var ticks []world.TickLogger
	var audits []world.AuditLogger
	if r.trace != nil {
		ticks, audits = append(ticks, r.trace), append(audits, r.trace)
	}
	if r.index != nil {
		ticks, audits = append(ticks, r.index), append(audits, r.index)
	}
	if len(ticks) > 0 {
		fan := &worldLogs{ticks: ticks, audits: audits}
		r.world.SetTickLogger(fan)
		r.world.SetAuditLogger(fan)
	}
	return nil
}

func (r *Runner) closeSinks() {
	if r.trace != nil {
		if err := r.trace.Close(); err != nil {
			r.log.Warn().Err(err).Msg("close trace")
		}
	}
	if r.index != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.index.Sync(ctx); err != nil {
			r.log.Warn().Err(err).Msg("sync index")
		}
		cancel()
		if err := r.index.Close(); err != nil {
			r.log.Warn().Err(err).Msg("close index")
		}
	}
}

// exited runs on the tick thread when a script ends.
func (r *Runner) exited(res script.TaskResult) {
	m := TaskMessage(res)
	r.mu.Lock()
	r.tasks = append(r.tasks, m)
	r.mu.Unlock()
	for _, s := range r.taskSinks {
		if err := s.RecordTask(m); err != nil {
			r.log.Warn().Err(err).Str("task_id", m.TaskID).Msg("record task")
		}
	}
}

// TaskMessage converts a finished task into its wire form.
func TaskMessage(res script.TaskResult) protocol.TaskMsg {
	m := protocol.TaskMsg{
		Type:            protocol.TypeTask,
		ProtocolVersion: protocol.Version,
		TaskID:          res.TaskID,
		Actor:           res.Actor,
		State:           protocol.TaskFinished,
		StartTick:       res.StartTick,
		EndTick:         res.EndTick,
		Resumes:         res.Resumes,
	}
	switch {
	case res.Stopped:
		m.State = protocol.TaskStopped
	case res.Err != nil:
		m.State = protocol.TaskFailed
	}
	if res.Err != nil {
		m.Error = res.Err.Error()
	}
	return m
}

func (r *Runner) World() *world.World             { return r.world }
func (r *Runner) Scheduler() *sched.TickScheduler { return r.sched }
func (r *Runner) Steps() *actions.Memory          { return r.memory }
func (r *Runner) Observer() *observer.Server      { return r.observer }
func (r *Runner) Index() *indexdb.SQLiteIndex     { return r.index }

// Handle returns the task handle of an actor.
func (r *Runner) Handle(actor string) (*script.Handle, bool) {
	for _, h := range r.handles {
		if h.Actor() == actor {
			return h, true
		}
	}
	return nil, false
}

func (r *Runner) done() bool {
	for _, h := range r.handles {
		if !h.IsDone() {
			return false
		}
	}
	return true
}

// ErrTickLimit is returned by Run when max_ticks elapsed before every plan
// finished.
var ErrTickLimit = errors.New("runner: tick limit reached")

// Run starts every actor's plan and drives ticks until all plans end, the
// tick limit is reached or ctx is done. Scripts still running at that point
// are stopped. Sinks are flushed and closed before Run returns.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	defer r.closeSinks()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var serveErr chan error
	if r.observer != nil {
		serveErr = make(chan error, 1)
		go func() { serveErr <- r.observer.ListenAndServe(ctx, r.cfg.Observer.Listen) }()
	}

	for _, h := range r.handles {
		h.Start()
	}
	r.log.Info().Int("actors", len(r.handles)).Bool("realtime", r.realtime).Msg("run started")

	var err error
	if r.realtime {
		err = r.runRealtime(ctx)
	} else {
		err = r.runFast(ctx)
	}
	r.stopAll()

	cancel()
	if serveErr != nil {
		if serr := <-serveErr; serr != nil && err == nil {
			err = fmt.Errorf("observer: %w", serr)
		}
	}
	rep := r.report()
	r.log.Info().Uint64("tick", rep.Ticks).Uint64("resumptions", rep.Resumptions).Int("steps", rep.Steps).Int("failed_steps", rep.FailedSteps).Msg("run finished")
	return rep, err
}

func (r *Runner) runFast(ctx context.Context) error {
	limit := r.cfg.MaxTicks
	for n := 0; !r.done(); n++ {
		if limit > 0 && n >= limit {
			return ErrTickLimit
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.sched.Tick(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runRealtime(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- r.sched.Run(runCtx, r.cfg.TickRateHz) }()

	poll := time.NewTicker(10 * time.Millisecond)
	defer poll.Stop()
	limit := uint64(r.cfg.MaxTicks)
	for {
		select {
		case err := <-errCh:
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		case <-poll.C:
			if r.done() {
				cancel()
				<-errCh
				return nil
			}
			if limit > 0 && r.sched.CurrentTick() >= limit {
				cancel()
				<-errCh
				return ErrTickLimit
			}
		}
	}
}

// stopAll cancels live scripts and ticks until they unwind. The scheduler
// is no longer running on another goroutine here.
func (r *Runner) stopAll() {
	stopped := 0
	for _, h := range r.handles {
		if h.Stop() {
			stopped++
		}
	}
	if stopped == 0 {
		return
	}
	r.log.Info().Int("scripts", stopped).Msg("stopping live scripts")
	for i := 0; i < 10 && !r.done(); i++ {
		if err := r.sched.Tick(); err != nil {
			r.log.Warn().Err(err).Msg("tick during stop")
			return
		}
	}
}

// worldLogs fans world tick and audit records out to every sink.
type worldLogs struct {
	ticks  []world.TickLogger
	audits []world.AuditLogger
}

func (f *worldLogs) WriteTick(e world.TickLogEntry) error {
	var errs []error
	for _, t := range f.ticks {
		if err := t.WriteTick(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *worldLogs) WriteAudit(e world.AuditEntry) error {
	var errs []error
	for _, a := range f.audits {
		if err := a.WriteAudit(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
