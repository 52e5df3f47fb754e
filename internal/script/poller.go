package script

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"botscript.ai/internal/sched"
)

// DefaultTimeoutTicks bounds every wait that does not name its own timeout.
const DefaultTimeoutTicks = 120

// Predicate is a side-effect-free query over live world state. It is only
// ever called from the tick thread.
type Predicate func() bool

// Poller evaluates one predicate once per tick until it holds or its
// timeout elapses, then resolves its Signal and deregisters. A Poller is
// single-use.
type Poller struct {
	s      sched.Scheduler
	log    zerolog.Logger
	active atomic.Bool

	pred    Predicate
	timeout int
	sig     *Signal

	// Owned by the tick thread once submitted.
	elapsed int
	evals   int
	fired   bool
	firedAt uint64
}

type PollerOption func(*Poller)

// PollerLogger sets where predicate panics are reported.
func PollerLogger(l zerolog.Logger) PollerOption {
	return func(p *Poller) { p.log = l }
}

func NewPoller(s sched.Scheduler, opts ...PollerOption) *Poller {
	p := &Poller{s: s, log: zerolog.Nop()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Submit registers the poller with the scheduler. Evaluation starts on the
// next tick. timeoutTicks <= 0 selects DefaultTimeoutTicks.
func (p *Poller) Submit(pred Predicate, timeoutTicks int) (*Signal, error) {
	if pred == nil {
		return nil, ErrNilPredicate
	}
	if !p.active.CompareAndSwap(false, true) {
		return nil, ErrPollerActive
	}
	if timeoutTicks <= 0 {
		timeoutTicks = DefaultTimeoutTicks
	}
	p.pred = pred
	p.timeout = timeoutTicks
	p.sig = NewSignal()
	p.s.RunEveryTick(p)
	return p.sig, nil
}

func (p *Poller) RunTick(tick uint64) {
	if p.fired {
		return
	}
	p.evals++
	if p.eval(tick) {
		p.fire(tick, true)
		return
	}
	p.elapsed++
	if p.elapsed >= p.timeout {
		p.fire(tick, false)
	}
}

func (p *Poller) eval(tick uint64) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Uint64("tick", tick).Str("panic", fmt.Sprint(r)).Msg("predicate panicked; resolving false")
			p.elapsed = p.timeout
			ok = false
		}
	}()
	return p.pred()
}

func (p *Poller) fire(tick uint64, v bool) {
	p.fired = true
	p.firedAt = tick
	p.s.Cancel(p)
	p.sig.Resolve(v)
}

// Abandon deregisters a poller whose waiter has gone away and resolves it
// false if it had not resolved yet. Safe from any goroutine.
func (p *Poller) Abandon() {
	if p.sig == nil {
		return
	}
	p.s.Cancel(p)
	p.sig.Resolve(false)
}

// Evaluations is the number of times the predicate has been checked.
// Read it from the tick thread or after the signal has resolved.
func (p *Poller) Evaluations() int { return p.evals }

// FiredAt is the tick the poller resolved on, or 0 while pending.
func (p *Poller) FiredAt() uint64 { return p.firedAt }

// Submit starts a fresh poller for pred and returns its signal.
func Submit(s sched.Scheduler, pred Predicate, timeoutTicks int) *Signal {
	sig, err := NewPoller(s).Submit(pred, timeoutTicks)
	if err != nil {
		// Only a nil predicate gets here; it can never hold.
		sig = NewSignal()
		sig.Resolve(false)
	}
	return sig
}

// Wait submits pred and awaits the result. If the wait ends early, because
// ctx is done or the task is stopped while suspended, the poller is
// abandoned so it stops evaluating. Predicate panics go to the task's
// logger when ctx belongs to a task.
func Wait(ctx context.Context, s sched.Scheduler, pred Predicate, timeoutTicks int) (bool, error) {
	var opts []PollerOption
	if t := TaskFrom(ctx); t != nil {
		opts = append(opts, PollerLogger(*t.Logger()))
	}
	p := NewPoller(s, opts...)
	sig, err := p.Submit(pred, timeoutTicks)
	if err != nil {
		return false, nil
	}
	defer p.Abandon()
	return sig.Await(ctx)
}
