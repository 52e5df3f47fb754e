package script

import (
	"sync/atomic"

	"botscript.ai/internal/sched"
)

// Dispatcher re-queues task resumptions onto the scheduler instead of
// running them where the wake-up happened. Signals usually resolve while
// the scheduler is iterating its poller list; resuming a script there would
// nest world-mutating code inside that iteration.
type Dispatcher struct {
	s      sched.Scheduler
	lender sched.Lender

	dispatched atomic.Uint64
}

func NewDispatcher(s sched.Scheduler) *Dispatcher {
	d := &Dispatcher{s: s}
	if l, ok := s.(sched.Lender); ok {
		d.lender = l
	}
	return d
}

// DispatchUnit runs u at the next tick-thread opportunity.
func (d *Dispatcher) DispatchUnit(u sched.Unit) {
	d.dispatched.Add(1)
	d.s.RunOnceAfter(0, u)
}

// Dispatched counts resumptions queued so far.
func (d *Dispatcher) Dispatched() uint64 { return d.dispatched.Load() }

func (d *Dispatcher) lend(gid int64) func() {
	if d.lender == nil {
		return func() {}
	}
	return d.lender.Lend(gid)
}
