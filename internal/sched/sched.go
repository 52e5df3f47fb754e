// Package sched provides the tick scheduler that owns the authoritative
// simulation thread. Every world mutation, predicate evaluation and script
// resumption runs from inside Tick.
package sched

// Unit is a piece of work run by the scheduler. Units are compared by
// identity, so implementations are expected to be pointer types.
type Unit interface {
	RunTick(tick uint64)
}

// Scheduler is the narrow surface script code consumes.
type Scheduler interface {
	// RunEveryTick runs u once per tick starting with the tick after the
	// current one, until it is cancelled.
	RunEveryTick(u Unit)
	// RunOnceAfter runs u once, n ticks from now. n <= 0 means the next
	// tick-thread opportunity: the end of the tick in progress, or the next
	// tick when called between ticks.
	RunOnceAfter(n int, u Unit)
	// Cancel removes u from every queue it is registered in.
	Cancel(u Unit)
	// CurrentTick is the number of the last tick that started.
	CurrentTick() uint64
}

// Lender is implemented by schedulers that can temporarily lend the tick
// baton to another goroutine. The returned func takes it back.
type Lender interface {
	Lend(gid int64) (restore func())
}

// Func adapts a plain function to a Unit. Each call allocates a new
// pointer so the result can be cancelled.
func Func(fn func(tick uint64)) Unit { return &funcUnit{fn: fn} }

type funcUnit struct{ fn func(tick uint64) }

func (f *funcUnit) RunTick(tick uint64) { f.fn(tick) }
