package sched

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"botscript.ai/internal/goroutineid"
)

var ErrTickReentered = errors.New("sched: tick already in progress")

// ticking holds the goroutine ids currently inside some scheduler's Tick.
var ticking sync.Map

// InTick reports whether the calling goroutine is inside Tick on any
// TickScheduler. Goroutines the baton was lent to are not included.
func InTick() bool {
	_, ok := ticking.Load(goroutineid.Get())
	return ok
}

type everyEntry struct {
	u         Unit
	since     uint64
	cancelled atomic.Bool
}

type onceEntry struct {
	u   Unit
	due uint64
}

// Stats is a point-in-time view of scheduler load.
type Stats struct {
	Tick         uint64
	EveryTick    int
	Pending      int
	Soon         int
	LastDuration time.Duration
	MaxDuration  time.Duration
}

// TickScheduler is a deterministic Scheduler. Tests drive it by calling
// Tick directly; servers call Run to drive it from a wall-clock ticker.
//
// Registration is safe from any goroutine. Tick must only be driven by one
// goroutine at a time.
type TickScheduler struct {
	log zerolog.Logger

	tick    atomic.Uint64
	running atomic.Bool
	owner   atomic.Int64

	mu    sync.Mutex
	every []*everyEntry
	once  []onceEntry
	soon  []Unit

	lastDur atomic.Int64
	maxDur  atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

type Option func(*TickScheduler)

func WithLogger(l zerolog.Logger) Option {
	return func(s *TickScheduler) { s.log = l }
}

func New(opts ...Option) *TickScheduler {
	s := &TickScheduler{
		log:  zerolog.Nop(),
		stop: make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *TickScheduler) CurrentTick() uint64 { return s.tick.Load() }

func (s *TickScheduler) RunEveryTick(u Unit) {
	if u == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.every {
		if e.u == u {
			return
		}
	}
	s.every = append(s.every, &everyEntry{u: u, since: s.tick.Load()})
}

func (s *TickScheduler) RunOnceAfter(n int, u Unit) {
	if u == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		s.soon = append(s.soon, u)
		return
	}
	s.once = append(s.once, onceEntry{u: u, due: s.tick.Load() + uint64(n)})
}

func (s *TickScheduler) Cancel(u Unit) {
	if u == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	every := s.every[:0:0]
	for _, e := range s.every {
		if e.u == u {
			e.cancelled.Store(true)
			continue
		}
		every = append(every, e)
	}
	s.every = every

	once := s.once[:0]
	for _, e := range s.once {
		if e.u != u {
			once = append(once, e)
		}
	}
	s.once = once

	soon := s.soon[:0]
	for _, x := range s.soon {
		if x != u {
			soon = append(soon, x)
		}
	}
	s.soon = soon
}

// OnTickThread reports whether the caller currently holds the tick baton:
// either it is the goroutine inside Tick, or Tick has lent it the baton.
func (s *TickScheduler) OnTickThread() bool {
	id := s.owner.Load()
	return id != 0 && id == goroutineid.Get()
}

// Lend hands the baton to goroutine gid. It must be called from the tick
// thread; the caller blocks until gid gives the baton back and then calls
// restore.
func (s *TickScheduler) Lend(gid int64) (restore func()) {
	prev := s.owner.Swap(gid)
	return func() { s.owner.Store(prev) }
}

// Tick advances the clock by one tick and runs, in order: once-after units
// that are due, every-tick units registered before this tick, then the soon
// queue until it drains.
func (s *TickScheduler) Tick() error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrTickReentered
	}
	defer s.running.Store(false)

	start := time.Now()
	gid := goroutineid.Get()
	s.owner.Store(gid)
	ticking.Store(gid, s)
	defer func() {
		ticking.Delete(gid)
		s.owner.Store(0)
	}()

	now := s.tick.Add(1)

	s.mu.Lock()
	var due []Unit
	once := s.once[:0]
	for _, e := range s.once {
		if e.due <= now {
			due = append(due, e.u)
			continue
		}
		once = append(once, e)
	}
	s.once = once
	every := append([]*everyEntry(nil), s.every...)
	s.mu.Unlock()

	for _, u := range due {
		u.RunTick(now)
	}

	for _, e := range every {
		if e.since >= now || e.cancelled.Load() {
			continue
		}
		e.u.RunTick(now)
	}

	s.drainSoon(now)

	d := time.Since(start)
	s.lastDur.Store(int64(d))
	if int64(d) > s.maxDur.Load() {
		s.maxDur.Store(int64(d))
	}
	return nil
}

func (s *TickScheduler) drainSoon(now uint64) {
	for {
		s.mu.Lock()
		batch := s.soon
		s.soon = nil
		s.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, u := range batch {
			u.RunTick(now)
		}
	}
}

// Advance runs n ticks back to back.
func (s *TickScheduler) Advance(n int) error {
	for i := 0; i < n; i++ {
		if err := s.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// Run drives Tick at hz ticks per second until ctx is done or Stop is called.
func (s *TickScheduler) Run(ctx context.Context, hz int) error {
	if hz <= 0 {
		hz = 5
	}
	interval := time.Second / time.Duration(hz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info().Int("tick_rate_hz", hz).Uint64("tick", s.CurrentTick()).Msg("scheduler running")
	defer s.log.Info().Uint64("tick", s.CurrentTick()).Msg("scheduler stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case <-ticker.C:
			if err := s.Tick(); err != nil {
				return err
			}
			if d := time.Duration(s.lastDur.Load()); d > interval {
				s.log.Warn().Dur("took", d).Dur("budget", interval).Uint64("tick", s.CurrentTick()).Msg("tick overran budget")
			}
		}
	}
}

func (s *TickScheduler) Stop() { s.stopOnce.Do(func() { close(s.stop) }) }

func (s *TickScheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Tick:         s.tick.Load(),
		EveryTick:    len(s.every),
		Pending:      len(s.once),
		Soon:         len(s.soon),
		LastDuration: time.Duration(s.lastDur.Load()),
		MaxDuration:  time.Duration(s.maxDur.Load()),
	}
}
