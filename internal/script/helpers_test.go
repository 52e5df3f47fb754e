package script

import (
	"testing"

	"github.com/stretchr/testify/require"

	"botscript.ai/internal/sched"
)

// counterWorld stands in for the simulation: it is registered first, so it
// mutates state before the poller phase of every tick.
type counterWorld struct {
	counter int
	inc     bool
}

func (w *counterWorld) RunTick(uint64) {
	if w.inc {
		w.counter++
	}
}

func newHarness(t *testing.T) (*sched.TickScheduler, *Dispatcher) {
	t.Helper()
	s := sched.New()
	return s, NewDispatcher(s)
}

// tickUntil ticks s until done reports true, failing after limit ticks.
func tickUntil(t *testing.T, s *sched.TickScheduler, limit int, done func() bool) {
	t.Helper()
	for i := 0; i < limit; i++ {
		if done() {
			return
		}
		require.NoError(t, s.Tick())
	}
	require.True(t, done(), "condition not reached within %d ticks", limit)
}
