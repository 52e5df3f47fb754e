package script

import (
	"context"
	"sync"

	"botscript.ai/internal/sched"
)

// Signal is a one-shot boolean wait handle. Exactly one value is ever
// delivered; later Resolve calls are no-ops. A Signal may be awaited once.
type Signal struct {
	mu       sync.Mutex
	resolved bool
	claimed  bool
	value    bool
	done     chan struct{}
	wake     func()
}

func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Resolve delivers v if nothing has been delivered yet and reports whether
// this call was the one that delivered. Safe from any goroutine.
func (s *Signal) Resolve(v bool) bool {
	s.mu.Lock()
	if s.resolved {
		s.mu.Unlock()
		return false
	}
	s.resolved = true
	s.value = v
	close(s.done)
	wake := s.wake
	s.wake = nil
	s.mu.Unlock()

	if wake != nil {
		wake()
	}
	return true
}

// Done is closed once a value has been delivered.
func (s *Signal) Done() <-chan struct{} { return s.done }

// Peek returns the delivered value without consuming the signal.
func (s *Signal) Peek() (value, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.resolved
}

// Await blocks until a value is delivered and returns it. On a script
// task's goroutine this is the task's suspension point, whatever ctx is.
// Elsewhere it blocks the calling goroutine and gives up with ctx.Err()
// when ctx is done, except inside a tick, where it fails with
// ErrAwaitOnTickThread.
//
// A second Await on the same Signal returns ErrSignalConsumed.
func (s *Signal) Await(ctx context.Context) (bool, error) {
	t := runningTask()
	if t == nil && sched.InTick() {
		return false, ErrAwaitOnTickThread
	}
	if err := s.claim(); err != nil {
		return false, err
	}
	if t != nil {
		return t.park(s), nil
	}
	select {
	case <-s.done:
		v, _ := s.Peek()
		return v, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (s *Signal) claim() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed {
		return ErrSignalConsumed
	}
	s.claimed = true
	return nil
}

// notify arranges for fn to run once the signal resolves. If it already
// has, fn runs immediately on the caller's goroutine.
func (s *Signal) notify(fn func()) {
	s.mu.Lock()
	if s.resolved {
		s.mu.Unlock()
		fn()
		return
	}
	s.wake = fn
	s.mu.Unlock()
}
