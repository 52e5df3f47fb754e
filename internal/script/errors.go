package script

import "errors"

var (
	ErrSignalConsumed = errors.New("script: signal already awaited")
	ErrPollerActive   = errors.New("script: poller already submitted")
	ErrNilPredicate   = errors.New("script: nil predicate")
	ErrTaskStopped    = errors.New("script: task stopped")

	// ErrAwaitOnTickThread is returned when Await is called from inside a
	// tick by code that is not a script task.
	ErrAwaitOnTickThread = errors.New("script: await on tick thread")
)
