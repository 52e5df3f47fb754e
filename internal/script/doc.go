/*
Package script runs actor scripts as cooperative tasks on top of the tick
scheduler.

A script body is ordinary sequential Go. It suspends only in Signal.Await,
typically on a Signal returned by Submit, which polls a predicate once per
tick until it holds or a tick timeout elapses. A timeout is reported as
false, never as an error.

Each task runs on its own goroutine but only while it holds the tick baton.
Every resumption goes through a Dispatcher, which queues it on the
scheduler and hands the baton over synchronously: the tick thread waits
until the task parks again or returns. Script code therefore never runs
concurrently with tick logic or with another script, and needs no locks
around world state.

Await finds its task by goroutine, not by context, so a body may await
with any context. Awaiting from tick code that is not a task returns
ErrAwaitOnTickThread instead of blocking.

Stopping a task is cooperative. Handle.Stop marks the task; its next
suspension point unwinds the task goroutine (deferred calls still run) and
no further body code executes.
*/
package script
