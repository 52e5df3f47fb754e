package runner

import (
	"errors"

	"botscript.ai/internal/protocol"
	"botscript.ai/internal/sim/world"
)

// ActorReport summarises the last task of one actor.
type ActorReport struct {
	Actor string
	State string
	Error string
	// FailedStep is the index of the step that returned false, or -1.
	FailedStep int
	FailedName string
	Pass       int
	Steps      int
}

type Report struct {
	Ticks uint64
	// Resumptions counts script wake-ups queued on the tick thread.
	Resumptions uint64
	Steps       int
	FailedSteps int
	Actors      []ActorReport
	Tasks       []protocol.TaskMsg
	World       world.Stats
}

// OK reports whether every actor's plan ran to completion.
func (r Report) OK() bool {
	for _, a := range r.Actors {
		if a.State != protocol.TaskFinished {
			return false
		}
	}
	return true
}

func (r *Runner) report() Report {
	r.mu.Lock()
	tasks := append([]protocol.TaskMsg(nil), r.tasks...)
	r.mu.Unlock()

	rep := Report{
		Ticks:       r.sched.CurrentTick(),
		Resumptions: r.disp.Dispatched(),
		Tasks:       tasks,
		World:       r.world.Stats(),
	}
	perActor := map[string]int{}
	for _, s := range r.memory.Records() {
		rep.Steps++
		perActor[s.Actor]++
		if !s.OK {
			rep.FailedSteps++
		}
	}

	last := map[string]protocol.TaskMsg{}
	for _, m := range tasks {
		last[m.Actor] = m
	}
	for _, h := range r.handles {
		ar := ActorReport{Actor: h.Actor(), FailedStep: -1, Steps: perActor[h.Actor()]}
		if m, ok := last[h.Actor()]; ok {
			ar.State = m.State
			ar.Error = m.Error
		}
		var se *StepError
		if errors.As(h.Err(), &se) {
			ar.FailedStep = se.Index
			ar.FailedName = se.Step
			ar.Pass = se.Pass
		}
		rep.Actors = append(rep.Actors, ar)
	}
	return rep
}
