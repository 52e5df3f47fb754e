package world

import (
	"botscript.ai/internal/protocol"
	"botscript.ai/internal/sim/tasks"
)

type instantHandler func(w *World, a *Agent, inst protocol.InstantReq, nowTick uint64) (code, message string)

var instantDispatch = map[string]instantHandler{
	protocol.InstantOpen:     handleOpen,
	protocol.InstantClose:    handleClose,
	protocol.InstantDeposit:  handleDeposit,
	protocol.InstantWithdraw: handleWithdraw,
	protocol.InstantEquip:    handleEquip,
	protocol.InstantUnequip:  handleUnequip,
	protocol.InstantBuy:      handleBuy,
	protocol.InstantSell:     handleSell,
	protocol.InstantChoose:   handleChoose,
	protocol.InstantSay:      handleSay,
}

func (w *World) applyAct(a *Agent, act protocol.ActMsg, nowTick uint64) {
	for _, inst := range act.Instants {
		w.applyInstant(a, inst, nowTick)
	}
	for _, tr := range act.Tasks {
		w.applyTaskReq(a, tr, nowTick)
	}
}

func (w *World) applyInstant(a *Agent, inst protocol.InstantReq, nowTick uint64) {
	code, msg := protocol.ErrBadRequest, "unknown instant type"
	if h := instantDispatch[inst.Type]; h != nil {
		code, msg = h(w, a, inst, nowTick)
	}
	w.result(a, nowTick, inst.Type, inst.ID, inst.TargetID, code, msg)
}

func (w *World) applyTaskReq(a *Agent, tr protocol.TaskReq, nowTick uint64) {
	var code, msg string
	switch tr.Type {
	case protocol.TaskMoveTo:
		target := VecFromArray(tr.Target)
		if !w.inBounds(target) {
			code, msg = protocol.ErrInvalidTarget, "target out of bounds"
			break
		}
		if tr.Tolerance < 0 {
			code, msg = protocol.ErrBadRequest, "negative tolerance"
			break
		}
		a.MoveTask = &tasks.MovementTask{
			TaskID:      tr.ID,
			Kind:        tasks.KindMoveTo,
			Target:      v3ToTask(target),
			Tolerance:   tr.Tolerance,
			StartPos:    v3ToTask(a.Pos),
			StartedTick: nowTick,
		}
	case protocol.TaskStop:
		a.MoveTask = nil
	default:
		code, msg = protocol.ErrBadRequest, "unknown task type"
	}
	w.result(a, nowTick, tr.Type, tr.ID, "", code, msg)
}

func (w *World) result(a *Agent, nowTick uint64, action, ref, target, code, msg string) {
	a.AddEvent(actionResult(nowTick, ref, code == "", code, msg))
	w.audit(AuditEntry{
		Tick:    nowTick,
		Actor:   a.ID,
		Action:  action,
		Ref:     ref,
		Target:  target,
		OK:      code == "",
		Code:    code,
		Message: msg,
	})
}

func actionResult(tick uint64, ref string, ok bool, code string, message string) protocol.Event {
	if !protocol.IsKnownCode(code) {
		code = protocol.ErrInternal
		if message == "" {
			message = "unknown error code"
		}
	}
	e := protocol.Event{
		"t":    tick,
		"type": "ACTION_RESULT",
		"ref":  ref,
		"ok":   ok,
	}
	if code != "" {
		e["code"] = code
	}
	if message != "" {
		e["message"] = message
	}
	return e
}
