package world

import (
	"math"

	"botscript.ai/internal/protocol"
	"botscript.ai/internal/sim/world/logic/movement"
)

const maxDetourDepth = 16

type worldGrid struct{ w *World }

func (g worldGrid) InBounds(p movement.Pos) bool { return g.w.inBounds(Vec3i{X: p.X, Z: p.Z}) }
func (g worldGrid) Blocked(p movement.Pos) bool  { return g.w.isBlocked(Vec3i{X: p.X, Z: p.Z}) }

// arrived reports whether pos is within the MOVE_TO tolerance of target.
func arrived(pos, target Vec3i, tolerance float64) bool {
	return distXZ(pos, target) <= int(math.Ceil(tolerance))
}

func (w *World) systemMovement(nowTick uint64) {
	for _, a := range w.sortedAgents() {
		mt := a.MoveTask
		if mt == nil {
			continue
		}
		target := v3FromTask(mt.Target)
		if arrived(a.Pos, target, mt.Tolerance) {
			w.finishMove(a, nowTick)
			continue
		}

		next, ok := movement.Step(
			movement.Pos{X: a.Pos.X, Z: a.Pos.Z},
			movement.Pos{X: target.X, Z: target.Z},
			maxDetourDepth,
			worldGrid{w: w},
		)
		if !ok {
			a.MoveTask = nil
			a.AddEvent(protocol.Event{"t": nowTick, "type": "TASK_FAIL", "task_id": mt.TaskID, "code": protocol.ErrBlocked, "message": "no path"})
			continue
		}
		a.Pos = Vec3i{X: next.X, Y: a.Pos.Y, Z: next.Z}
		if arrived(a.Pos, target, mt.Tolerance) {
			w.finishMove(a, nowTick)
		}
	}
}

func (w *World) finishMove(a *Agent, nowTick uint64) {
	mt := a.MoveTask
	a.MoveTask = nil
	a.AddEvent(protocol.Event{"t": nowTick, "type": "TASK_DONE", "task_id": mt.TaskID, "kind": string(mt.Kind)})
}
