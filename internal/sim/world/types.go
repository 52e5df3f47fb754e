package world

import (
	"botscript.ai/internal/sim/tasks"
	"botscript.ai/internal/sim/world/logic/mathx"
)

type Vec3i struct {
	X int
	Y int
	Z int
}

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func VecFromArray(a [3]int) Vec3i { return Vec3i{X: a[0], Y: a[1], Z: a[2]} }

func Manhattan(a, b Vec3i) int {
	return mathx.AbsInt(a.X-b.X) + mathx.AbsInt(a.Y-b.Y) + mathx.AbsInt(a.Z-b.Z)
}

// distXZ ignores height; movement happens on a flat plane.
func distXZ(a, b Vec3i) int {
	return mathx.AbsInt(a.X-b.X) + mathx.AbsInt(a.Z-b.Z)
}

// DistXZ is the horizontal Manhattan distance used by movement and interact
// range checks.
func DistXZ(a, b Vec3i) int { return distXZ(a, b) }

func v3ToTask(v Vec3i) tasks.Vec3i   { return tasks.Vec3i{X: v.X, Y: v.Y, Z: v.Z} }
func v3FromTask(v tasks.Vec3i) Vec3i { return Vec3i{X: v.X, Y: v.Y, Z: v.Z} }
