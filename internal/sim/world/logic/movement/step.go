// Package movement holds the deterministic grid stepping rule shared by
// MOVE_TO tasks. All positions lie on the y=0 plane.
package movement

import "botscript.ai/internal/sim/world/logic/mathx"

type Pos struct {
	X int
	Z int
}

// Grid answers passability questions for stepping.
type Grid interface {
	InBounds(p Pos) bool
	Blocked(p Pos) bool
}

func Dist(a, b Pos) int { return mathx.AbsInt(a.X-b.X) + mathx.AbsInt(a.Z-b.Z) }

func (p Pos) passable(g Grid) bool { return g.InBounds(p) && !g.Blocked(p) }

// neighbour order is fixed so that stepping is reproducible.
var dirs = [4]Pos{{X: 1}, {X: -1}, {Z: 1}, {Z: -1}}

// Step returns the next cell on the way from start to target.
//
// The primary axis is the one with the larger remaining distance (ties go to
// X). If that cell is blocked the secondary axis is tried, and if both are
// blocked a bounded breadth-first detour of at most maxDetour cells picks the
// first step of the shortest route that gets strictly closer. ok is false when
// the agent is at the target or boxed in.
func Step(start, target Pos, maxDetour int, g Grid) (next Pos, ok bool) {
	dx := target.X - start.X
	dz := target.Z - start.Z
	if dx == 0 && dz == 0 {
		return start, false
	}

	primary, secondary := start, start
	if mathx.AbsInt(dx) >= mathx.AbsInt(dz) {
		primary.X += sign(dx)
		secondary.Z += sign(dz)
	} else {
		primary.Z += sign(dz)
		secondary.X += sign(dx)
	}
	if primary.passable(g) {
		return primary, true
	}
	if secondary != start && secondary.passable(g) {
		return secondary, true
	}
	return detour(start, target, maxDetour, g)
}

func detour(start, target Pos, maxDepth int, g Grid) (Pos, bool) {
	if maxDepth <= 0 {
		return Pos{}, false
	}
	type node struct {
		p     Pos
		depth int
		first Pos
	}
	startDist := Dist(start, target)
	seen := map[Pos]bool{start: true}
	queue := make([]node, 0, 64)
	for _, d := range dirs {
		np := Pos{X: start.X + d.X, Z: start.Z + d.Z}
		if !np.passable(g) {
			continue
		}
		seen[np] = true
		queue = append(queue, node{p: np, depth: 1, first: np})
	}

	// BFS visits in non-decreasing depth, so the first node that gets closer
	// is on a shortest route; ties resolve to neighbour order.
	for head := 0; head < len(queue); head++ {
		n := queue[head]
		if Dist(n.p, target) < startDist {
			return n.first, true
		}
		if n.depth >= maxDepth {
			continue
		}
		for _, d := range dirs {
			np := Pos{X: n.p.X + d.X, Z: n.p.Z + d.Z}
			if seen[np] || !np.passable(g) {
				continue
			}
			seen[np] = true
			queue = append(queue, node{p: np, depth: n.depth + 1, first: n.first})
		}
	}
	return Pos{}, false
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
