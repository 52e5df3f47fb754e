package tasks

type Kind string

const (
	KindMoveTo Kind = "MOVE_TO"
)

// MovementTask is an agent's in-progress travel order.
type MovementTask struct {
	TaskID      string
	Kind        Kind
	Target      Vec3i
	Tolerance   float64
	StartPos    Vec3i
	StartedTick uint64
}

// Vec3i is duplicated here to avoid import cycles (tasks is used by world).
type Vec3i struct{ X, Y, Z int }
