package protocol

// SubscribeMsg opens an observer stream. An empty Actors list means all.
type SubscribeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Actors          []string `json:"actors,omitempty"`
}

// StepMsg reports the outcome of one composed action step.
type StepMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	TaskID          string `json:"task_id"`
	Actor           string `json:"actor"`
	Step            string `json:"step"`
	Detail          string `json:"detail,omitempty"`
	StartTick       uint64 `json:"start_tick"`
	EndTick         uint64 `json:"end_tick"`
	OK              bool   `json:"ok"`
	Reason          string `json:"reason,omitempty"`
}

// Task states reported in TaskMsg.
const (
	TaskFinished = "FINISHED"
	TaskStopped  = "STOPPED"
	TaskFailed   = "FAILED"
)

// TaskMsg reports the end of a script run.
type TaskMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	TaskID          string `json:"task_id"`
	Actor           string `json:"actor"`
	State           string `json:"state"`
	Error           string `json:"error,omitempty"`
	StartTick       uint64 `json:"start_tick"`
	EndTick         uint64 `json:"end_tick"`
	Resumes         int64  `json:"resumes"`
}
