package actions

import (
	"sync"

	"botscript.ai/internal/protocol"
)

// StepRecord describes one finished helper call, composite or single.
type StepRecord struct {
	TaskID    string `json:"task_id,omitempty"`
	Actor     string `json:"actor"`
	Step      string `json:"step"`
	Detail    string `json:"detail,omitempty"`
	StartTick uint64 `json:"start_tick"`
	EndTick   uint64 `json:"end_tick"`
	OK        bool   `json:"ok"`
	Reason    string `json:"reason,omitempty"`
}

// Msg converts the record to its wire form.
func (r StepRecord) Msg() protocol.StepMsg {
	return protocol.StepMsg{
		Type:            protocol.TypeStep,
		ProtocolVersion: protocol.Version,
		TaskID:          r.TaskID,
		Actor:           r.Actor,
		Step:            r.Step,
		Detail:          r.Detail,
		StartTick:       r.StartTick,
		EndTick:         r.EndTick,
		OK:              r.OK,
		Reason:          r.Reason,
	}
}

type Recorder interface {
	RecordStep(r StepRecord)
}

type RecorderFunc func(StepRecord)

func (f RecorderFunc) RecordStep(r StepRecord) { f(r) }

// Memory keeps every record in order. Safe for concurrent use.
type Memory struct {
	mu   sync.Mutex
	recs []StepRecord
}

func (m *Memory) RecordStep(r StepRecord) {
	m.mu.Lock()
	m.recs = append(m.recs, r)
	m.mu.Unlock()
}

func (m *Memory) Records() []StepRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StepRecord(nil), m.recs...)
}

// Steps returns the step names recorded so far.
func (m *Memory) Steps() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.recs))
	for i, r := range m.recs {
		out[i] = r.Step
	}
	return out
}

type multi []Recorder

func (m multi) RecordStep(r StepRecord) {
	for _, rec := range m {
		rec.RecordStep(r)
	}
}

// Multi fans records out to every non-nil recorder in order.
func Multi(rs ...Recorder) Recorder {
	out := make(multi, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
