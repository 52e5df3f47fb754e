package log

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"botscript.ai/internal/actions"
	"botscript.ai/internal/protocol"
	"botscript.ai/internal/sim/world"
)

// Trace line types beyond the protocol's STEP and TASK.
const (
	TypeTick  = "TICK"
	TypeAudit = "AUDIT"
)

type tickLine struct {
	Type string `json:"type"`
	world.TickLogEntry
}

type auditLine struct {
	Type string `json:"type"`
	world.AuditEntry
}

// TraceWriter records steps, task runs, applied inputs and input outcomes
// into one compressed JSONL stream. It satisfies actions.Recorder,
// world.TickLogger and world.AuditLogger.
type TraceWriter struct {
	w      *JSONLZstdWriter
	log    zerolog.Logger
	failed atomic.Int64
}

func NewTraceWriter(dir string, log zerolog.Logger) *TraceWriter {
	return &TraceWriter{
		w:   NewJSONLZstdWriter(dir, "trace"),
		log: log.With().Str("component", "trace").Logger(),
	}
}

func (t *TraceWriter) write(v any) error {
	if err := t.w.Write(v); err != nil {
		if t.failed.Add(1) == 1 {
			t.log.Error().Err(err).Msg("trace write failed")
		}
		return err
	}
	return nil
}

// RecordStep never fails the caller; errors are counted and logged once.
func (t *TraceWriter) RecordStep(r actions.StepRecord) { _ = t.write(r.Msg()) }

func (t *TraceWriter) RecordTask(m protocol.TaskMsg) error {
	m.Type = protocol.TypeTask
	return t.write(m)
}

func (t *TraceWriter) WriteTick(e world.TickLogEntry) error {
	return t.write(tickLine{Type: TypeTick, TickLogEntry: e})
}

func (t *TraceWriter) WriteAudit(e world.AuditEntry) error {
	return t.write(auditLine{Type: TypeAudit, AuditEntry: e})
}

func (t *TraceWriter) Failed() int64   { return t.failed.Load() }
func (t *TraceWriter) Lines() int64    { return t.w.Lines() }
func (t *TraceWriter) Files() []string { return t.w.Files() }
func (t *TraceWriter) Close() error    { return t.w.Close() }

// Line is one decoded trace line. Exactly one payload field is set.
type Line struct {
	Type  string
	Step  *protocol.StepMsg
	Task  *protocol.TaskMsg
	Tick  *world.TickLogEntry
	Audit *world.AuditEntry
}

// DecodeLine parses one trace line by its type tag.
func DecodeLine(b []byte) (Line, error) {
	base, err := protocol.DecodeBase(b)
	if err != nil {
		return Line{}, err
	}
	l := Line{Type: base.Type}
	switch base.Type {
	case protocol.TypeStep:
		l.Step = &protocol.StepMsg{}
		err = json.Unmarshal(b, l.Step)
	case protocol.TypeTask:
		l.Task = &protocol.TaskMsg{}
		err = json.Unmarshal(b, l.Task)
	case TypeTick:
		l.Tick = &world.TickLogEntry{}
		err = json.Unmarshal(b, l.Tick)
	case TypeAudit:
		l.Audit = &world.AuditEntry{}
		err = json.Unmarshal(b, l.Audit)
	default:
		err = fmt.Errorf("unknown trace line type %q", base.Type)
	}
	return l, err
}

// ReadTrace decodes every line of a trace file.
func ReadTrace(path string, fn func(Line) error) error {
	return ReadFile(path, func(b []byte) error {
		l, err := DecodeLine(b)
		if err != nil {
			return err
		}
		return fn(l)
	})
}
