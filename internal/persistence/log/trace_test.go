package log

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botscript.ai/internal/actions"
	"botscript.ai/internal/protocol"
	"botscript.ai/internal/sim/world"
)

func TestTraceWriterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tw := NewTraceWriter(dir, zerolog.Nop())

	var rec actions.Recorder = tw
	rec.RecordStep(actions.StepRecord{TaskID: "t1", Actor: "bot", Step: "walk_to", StartTick: 1, EndTick: 8, OK: true})
	require.NoError(t, tw.WriteTick(world.TickLogEntry{Tick: 2, Actions: []world.RecordedAction{{AgentID: "bot", Act: protocol.NewAct("bot", 1, nil, nil)}}}))
	require.NoError(t, tw.WriteAudit(world.AuditEntry{Tick: 2, Actor: "bot", Action: "MOVE_TO", OK: true}))
	require.NoError(t, tw.RecordTask(protocol.TaskMsg{TaskID: "t1", Actor: "bot", State: protocol.TaskFinished, EndTick: 9}))
	require.NoError(t, tw.Close())
	assert.Equal(t, int64(4), tw.Lines())
	assert.Zero(t, tw.Failed())

	files, err := Glob(dir, "trace")
	require.NoError(t, err)
	require.Len(t, files, 1)

	var lines []Line
	require.NoError(t, ReadTrace(files[0], func(l Line) error {
		lines = append(lines, l)
		return nil
	}))
	require.Len(t, lines, 4)

	require.NotNil(t, lines[0].Step)
	assert.Equal(t, "walk_to", lines[0].Step.Step)
	assert.Equal(t, uint64(8), lines[0].Step.EndTick)

	require.NotNil(t, lines[1].Tick)
	assert.Equal(t, uint64(2), lines[1].Tick.Tick)
	require.Len(t, lines[1].Tick.Actions, 1)

	require.NotNil(t, lines[2].Audit)
	assert.Equal(t, "MOVE_TO", lines[2].Audit.Action)

	require.NotNil(t, lines[3].Task)
	assert.Equal(t, protocol.TypeTask, lines[3].Type)
	assert.Equal(t, protocol.TaskFinished, lines[3].Task.State)
}

func TestDecodeLineRejectsUnknownType(t *testing.T) {
	_, err := DecodeLine([]byte(`{"type":"NOPE"}`))
	require.Error(t, err)
	_, err = DecodeLine([]byte(`not json`))
	require.Error(t, err)
}
