package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	plog "botscript.ai/internal/persistence/log"
)

var exampleConfig = filepath.Join("..", "config", "testdata", "botrun.yaml")

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, path := range [][]string{{"run"}, {"validate"}, {"trace", "cat"}, {"trace", "steps"}, {"trace", "failures"}} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err, "%v", path)
		assert.Equal(t, path[len(path)-1], sub.Name())
	}
	runCmd, _, _ := cmd.Find([]string{"run"})
	ticks := runCmd.Flags().Lookup("ticks")
	require.NotNil(t, ticks)
	assert.Equal(t, "-1", ticks.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "validate", "--config", exampleConfig)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", "--config", exampleConfig)
	require.NoError(t, err)
	assert.Equal(t, "ok: 2 actors, 10 steps, 2 agents\n", out)

	out, err = execute(t, "--format", "json", "validate", "--config", exampleConfig)
	require.NoError(t, err)
	var resp struct {
		Status string          `json:"status"`
		Data   validateSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 10, resp.Data.Steps)
}

func TestValidate_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("actors:\n  - id: ghost\n    steps: [{op: close}]\n"), 0o644))
	_, err := execute(t, "validate", "--config", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestRunAndInspect(t *testing.T) {
	dir := t.TempDir()
	traceDir := filepath.Join(dir, "trace")
	db := filepath.Join(dir, "index.db")

	out, err := execute(t, "run", "--config", exampleConfig, "--trace-dir", traceDir, "--db", db)
	require.NoError(t, err, out)
	assert.Contains(t, out, "bob")
	assert.Contains(t, out, "FINISHED")

	files, err := plog.Glob(traceDir, "trace")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	out, err = execute(t, append([]string{"trace", "cat", "--type", "TASK"}, files...)...)
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count([]byte(out), []byte("TASK ")))

	out, err = execute(t, "trace", "steps", "--db", db, "--actor", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "wait_ticks")
	assert.Contains(t, out, "equip")

	out, err = execute(t, "--format", "json", "trace", "failures", "--db", db)
	require.NoError(t, err)
	var resp struct {
		Data failureSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Empty(t, resp.Data.Steps)
}

func TestRun_FailedPlanExitCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fail.yaml")
	doc := "world:\n  agents: [{id: bob}]\n  containers: [{id: box, type: CHEST, pos: [1, 0, 0]}]\n" +
		"actors:\n  - id: bob\n    steps:\n      - {op: interact, target: box}\n      - {op: withdraw, item: gold, count: 1}\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	out, err := execute(t, "run", "--config", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "step 1 (withdraw)")
}

func TestTraceSteps_MissingDB(t *testing.T) {
	_, err := execute(t, "trace", "steps", "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("x")))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "m", errors.New("x"))))
}
