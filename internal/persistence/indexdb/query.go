package indexdb

import (
	"context"
	"database/sql"

	"botscript.ai/internal/protocol"
)

// Steps returns recorded steps in insertion order. An empty actor means all.
func (s *SQLiteIndex) Steps(ctx context.Context, actor string) ([]protocol.StepMsg, error) {
	q := `SELECT task_id,actor,step,COALESCE(detail,''),start_tick,end_tick,ok,COALESCE(reason,'') FROM steps`
	var args []any
	if actor != "" {
		q += ` WHERE actor=?`
		args = append(args, actor)
	}
	q += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []protocol.StepMsg
	for rows.Next() {
		m := protocol.StepMsg{Type: protocol.TypeStep, ProtocolVersion: protocol.Version}
		var start, end int64
		if err := rows.Scan(&m.TaskID, &m.Actor, &m.Step, &m.Detail, &start, &end, &m.OK, &m.Reason); err != nil {
			return nil, err
		}
		m.StartTick, m.EndTick = uint64(start), uint64(end)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Task looks up one task run.
func (s *SQLiteIndex) Task(ctx context.Context, taskID string) (protocol.TaskMsg, bool, error) {
	m := protocol.TaskMsg{Type: protocol.TypeTask, ProtocolVersion: protocol.Version, TaskID: taskID}
	var start, end int64
	err := s.db.QueryRowContext(ctx,
		`SELECT actor,state,COALESCE(error,''),start_tick,end_tick,resumes FROM tasks WHERE task_id=?`, taskID,
	).Scan(&m.Actor, &m.State, &m.Error, &start, &end, &m.Resumes)
	if err == sql.ErrNoRows {
		return protocol.TaskMsg{}, false, nil
	}
	if err != nil {
		return protocol.TaskMsg{}, false, err
	}
	m.StartTick, m.EndTick = uint64(start), uint64(end)
	return m, true, nil
}

// FailureCounts returns, per step name, how many attempts ended false.
func (s *SQLiteIndex) FailureCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT step, COUNT(*) FROM steps WHERE ok=0 GROUP BY step`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		out[name] = n
	}
	return out, rows.Err()
}

// Rejections counts rejected inputs per error code.
func (s *SQLiteIndex) Rejections(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT COALESCE(code,''), COUNT(*) FROM audits WHERE ok=0 GROUP BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var code string
		var n int
		if err := rows.Scan(&code, &n); err != nil {
			return nil, err
		}
		out[code] = n
	}
	return out, rows.Err()
}

// ActionCount is the number of indexed inputs for agentID.
func (s *SQLiteIndex) ActionCount(ctx context.Context, agentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM actions WHERE agent_id=?`, agentID).Scan(&n)
	return n, err
}
