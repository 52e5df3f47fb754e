// Package indexdb keeps a queryable SQLite index of script runs next to the
// JSONL trace.
package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"botscript.ai/internal/actions"
	"botscript.ai/internal/protocol"
	"botscript.ai/internal/sim/world"
)

var ErrClosed = errors.New("indexdb: closed")

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropStep  atomic.Uint64
	dropTask  atomic.Uint64
	dropTick  atomic.Uint64
	dropAudit atomic.Uint64
}

type reqKind int

const (
	reqStep reqKind = iota + 1
	reqTask
	reqTick
	reqAudit
	reqSync
)

type req struct {
	kind reqKind

	step  protocol.StepMsg
	task  protocol.TaskMsg
	tick  world.TickLogEntry
	audit world.AuditEntry
	done  chan struct{}
}

type Stats struct {
	QueueDepth     int
	QueueCapacity  int
	DropStepTotal  uint64
	DropTaskTotal  uint64
	DropTickTotal  uint64
	DropAuditTotal uint64
}

// OpenSQLite opens (creating if needed) the index at path. ":memory:" is
// accepted for tests.
func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id TEXT NOT NULL,
			actor TEXT NOT NULL,
			step TEXT NOT NULL,
			detail TEXT,
			start_tick INTEGER NOT NULL,
			end_tick INTEGER NOT NULL,
			ok INTEGER NOT NULL,
			reason TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_steps_actor ON steps(actor, id);`,
		`CREATE INDEX IF NOT EXISTS idx_steps_task ON steps(task_id, id);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			task_id TEXT PRIMARY KEY,
			actor TEXT NOT NULL,
			state TEXT NOT NULL,
			error TEXT,
			start_tick INTEGER NOT NULL,
			end_tick INTEGER NOT NULL,
			resumes INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS actions (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			agent_id TEXT NOT NULL,
			act_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_agent_tick ON actions(agent_id, tick);`,
		`CREATE TABLE IF NOT EXISTS audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			ref TEXT,
			target TEXT,
			ok INTEGER NOT NULL,
			code TEXT,
			message TEXT,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor_tick ON audits(actor, tick);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// enqueue never blocks the tick thread: when the writer falls behind the
// request is dropped and counted. The JSONL trace remains the source of truth.
func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

func (s *SQLiteIndex) RecordStep(r actions.StepRecord) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqStep, step: r.Msg()}, &s.dropStep)
}

func (s *SQLiteIndex) RecordTask(m protocol.TaskMsg) error {
	if s == nil {
		return nil
	}
	s.enqueue(req{kind: reqTask, task: m}, &s.dropTask)
	return nil
}

func (s *SQLiteIndex) WriteTick(e world.TickLogEntry) error {
	if s == nil {
		return nil
	}
	s.enqueue(req{kind: reqTick, tick: e}, &s.dropTick)
	return nil
}

func (s *SQLiteIndex) WriteAudit(e world.AuditEntry) error {
	if s == nil {
		return nil
	}
	s.enqueue(req{kind: reqAudit, audit: e}, &s.dropAudit)
	return nil
}

// Sync waits until everything queued before the call is committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropStepTotal:  s.dropStep.Load(),
		DropTaskTotal:  s.dropTask.Load(),
		DropTickTotal:  s.dropTick.Load(),
		DropAuditTotal: s.dropAudit.Load(),
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertStep, _ := s.db.Prepare(`INSERT INTO steps(task_id,actor,step,detail,start_tick,end_tick,ok,reason) VALUES(?,?,?,?,?,?,?,?)`)
	insertTask, _ := s.db.Prepare(`INSERT OR REPLACE INTO tasks(task_id,actor,state,error,start_tick,end_tick,resumes) VALUES(?,?,?,?,?,?,?)`)
	insertAction, _ := s.db.Prepare(`INSERT OR REPLACE INTO actions(tick,seq,agent_id,act_json) VALUES(?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(tick,seq,actor,action,ref,target,ok,code,message) VALUES(?,?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertStep, insertTask, insertAction, insertAudit} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil || tx == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		if r.kind == reqSync {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqStep:
			m := r.step
			exec(insertStep, m.TaskID, m.Actor, m.Step, m.Detail, int64(m.StartTick), int64(m.EndTick), m.OK, m.Reason)

		case reqTask:
			m := r.task
			exec(insertTask, m.TaskID, m.Actor, m.State, m.Error, int64(m.StartTick), int64(m.EndTick), m.Resumes)

		case reqTick:
			for i, a := range r.tick.Actions {
				actJSON, _ := json.Marshal(a.Act)
				if !exec(insertAction, int64(r.tick.Tick), i, a.AgentID, string(actJSON)) {
					break
				}
			}

		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			exec(insertAudit, int64(a.Tick), seq, a.Actor, a.Action, a.Ref, a.Target, a.OK, a.Code, a.Message)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
