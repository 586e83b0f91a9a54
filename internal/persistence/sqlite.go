package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/davidroman0O/comfylite3"

	"github.com/joachimaross/zeekyflow/internal/registry"
	"github.com/joachimaross/zeekyflow/internal/types"
	"github.com/joachimaross/zeekyflow/pkg/logs"
)

// SQLiteStore persists workflows and the execution history in a comfylite3
// backed SQLite database, so state survives a process restart. Opaque
// payloads travel as rtl blobs; timestamps as unix milliseconds.
type SQLiteStore struct {
	comfy        *comfylite3.ComfyDB
	db           *sql.DB
	reg          *registry.Registry
	historyLimit int
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS workflows (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	status          TEXT NOT NULL,
	created_at      INTEGER NOT NULL,
	execution_count INTEGER NOT NULL DEFAULT 0,
	last_run_at     INTEGER,
	trigger_type    TEXT NOT NULL,
	trigger_config  BLOB,
	actions         BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_workflows_status ON workflows(status);

CREATE TABLE IF NOT EXISTS executions (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	id            TEXT NOT NULL,
	workflow_id   TEXT NOT NULL,
	workflow_name TEXT NOT NULL,
	status        TEXT NOT NULL,
	start_time    INTEGER NOT NULL,
	end_time      INTEGER,
	error         TEXT NOT NULL DEFAULT '',
	trigger_data  BLOB,
	results       BLOB
);
`

// NewSQLiteStore opens (or creates) the database at path. An empty path means
// an in-memory database.
func NewSQLiteStore(ctx context.Context, reg *registry.Registry, path string, historyLimit int) (*SQLiteStore, error) {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}

	optsComfy := []comfylite3.ComfyOption{}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
			return nil, err
		}
		optsComfy = append(optsComfy, comfylite3.WithPath(path))
	} else {
		optsComfy = append(optsComfy, comfylite3.WithMemory())
	}

	comfy, err := comfylite3.New(optsComfy...)
	if err != nil {
		return nil, err
	}

	db := comfylite3.OpenDB(
		comfy,
		comfylite3.WithOption("_fk=1"),
		comfylite3.WithOption("cache=shared"),
		comfylite3.WithOption("mode=rwc"),
		comfylite3.WithForeignKeys(),
	)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logs.Debug(ctx, "sqlite store opened", "path", path, "historyLimit", historyLimit)
	return &SQLiteStore{
		comfy:        comfy,
		db:           db,
		reg:          reg,
		historyLimit: historyLimit,
	}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, name string, trigger types.TriggerSpec, actions []types.ActionSpec) (*types.Workflow, error) {
	if err := validate(s.reg, trigger, actions); err != nil {
		return nil, err
	}
	workflow := newWorkflow(name, trigger, actions)

	triggerConfig, err := encodeConfig(trigger.Config)
	if err != nil {
		return nil, err
	}
	actionsBlob, err := encodeActions(actions)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflows (id, name, status, created_at, execution_count, trigger_type, trigger_config, actions)
		 VALUES (?, ?, ?, ?, 0, ?, ?, ?)`,
		string(workflow.ID), workflow.Name, string(workflow.Status),
		workflow.CreatedAt.UnixMilli(), workflow.Trigger.Type, triggerConfig, actionsBlob,
	)
	if err != nil {
		return nil, err
	}

	logs.Debug(ctx, "workflow created", "id", workflow.ID, "name", name)
	return workflow, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id types.WorkflowID) (*types.Workflow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, status, created_at, execution_count, last_run_at, trigger_type, trigger_config, actions
		 FROM workflows WHERE id = ?`, string(id))
	workflow, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return workflow, err
}

func (s *SQLiteStore) ListActive(ctx context.Context) ([]*types.Workflow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, status, created_at, execution_count, last_run_at, trigger_type, trigger_config, actions
		 FROM workflows WHERE status = ? ORDER BY created_at`, string(types.WorkflowStatusActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	workflows := []*types.Workflow{}
	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, workflow)
	}
	return workflows, rows.Err()
}

func (s *SQLiteStore) SetStatus(ctx context.Context, id types.WorkflowID, status types.WorkflowStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE workflows SET status = ? WHERE id = ?`, string(status), string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id types.WorkflowID) error {
	// Idempotent; history rows keep the workflow id for audit.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, string(id)); err != nil {
		return err
	}
	logs.Debug(ctx, "workflow deleted", "id", id)
	return nil
}

func (s *SQLiteStore) RecordExecution(ctx context.Context, execution *types.Execution) error {
	if !execution.Terminal() {
		return fmt.Errorf("%w: %s", ErrNotTerminal, execution.ID)
	}

	triggerData, err := encodeConfig(execution.TriggerData)
	if err != nil {
		return err
	}
	results, err := encodeResults(execution.Results)
	if err != nil {
		return err
	}

	var endTime sql.NullInt64
	if execution.EndTime != nil {
		endTime = sql.NullInt64{Int64: execution.EndTime.UnixMilli(), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO executions (id, workflow_id, workflow_name, status, start_time, end_time, error, trigger_data, results)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(execution.ID), string(execution.WorkflowID), execution.WorkflowName,
		string(execution.Status), execution.StartTime.UnixMilli(), endTime,
		execution.Error, triggerData, results,
	); err != nil {
		tx.Rollback()
		return err
	}

	// Evict oldest past the cap, by insertion order across all workflows.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM executions WHERE seq NOT IN (SELECT seq FROM executions ORDER BY seq DESC LIMIT ?)`,
		s.historyLimit,
	); err != nil {
		tx.Rollback()
		return err
	}

	// Additive count, last-write-wins start time; no-op when the workflow is
	// already gone.
	if _, err := tx.ExecContext(ctx,
		`UPDATE workflows SET execution_count = execution_count + 1, last_run_at = ? WHERE id = ?`,
		execution.StartTime.UnixMilli(), string(execution.WorkflowID),
	); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStore) History(ctx context.Context, limit int) ([]*types.Execution, error) {
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workflow_id, workflow_name, status, start_time, end_time, error, trigger_data, results
		 FROM executions ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	executions := []*types.Execution{}
	for rows.Next() {
		var (
			execution   types.Execution
			id          string
			workflowID  string
			status      string
			startTime   int64
			endTime     sql.NullInt64
			triggerData []byte
			results     []byte
		)
		if err := rows.Scan(&id, &workflowID, &execution.WorkflowName, &status,
			&startTime, &endTime, &execution.Error, &triggerData, &results); err != nil {
			return nil, err
		}
		execution.ID = types.ExecutionID(id)
		execution.WorkflowID = types.WorkflowID(workflowID)
		execution.Status = types.ExecutionStatus(status)
		execution.StartTime = time.UnixMilli(startTime)
		if endTime.Valid {
			t := time.UnixMilli(endTime.Int64)
			execution.EndTime = &t
		}
		if execution.TriggerData, err = decodeConfig(triggerData); err != nil {
			return nil, err
		}
		if execution.Results, err = decodeResults(results); err != nil {
			return nil, err
		}
		executions = append(executions, &execution)
	}
	return executions, rows.Err()
}

func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return err
	}
	return s.comfy.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*types.Workflow, error) {
	var (
		workflow      types.Workflow
		id            string
		status        string
		createdAt     int64
		lastRunAt     sql.NullInt64
		triggerConfig []byte
		actions       []byte
	)
	err := row.Scan(&id, &workflow.Name, &status, &createdAt,
		&workflow.ExecutionCount, &lastRunAt, &workflow.Trigger.Type, &triggerConfig, &actions)
	if err != nil {
		return nil, err
	}
	workflow.ID = types.WorkflowID(id)
	workflow.Status = types.WorkflowStatus(status)
	workflow.CreatedAt = time.UnixMilli(createdAt)
	if lastRunAt.Valid {
		t := time.UnixMilli(lastRunAt.Int64)
		workflow.LastRunAt = &t
	}
	if workflow.Trigger.Config, err = decodeConfig(triggerConfig); err != nil {
		return nil, err
	}
	if workflow.Actions, err = decodeActions(actions); err != nil {
		return nil, err
	}
	return &workflow, nil
}
