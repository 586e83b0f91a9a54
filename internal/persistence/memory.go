package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-memdb"
	"github.com/sasha-s/go-deadlock"

	"github.com/joachimaross/zeekyflow/internal/registry"
	"github.com/joachimaross/zeekyflow/internal/types"
	"github.com/joachimaross/zeekyflow/pkg/logs"
)

const tableWorkflows = "workflows"

// MemoryStore keeps workflows in a go-memdb table and the execution history
// in a capped insertion-ordered ring. Suited for tests and embedders that do
// not need recovery across restarts.
type MemoryStore struct {
	db  *memdb.MemDB
	reg *registry.Registry

	historyMu    deadlock.Mutex
	history      []*types.Execution
	historyLimit int
}

func memorySchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableWorkflows: {
				Name: tableWorkflows,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"status": {
						Name:    "status",
						Indexer: &memdb.StringFieldIndex{Field: "Status"},
					},
				},
			},
		},
	}
}

func NewMemoryStore(reg *registry.Registry, historyLimit int) (*MemoryStore, error) {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	db, err := memdb.NewMemDB(memorySchema())
	if err != nil {
		return nil, err
	}
	return &MemoryStore{
		db:           db,
		reg:          reg,
		historyLimit: historyLimit,
	}, nil
}

func (s *MemoryStore) Create(ctx context.Context, name string, trigger types.TriggerSpec, actions []types.ActionSpec) (*types.Workflow, error) {
	if err := validate(s.reg, trigger, actions); err != nil {
		return nil, err
	}
	workflow := newWorkflow(name, trigger, actions)

	// Insert a copy; the record must not share maps with the caller's specs.
	txn := s.db.Txn(true)
	if err := txn.Insert(tableWorkflows, workflow.Clone()); err != nil {
		txn.Abort()
		return nil, err
	}
	txn.Commit()

	logs.Debug(ctx, "workflow created", "id", workflow.ID, "name", name)
	return workflow.Clone(), nil
}

func (s *MemoryStore) Get(ctx context.Context, id types.WorkflowID) (*types.Workflow, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableWorkflows, "id", string(id))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return raw.(*types.Workflow).Clone(), nil
}

func (s *MemoryStore) ListActive(ctx context.Context) ([]*types.Workflow, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableWorkflows, "status", string(types.WorkflowStatusActive))
	if err != nil {
		return nil, err
	}

	workflows := []*types.Workflow{}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		workflows = append(workflows, raw.(*types.Workflow).Clone())
	}
	return workflows, nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, id types.WorkflowID, status types.WorkflowStatus) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableWorkflows, "id", string(id))
	if err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	updated := raw.(*types.Workflow).Clone()
	updated.Status = status
	if err := txn.Insert(tableWorkflows, updated); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id types.WorkflowID) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableWorkflows, "id", string(id))
	if err != nil {
		return err
	}
	if raw == nil {
		// idempotent
		return nil
	}
	if err := txn.Delete(tableWorkflows, raw); err != nil && !errors.Is(err, memdb.ErrNotFound) {
		return err
	}
	txn.Commit()
	logs.Debug(ctx, "workflow deleted", "id", id)
	return nil
}

func (s *MemoryStore) RecordExecution(ctx context.Context, execution *types.Execution) error {
	if !execution.Terminal() {
		return fmt.Errorf("%w: %s", ErrNotTerminal, execution.ID)
	}

	// Stats update first so a live workflow and its history entry move
	// together under the single memdb writer.
	txn := s.db.Txn(true)
	raw, err := txn.First(tableWorkflows, "id", string(execution.WorkflowID))
	if err != nil {
		txn.Abort()
		return err
	}
	if raw != nil {
		updated := raw.(*types.Workflow).Clone()
		updated.ExecutionCount++
		start := execution.StartTime
		updated.LastRunAt = &start
		if err := txn.Insert(tableWorkflows, updated); err != nil {
			txn.Abort()
			return err
		}
	}
	txn.Commit()

	s.historyMu.Lock()
	s.history = append(s.history, execution.Clone())
	if len(s.history) > s.historyLimit {
		s.history = s.history[len(s.history)-s.historyLimit:]
	}
	s.historyMu.Unlock()

	return nil
}

func (s *MemoryStore) History(ctx context.Context, limit int) ([]*types.Execution, error) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}

	// Most recent first by insertion order.
	out := make([]*types.Execution, 0, limit)
	for i := len(s.history) - 1; i >= len(s.history)-limit; i-- {
		out = append(out, s.history[i].Clone())
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
