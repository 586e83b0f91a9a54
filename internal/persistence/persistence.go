package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joachimaross/zeekyflow/internal/registry"
	"github.com/joachimaross/zeekyflow/internal/types"
)

var (
	ErrNotFound        = errors.New("workflow not found")
	ErrEmptyActionList = errors.New("workflow must have at least one action")
	ErrNotTerminal     = errors.New("execution is not in a terminal state")
)

// DefaultHistoryLimit caps the execution history across all workflows,
// evicting oldest-first by insertion order.
const DefaultHistoryLimit = 100

// Store is the durable keyed storage of workflow records and the capped
// execution history. All mutating operations are atomic with respect to each
// other for a given workflow id.
type Store interface {
	// Create validates the trigger type and every action type against the
	// component registry, assigns an id and persists the record with
	// status=active and zeroed statistics.
	Create(ctx context.Context, name string, trigger types.TriggerSpec, actions []types.ActionSpec) (*types.Workflow, error)

	// Get returns the workflow or ErrNotFound.
	Get(ctx context.Context, id types.WorkflowID) (*types.Workflow, error)

	// ListActive returns workflows with status=active, the trigger-eligible
	// set used by the dispatcher.
	ListActive(ctx context.Context) ([]*types.Workflow, error)

	// SetStatus flips a workflow between active and paused.
	SetStatus(ctx context.Context, id types.WorkflowID, status types.WorkflowStatus) error

	// Delete removes the workflow. Idempotent; existing execution history
	// referencing the id is untouched.
	Delete(ctx context.Context, id types.WorkflowID) error

	// RecordExecution appends a terminal execution to the capped history and,
	// if the workflow still exists, increments its ExecutionCount and sets
	// LastRunAt to the execution's start time. This is the only place
	// workflow statistics are updated.
	RecordExecution(ctx context.Context, execution *types.Execution) error

	// History returns up to limit execution records, most recent first by
	// insertion order.
	History(ctx context.Context, limit int) ([]*types.Execution, error)

	Close() error
}

// validate checks a definition against the registry before anything is
// persisted; validation errors never surface at run time.
func validate(reg *registry.Registry, trigger types.TriggerSpec, actions []types.ActionSpec) error {
	if len(actions) == 0 {
		return ErrEmptyActionList
	}
	if _, err := reg.Describe(registry.KindTrigger, trigger.Type); err != nil {
		return err
	}
	for i, action := range actions {
		if _, err := reg.Describe(registry.KindAction, action.Type); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}

func newWorkflow(name string, trigger types.TriggerSpec, actions []types.ActionSpec) *types.Workflow {
	return &types.Workflow{
		ID:        types.NewWorkflowID(),
		Name:      name,
		CreatedAt: time.Now(),
		Status:    types.WorkflowStatusActive,
		Trigger:   trigger,
		Actions:   actions,
	}
}
