package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/joachimaross/zeekyflow/internal/types"
	"github.com/joachimaross/zeekyflow/pkg/logs"
)

type executionState string

const (
	stateIdle      executionState = "Idle"
	stateRunning   executionState = "Running"
	stateCompleted executionState = "Completed"
	stateFailed    executionState = "Failed"
)

type executionTrigger string

const (
	triggerStart    executionTrigger = "Start"
	triggerComplete executionTrigger = "Complete"
	triggerFail     executionTrigger = "Fail"
)

// executionInstance drives one run of a workflow through its state machine:
// Running is the only non-terminal state, and an instance always ends in
// Completed or Failed. A per-action error result does not fail the run; only
// an engine-level error does.
type executionInstance struct {
	engine      *Engine
	workflowID  types.WorkflowID
	triggerData map[string]string

	workflow  *types.Workflow
	execution *types.Execution
	fsm       *stateless.StateMachine
	runErr    error
}

func newExecutionInstance(engine *Engine, workflowID types.WorkflowID, triggerData map[string]string) *executionInstance {
	return &executionInstance{
		engine:      engine,
		workflowID:  workflowID,
		triggerData: triggerData,
	}
}

// Start runs the execution to a terminal state and persists it exactly once.
// If the workflow does not exist there is nothing to run and no record is
// created.
func (ei *executionInstance) Start(ctx context.Context) (*types.Execution, error) {
	workflow, err := ei.engine.store.Get(ei.engine.ctx, ei.workflowID)
	if err != nil {
		logs.Warn(ei.engine.ctx, "execution aborted, workflow not found", "workflow", ei.workflowID)
		return nil, err
	}
	ei.workflow = workflow

	ei.execution = &types.Execution{
		ID:           types.NewExecutionID(),
		WorkflowID:   workflow.ID,
		WorkflowName: workflow.Name,
		Status:       types.ExecutionStatusRunning,
		StartTime:    time.Now(),
		TriggerData:  ei.triggerData,
		Results:      []types.ActionResult{},
	}

	ei.fsm = stateless.NewStateMachine(stateIdle)
	ei.fsm.Configure(stateIdle).
		Permit(triggerStart, stateRunning)
	ei.fsm.Configure(stateRunning).
		OnEntry(ei.run).
		Permit(triggerComplete, stateCompleted).
		Permit(triggerFail, stateFailed)
	ei.fsm.Configure(stateCompleted).
		OnEntry(ei.onCompleted)
	ei.fsm.Configure(stateFailed).
		OnEntry(ei.onFailed)

	logs.Debug(ei.engine.ctx, "starting execution",
		"execution", ei.execution.ID, "workflow", workflow.ID, "actions", len(workflow.Actions))
	if err := ei.fsm.Fire(triggerStart); err != nil {
		return nil, err
	}

	// Terminal record first, notification second; a persistence failure must
	// surface to the caller rather than disappear.
	if err := ei.engine.store.RecordExecution(ei.engine.ctx, ei.execution); err != nil {
		logs.Error(ei.engine.ctx, "failed to persist execution",
			"execution", ei.execution.ID, "workflow", workflow.ID, "error", err)
		ei.engine.notifier.Notify(ei.engine.ctx, NoticeError,
			fmt.Sprintf("workflow %q: failed to record execution: %s", workflow.Name, err))
		return nil, fmt.Errorf("recording execution %s: %w", ei.execution.ID, err)
	}

	ei.engine.notifyTerminal(ei.execution)
	return ei.execution, nil
}

// run iterates the actions strictly in order. Every ActionResult is appended
// regardless of its status, so a failed step never prevents later steps from
// running (possibly with an unresolved variable left as literal text).
func (ei *executionInstance) run(ctx context.Context, _ ...interface{}) error {
	defer func() {
		if r := recover(); r != nil {
			ei.runErr = fmt.Errorf("execution panicked: %v", r)
			ei.fsm.Fire(triggerFail)
		}
	}()

	for _, action := range ei.workflow.Actions {
		// Engine context death between actions is an engine-level error, not
		// an action error.
		if err := ei.engine.ctx.Err(); err != nil {
			ei.runErr = fmt.Errorf("execution interrupted: %w", err)
			ei.fsm.Fire(triggerFail)
			return nil
		}

		result := ei.engine.executor.Execute(ei.engine.ctx, action, ei.execution.Results)
		ei.execution.Results = append(ei.execution.Results, result)
	}

	ei.fsm.Fire(triggerComplete)
	return nil
}

func (ei *executionInstance) onCompleted(ctx context.Context, _ ...interface{}) error {
	now := time.Now()
	ei.execution.Status = types.ExecutionStatusCompleted
	ei.execution.EndTime = &now
	logs.Debug(ei.engine.ctx, "execution completed",
		"execution", ei.execution.ID, "workflow", ei.workflowID, "results", len(ei.execution.Results))
	return nil
}

func (ei *executionInstance) onFailed(ctx context.Context, _ ...interface{}) error {
	now := time.Now()
	ei.execution.Status = types.ExecutionStatusFailed
	ei.execution.EndTime = &now
	if ei.runErr != nil {
		ei.execution.Error = ei.runErr.Error()
	}
	logs.Warn(ei.engine.ctx, "execution failed",
		"execution", ei.execution.ID, "workflow", ei.workflowID, "error", ei.execution.Error)
	return nil
}
