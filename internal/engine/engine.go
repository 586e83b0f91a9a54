package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joachimaross/zeekyflow/internal/executor"
	"github.com/joachimaross/zeekyflow/internal/persistence"
	"github.com/joachimaross/zeekyflow/internal/registry"
	"github.com/joachimaross/zeekyflow/internal/types"
	"github.com/joachimaross/zeekyflow/pkg/logs"
)

const DefaultExecutionWorkers = 5

// NoticeKind classifies the notification side effect emitted when an
// execution reaches a terminal state.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notifier receives the user-facing side-effect notifications; display is a
// collaborator concern (toast, log line, websocket push).
type Notifier interface {
	Notify(ctx context.Context, kind NoticeKind, message string)
}

type logNotifier struct{}

func (logNotifier) Notify(ctx context.Context, kind NoticeKind, message string) {
	if kind == NoticeError {
		logs.Error(ctx, message)
		return
	}
	logs.Info(ctx, message)
}

func NewLogNotifier() Notifier { return logNotifier{} }

// Engine orchestrates executions: it loads the workflow, drives the action
// executor action by action on a pool worker, persists the terminal record
// exactly once, and emits the notification side effect. Multiple executions
// of the same or different workflows may be in flight concurrently; there is
// no mutual exclusion between overlapping runs of one workflow.
type Engine struct {
	ctx      context.Context
	store    persistence.Store
	reg      *registry.Registry
	executor *executor.Executor
	notifier Notifier
	pool     *executionPool
}

type Config struct {
	Workers       int
	ActionTimeout time.Duration
	Notifier      Notifier
}

func New(ctx context.Context, store persistence.Store, reg *registry.Registry, cfg Config) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultExecutionWorkers
	}
	if cfg.Notifier == nil {
		cfg.Notifier = logNotifier{}
	}

	e := &Engine{
		ctx:      ctx,
		store:    store,
		reg:      reg,
		executor: executor.New(reg, cfg.ActionTimeout),
		notifier: cfg.Notifier,
	}
	e.pool = newExecutionPool(ctx, e, cfg.Workers)
	return e
}

// Submit dispatches one execution and returns without waiting; completion is
// observed through the execution history. This is the dispatcher's contract.
func (e *Engine) Submit(workflowID types.WorkflowID, triggerData map[string]string) error {
	logs.Debug(e.ctx, "submitting execution", "workflow", workflowID)
	_, err := e.pool.Submit(workflowID, triggerData)
	return err
}

// Execute dispatches one execution and waits for its terminal record; the
// manual "run now" path.
func (e *Engine) Execute(ctx context.Context, workflowID types.WorkflowID, triggerData map[string]string) (*types.Execution, error) {
	task, err := e.pool.Submit(workflowID, triggerData)
	if err != nil {
		return nil, err
	}
	resp, err := task.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return resp.Execution, nil
}

// Shutdown drains the pool.
func (e *Engine) Shutdown() error {
	shutdown := errgroup.Group{}
	logs.Debug(e.ctx, "shutting down engine")
	shutdown.Go(func() error {
		return e.pool.Shutdown()
	})
	defer logs.Debug(e.ctx, "engine shutdown complete")
	return shutdown.Wait()
}

// Wait blocks until no execution is queued or in flight.
func (e *Engine) Wait() error {
	return e.pool.Wait()
}

func (e *Engine) notifyTerminal(execution *types.Execution) {
	switch execution.Status {
	case types.ExecutionStatusCompleted:
		e.notifier.Notify(e.ctx, NoticeSuccess,
			fmt.Sprintf("workflow %q executed successfully", execution.WorkflowName))
	case types.ExecutionStatusFailed:
		e.notifier.Notify(e.ctx, NoticeError,
			fmt.Sprintf("workflow %q failed: %s", execution.WorkflowName, execution.Error))
	}
}
