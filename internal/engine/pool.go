package engine

import (
	"context"
	"time"

	"github.com/davidroman0O/retrypool"

	"github.com/joachimaross/zeekyflow/internal/types"
	"github.com/joachimaross/zeekyflow/pkg/logs"
)

// ExecutionRequest is the unit of work the pool carries: which workflow to
// run and the payload supplied by whatever fired it.
type ExecutionRequest struct {
	WorkflowID  types.WorkflowID
	TriggerData map[string]string
}

// ExecutionResponse carries the terminal execution record back to a waiting
// caller.
type ExecutionResponse struct {
	Execution *types.Execution
}

type executionTask = *retrypool.RequestResponse[ExecutionRequest, *ExecutionResponse]

// executionPool fans executions out over retrypool workers. Retrying is
// handled inside the executor per action; a task itself runs once.
type executionPool struct {
	ctx  context.Context
	pool *retrypool.Pool[executionTask]
}

func newExecutionPool(ctx context.Context, engine *Engine, workers int) *executionPool {
	p := &executionPool{ctx: ctx}

	opts := []retrypool.Option[executionTask]{
		retrypool.WithAttempts[executionTask](1),
		retrypool.WithOnTaskSuccess(p.onTaskSuccess),
		retrypool.WithOnTaskFailure(p.onTaskFailure),
		retrypool.WithRoundRobinAssignment[executionTask](),
	}

	poolWorkers := make([]retrypool.Worker[executionTask], 0, workers)
	for i := 0; i < workers; i++ {
		poolWorkers = append(poolWorkers, executionWorker{engine: engine})
	}

	p.pool = retrypool.New(ctx, poolWorkers, opts...)
	return p
}

func (p *executionPool) Submit(workflowID types.WorkflowID, triggerData map[string]string) (executionTask, error) {
	task := retrypool.NewRequestResponse[ExecutionRequest, *ExecutionResponse](ExecutionRequest{
		WorkflowID:  workflowID,
		TriggerData: triggerData,
	})
	if err := p.pool.Submit(task); err != nil {
		return nil, err
	}
	return task, nil
}

func (p *executionPool) Shutdown() error {
	return p.pool.Shutdown()
}

func (p *executionPool) Wait() error {
	return p.pool.WaitWithCallback(p.ctx, func(queueSize, processingCount, deadTaskCount int) bool {
		return queueSize > 0 || processingCount > 0
	}, 100*time.Millisecond)
}

func (p *executionPool) onTaskSuccess(
	controller retrypool.WorkerController[executionTask], workerID int, worker retrypool.Worker[executionTask],
	task executionTask, retries int, totalDuration time.Duration, timeLimit time.Duration,
	maxDuration time.Duration, scheduledTime time.Time, triedWorkers map[int]bool, taskErrors []error,
	durations []time.Duration, queuedAt []time.Time, processedAt []time.Time,
) {
	logs.Debug(p.ctx, "execution task finished",
		"workflow", task.Request.WorkflowID, "worker", workerID, "duration", totalDuration)
}

func (p *executionPool) onTaskFailure(
	controller retrypool.WorkerController[executionTask], workerID int, worker retrypool.Worker[executionTask],
	task executionTask, retries int, totalDuration time.Duration, timeLimit time.Duration,
	maxDuration time.Duration, scheduledTime time.Time, triedWorkers map[int]bool, taskErrors []error,
	durations []time.Duration, queuedAt []time.Time, processedAt []time.Time, err error,
) retrypool.DeadTaskAction {
	logs.Error(p.ctx, "execution task failed",
		"workflow", task.Request.WorkflowID, "worker", workerID, "error", err)
	return retrypool.DeadTaskActionDoNothing
}

// executionWorker runs one execution to its terminal state on a pool worker.
type executionWorker struct {
	engine *Engine
}

func (w executionWorker) Run(ctx context.Context, task executionTask) error {
	instance := newExecutionInstance(w.engine, task.Request.WorkflowID, task.Request.TriggerData)

	execution, err := instance.Start(ctx)
	if err != nil {
		// No workflow, or the terminal record could not be persisted; either
		// way the failure is surfaced, never swallowed.
		task.CompleteWithError(err)
		return err
	}

	task.Complete(&ExecutionResponse{Execution: execution})
	return nil
}
