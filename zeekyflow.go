// Package zeekyflow is a workflow automation engine: a user composes a
// trigger and an ordered list of actions into a named workflow, persists it,
// and executes it on demand or in response to an external event, with a
// durable execution history.
package zeekyflow

import (
	"context"

	"github.com/joachimaross/zeekyflow/internal/dispatcher"
	"github.com/joachimaross/zeekyflow/internal/engine"
	"github.com/joachimaross/zeekyflow/internal/persistence"
	"github.com/joachimaross/zeekyflow/internal/registry"
	"github.com/joachimaross/zeekyflow/internal/types"
	"github.com/joachimaross/zeekyflow/pkg/logs"
)

// Re-exported domain types; collaborators only ever deal in these values.
type (
	Workflow     = types.Workflow
	WorkflowID   = types.WorkflowID
	Execution    = types.Execution
	ExecutionID  = types.ExecutionID
	TriggerSpec  = types.TriggerSpec
	ActionSpec   = types.ActionSpec
	ActionResult = types.ActionResult

	// Component catalog types, so embedders can register their own actions.
	ComponentInfo = registry.ComponentInfo
	ActionHandler = registry.Handler
)

var (
	ErrNotFound             = persistence.ErrNotFound
	ErrEmptyActionList      = persistence.ErrEmptyActionList
	ErrUnknownComponentType = registry.ErrUnknownComponentType
)

// Zeekyflow owns the component registry, the workflow store, the execution
// engine and the trigger dispatcher. Construct one per process and pass it by
// reference; there is no global state.
type Zeekyflow struct {
	ctx    context.Context
	cancel context.CancelFunc

	registry   *registry.Registry
	store      persistence.Store
	engine     *engine.Engine
	dispatcher *dispatcher.Dispatcher
}

func New(ctx context.Context, opts ...Option) (*Zeekyflow, error) {
	cfg := config{
		executionWorkers: engine.DefaultExecutionWorkers,
		historyLimit:     persistence.DefaultHistoryLimit,
		scheduleInterval: dispatcher.DefaultScheduleInterval,
		registerDefaults: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.logger != nil {
		logs.SetLogger(cfg.logger)
	}

	ctx, cancel := context.WithCancel(ctx)

	reg := registry.NewDefault()
	if cfg.registerDefaults {
		registerDefaultActions(reg)
	}

	var store persistence.Store
	var err error
	if cfg.memory {
		store, err = persistence.NewMemoryStore(reg, cfg.historyLimit)
	} else {
		store, err = persistence.NewSQLiteStore(ctx, reg, cfg.path, cfg.historyLimit)
	}
	if err != nil {
		cancel()
		return nil, err
	}

	eng := engine.New(ctx, store, reg, engine.Config{
		Workers:       cfg.executionWorkers,
		ActionTimeout: cfg.actionTimeout,
		Notifier:      cfg.notifier,
	})

	disp := dispatcher.New(ctx, store, eng, cfg.scheduleInterval)
	disp.Start()

	return &Zeekyflow{
		ctx:        ctx,
		cancel:     cancel,
		registry:   reg,
		store:      store,
		engine:     eng,
		dispatcher: disp,
	}, nil
}

// CreateWorkflow validates the definition against the component registry and
// persists it as an active workflow.
func (zf *Zeekyflow) CreateWorkflow(name string, trigger TriggerSpec, actions []ActionSpec) (*Workflow, error) {
	return zf.store.Create(zf.ctx, name, trigger, actions)
}

// GetWorkflow returns a workflow by id, or ErrNotFound.
func (zf *Zeekyflow) GetWorkflow(id WorkflowID) (*Workflow, error) {
	return zf.store.Get(zf.ctx, id)
}

// ListActiveWorkflows returns the trigger-eligible set.
func (zf *Zeekyflow) ListActiveWorkflows() ([]*Workflow, error) {
	return zf.store.ListActive(zf.ctx)
}

// PauseWorkflow removes a workflow from the trigger-eligible set; it can
// still be run manually.
func (zf *Zeekyflow) PauseWorkflow(id WorkflowID) error {
	return zf.store.SetStatus(zf.ctx, id, types.WorkflowStatusPaused)
}

// ResumeWorkflow makes a paused workflow trigger-eligible again.
func (zf *Zeekyflow) ResumeWorkflow(id WorkflowID) error {
	return zf.store.SetStatus(zf.ctx, id, types.WorkflowStatusActive)
}

// DeleteWorkflow removes the workflow; idempotent. Execution history
// referencing the id is retained for audit.
func (zf *Zeekyflow) DeleteWorkflow(id WorkflowID) error {
	return zf.store.Delete(zf.ctx, id)
}

// RunNow executes a workflow manually, with empty trigger data, and waits
// for the terminal execution record. Works for any workflow status.
func (zf *Zeekyflow) RunNow(ctx context.Context, id WorkflowID) (*Execution, error) {
	return zf.engine.Execute(ctx, id, map[string]string{"triggered_by": "manual"})
}

// Execute fires a workflow with the given trigger payload and returns
// immediately; completion is observed via History.
func (zf *Zeekyflow) Execute(id WorkflowID, triggerData map[string]string) error {
	return zf.engine.Submit(id, triggerData)
}

// History returns up to limit execution records, most recent first.
func (zf *Zeekyflow) History(limit int) ([]*Execution, error) {
	return zf.store.History(zf.ctx, limit)
}

// Registry exposes the component catalog, for authoring surfaces and for
// registering additional action types.
func (zf *Zeekyflow) Registry() *registry.Registry {
	return zf.registry
}

// Dispatcher exposes the external trigger entry points (webhook, file
// upload).
func (zf *Zeekyflow) Dispatcher() *dispatcher.Dispatcher {
	return zf.dispatcher
}

// Wait blocks until every in-flight execution has settled.
func (zf *Zeekyflow) Wait() error {
	return zf.engine.Wait()
}

// Close stops the dispatcher, drains the engine and closes the store.
func (zf *Zeekyflow) Close() error {
	zf.dispatcher.Stop()
	err := zf.engine.Shutdown()
	zf.cancel()
	if cerr := zf.store.Close(); err == nil {
		err = cerr
	}
	return err
}
