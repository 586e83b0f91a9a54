package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joachimaross/zeekyflow/internal/persistence"
	"github.com/joachimaross/zeekyflow/internal/registry"
	"github.com/joachimaross/zeekyflow/internal/types"
)

type notice struct {
	kind    NoticeKind
	message string
}

type captureNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (n *captureNotifier) Notify(ctx context.Context, kind NoticeKind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{kind, message})
}

func (n *captureNotifier) all() []notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notice(nil), n.notices...)
}

func newTestRegistry() *registry.Registry {
	reg := registry.NewDefault()
	reg.RegisterAction("greet", registry.ComponentInfo{Produces: "greeting"},
		func(ctx context.Context, config map[string]string) (string, error) {
			return "hello " + config["name"], nil
		})
	reg.RegisterAction("relay", registry.ComponentInfo{Produces: "relayed"},
		func(ctx context.Context, config map[string]string) (string, error) {
			return config["message"], nil
		})
	reg.RegisterAction("fail", registry.ComponentInfo{},
		func(ctx context.Context, config map[string]string) (string, error) {
			return "", errors.New("dependency down")
		})
	reg.RegisterAction("failgreet", registry.ComponentInfo{Produces: "greeting"},
		func(ctx context.Context, config map[string]string) (string, error) {
			return "", errors.New("greeter offline")
		})
	return reg
}

func setup(t *testing.T) (persistence.Store, *captureNotifier, *Engine) {
	t.Helper()
	reg := newTestRegistry()
	store, err := persistence.NewMemoryStore(reg, 0)
	require.NoError(t, err)

	notifier := &captureNotifier{}
	engine := New(context.Background(), store, reg, Config{
		Workers:  2,
		Notifier: notifier,
	})
	t.Cleanup(func() {
		engine.Shutdown()
		store.Close()
	})
	return store, notifier, engine
}

func TestExecuteRunsActionsInOrder(t *testing.T) {
	store, notifier, engine := setup(t)
	ctx := context.Background()

	workflow, err := store.Create(ctx, "chained",
		types.TriggerSpec{Type: "webhook", Config: map[string]string{}},
		[]types.ActionSpec{
			{Type: "greet", Config: map[string]string{"name": "ada"}},
			{Type: "relay", Config: map[string]string{"message": "said: {{greeting}}"}},
		})
	require.NoError(t, err)

	execution, err := engine.Execute(ctx, workflow.ID, map[string]string{"triggered_by": "manual"})
	require.NoError(t, err)

	assert.Equal(t, types.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, workflow.ID, execution.WorkflowID)
	assert.Equal(t, "chained", execution.WorkflowName)
	require.NotNil(t, execution.EndTime)
	assert.Equal(t, "manual", execution.TriggerData["triggered_by"])

	require.Len(t, execution.Results, 2)
	assert.Equal(t, "greet", execution.Results[0].Type)
	assert.Equal(t, "hello ada", execution.Results[0].Result)
	assert.Equal(t, "relay", execution.Results[1].Type)
	assert.Equal(t, "said: hello ada", execution.Results[1].Result)

	got, err := store.Get(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ExecutionCount)
	require.NotNil(t, got.LastRunAt)

	history, err := store.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, execution.ID, history[0].ID)

	notices := notifier.all()
	require.Len(t, notices, 1)
	assert.Equal(t, NoticeSuccess, notices[0].kind)
	assert.Contains(t, notices[0].message, `"chained"`)
}

func TestExecuteContinuesPastActionErrors(t *testing.T) {
	store, _, engine := setup(t)
	ctx := context.Background()

	workflow, err := store.Create(ctx, "resilient",
		types.TriggerSpec{Type: "webhook", Config: map[string]string{}},
		[]types.ActionSpec{
			{Type: "fail", Config: map[string]string{}},
			{Type: "relay", Config: map[string]string{"message": "still here"}},
		})
	require.NoError(t, err)

	execution, err := engine.Execute(ctx, workflow.ID, nil)
	require.NoError(t, err)

	// An action error does not fail the run; every step still produces a result.
	assert.Equal(t, types.ExecutionStatusCompleted, execution.Status)
	require.Len(t, execution.Results, 2)
	assert.Equal(t, types.ResultStatusError, execution.Results[0].Status)
	assert.Equal(t, "dependency down", execution.Results[0].Error)
	assert.Equal(t, types.ResultStatusSuccess, execution.Results[1].Status)
	assert.Equal(t, "still here", execution.Results[1].Result)
}

func TestFailedProducerLeavesPlaceholderLiteral(t *testing.T) {
	store, _, engine := setup(t)
	ctx := context.Background()

	workflow, err := store.Create(ctx, "broken chain",
		types.TriggerSpec{Type: "webhook", Config: map[string]string{}},
		[]types.ActionSpec{
			{Type: "failgreet", Config: map[string]string{}},
			{Type: "relay", Config: map[string]string{"message": "{{greeting}}"}},
		})
	require.NoError(t, err)

	execution, err := engine.Execute(ctx, workflow.ID, nil)
	require.NoError(t, err)

	// A failed step publishes no variable; the reference stays literal and
	// the execution still completes with a full result trail.
	assert.Equal(t, types.ExecutionStatusCompleted, execution.Status)
	require.Len(t, execution.Results, 2)
	assert.Equal(t, types.ResultStatusError, execution.Results[0].Status)
	assert.Equal(t, types.ResultStatusSuccess, execution.Results[1].Status)
	assert.Equal(t, "{{greeting}}", execution.Results[1].Result)
}

func TestExecuteUnknownWorkflow(t *testing.T) {
	store, notifier, engine := setup(t)
	ctx := context.Background()

	_, err := engine.Execute(ctx, types.WorkflowID("workflow_missing"), nil)
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	history, err := store.History(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Empty(t, notifier.all())
}

type brokenStore struct {
	persistence.Store
}

func (brokenStore) RecordExecution(ctx context.Context, execution *types.Execution) error {
	return errors.New("disk full")
}

func TestPersistenceFailureSurfaces(t *testing.T) {
	reg := newTestRegistry()
	inner, err := persistence.NewMemoryStore(reg, 0)
	require.NoError(t, err)
	defer inner.Close()

	notifier := &captureNotifier{}
	engine := New(context.Background(), brokenStore{inner}, reg, Config{Notifier: notifier})
	defer engine.Shutdown()

	workflow, err := inner.Create(context.Background(), "unlucky",
		types.TriggerSpec{Type: "webhook", Config: map[string]string{}},
		[]types.ActionSpec{{Type: "relay", Config: map[string]string{"message": "x"}}})
	require.NoError(t, err)

	_, err = engine.Execute(context.Background(), workflow.ID, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	notices := notifier.all()
	require.Len(t, notices, 1)
	assert.Equal(t, NoticeError, notices[0].kind)
	assert.Contains(t, notices[0].message, "failed to record execution")
}

func TestSubmitIsFireAndForget(t *testing.T) {
	store, _, engine := setup(t)
	ctx := context.Background()

	workflow, err := store.Create(ctx, "background",
		types.TriggerSpec{Type: "webhook", Config: map[string]string{}},
		[]types.ActionSpec{{Type: "relay", Config: map[string]string{"message": "done"}}})
	require.NoError(t, err)

	const runs = 4
	for i := 0; i < runs; i++ {
		require.NoError(t, engine.Submit(workflow.ID, map[string]string{"run": fmt.Sprint(i)}))
	}
	require.NoError(t, engine.Wait())

	history, err := store.History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, history, runs)

	got, err := store.Get(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, runs, got.ExecutionCount)
}

func TestConcurrentExecutions(t *testing.T) {
	store, _, engine := setup(t)
	ctx := context.Background()

	workflow, err := store.Create(ctx, "overlapping",
		types.TriggerSpec{Type: "webhook", Config: map[string]string{}},
		[]types.ActionSpec{{Type: "relay", Config: map[string]string{"message": "ok"}}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	const runs = 6
	errs := make([]error, runs)
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			execCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			_, errs[i] = engine.Execute(execCtx, workflow.ID, nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	got, err := store.Get(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, runs, got.ExecutionCount)
}
