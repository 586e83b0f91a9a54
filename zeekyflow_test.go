package zeekyflow

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joachimaross/zeekyflow/internal/types"
)

func newEngine(t *testing.T, opts ...Option) *Zeekyflow {
	t.Helper()
	zf, err := New(context.Background(), append([]Option{WithMemory()}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { zf.Close() })
	return zf
}

func TestTemplateCatalog(t *testing.T) {
	assert.Equal(t, []string{"daily-summary", "file-processor", "smart-notifications"}, Templates())

	template, err := DescribeTemplate("daily-summary")
	require.NoError(t, err)
	assert.Equal(t, "Daily Summary", template.Name)
	assert.Equal(t, "schedule", template.Trigger.Type)
	assert.Equal(t, "18:00", template.Trigger.Config["time"])
	require.Len(t, template.Actions, 2)
	assert.Equal(t, "{{ai_response}}", template.Actions[1].Config["body"])

	_, err = DescribeTemplate("nightly-summary")
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestWorkflowLifecycle(t *testing.T) {
	zf := newEngine(t)

	workflow, err := zf.CreateWorkflowFromTemplate("daily-summary")
	require.NoError(t, err)
	assert.Equal(t, "Daily Summary", workflow.Name)
	assert.Equal(t, types.WorkflowStatusActive, workflow.Status)

	t.Run("Run Now", func(t *testing.T) {
		execution, err := zf.RunNow(context.Background(), workflow.ID)
		require.NoError(t, err)

		assert.Equal(t, types.ExecutionStatusCompleted, execution.Status)
		assert.Equal(t, "manual", execution.TriggerData["triggered_by"])
		require.Len(t, execution.Results, 2)
		assert.Equal(t, "ai-chat", execution.Results[0].Type)
		assert.Equal(t, types.ResultStatusSuccess, execution.Results[0].Status)
		assert.Equal(t, `AI Response to: "Generate a summary of today's activities"`, execution.Results[0].Result)
		assert.Equal(t, "email", execution.Results[1].Type)
		assert.Equal(t, types.ResultStatusSuccess, execution.Results[1].Status)

		got, err := zf.GetWorkflow(workflow.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.ExecutionCount)
		require.NotNil(t, got.LastRunAt)

		history, err := zf.History(5)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, execution.ID, history[0].ID)
	})

	t.Run("Pause And Resume", func(t *testing.T) {
		require.NoError(t, zf.PauseWorkflow(workflow.ID))
		active, err := zf.ListActiveWorkflows()
		require.NoError(t, err)
		assert.Empty(t, active)

		// Manual runs work regardless of status.
		_, err = zf.RunNow(context.Background(), workflow.ID)
		require.NoError(t, err)

		require.NoError(t, zf.ResumeWorkflow(workflow.ID))
		active, err = zf.ListActiveWorkflows()
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, workflow.ID, active[0].ID)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, zf.DeleteWorkflow(workflow.ID))
		_, err := zf.GetWorkflow(workflow.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = zf.RunNow(context.Background(), workflow.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		// History from before the deletion is retained.
		history, err := zf.History(0)
		require.NoError(t, err)
		assert.Len(t, history, 2)
	})
}

func TestResultChaining(t *testing.T) {
	zf := newEngine(t)

	zf.Registry().RegisterAction("capture", ComponentInfo{
		Label:    "Capture",
		Produces: "captured",
	}, func(ctx context.Context, config map[string]string) (string, error) {
		return config["text"], nil
	})

	workflow, err := zf.CreateWorkflow("chained",
		TriggerSpec{Type: "webhook", Config: map[string]string{}},
		[]ActionSpec{
			{Type: "ai-chat", Config: map[string]string{"prompt": "ping"}},
			{Type: "capture", Config: map[string]string{"text": "{{ai_response}}"}},
		})
	require.NoError(t, err)

	execution, err := zf.RunNow(context.Background(), workflow.ID)
	require.NoError(t, err)
	require.Len(t, execution.Results, 2)
	assert.Equal(t, execution.Results[0].Result, execution.Results[1].Result)
}

func TestCreateWorkflowValidation(t *testing.T) {
	zf := newEngine(t)

	_, err := zf.CreateWorkflow("no actions",
		TriggerSpec{Type: "webhook", Config: map[string]string{}}, nil)
	assert.ErrorIs(t, err, ErrEmptyActionList)

	_, err = zf.CreateWorkflow("bad action",
		TriggerSpec{Type: "webhook", Config: map[string]string{}},
		[]ActionSpec{{Type: "teleport"}})
	assert.ErrorIs(t, err, ErrUnknownComponentType)
}

func TestWebhookDispatch(t *testing.T) {
	zf := newEngine(t)

	workflow, err := zf.CreateWorkflowFromTemplate("smart-notifications")
	require.NoError(t, err)

	require.NoError(t, zf.Dispatcher().HandleWebhook(workflow.ID, "POST", `{"event":"deploy"}`))
	require.NoError(t, zf.Wait())

	history, err := zf.History(1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, workflow.ID, history[0].WorkflowID)
	assert.Equal(t, types.ExecutionStatusCompleted, history[0].Status)
	assert.Equal(t, "webhook", history[0].TriggerData["triggered_by"])
	assert.Equal(t, `{"event":"deploy"}`, history[0].TriggerData["webhook_data"])

	t.Run("Method Enforced", func(t *testing.T) {
		err := zf.Dispatcher().HandleWebhook(workflow.ID, "GET", "")
		assert.Error(t, err)
	})
}

func TestFileDispatch(t *testing.T) {
	zf := newEngine(t)

	workflow, err := zf.CreateWorkflowFromTemplate("file-processor")
	require.NoError(t, err)

	require.NoError(t, zf.Dispatcher().HandleFileUpload("report.pdf", 2048))
	require.NoError(t, zf.Wait())

	history, err := zf.History(1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, workflow.ID, history[0].WorkflowID)
	assert.Equal(t, "report.pdf", history[0].TriggerData["file_name"])

	// Non-matching extension fires nothing.
	require.NoError(t, zf.Dispatcher().HandleFileUpload("track.mp3", 10))
	require.NoError(t, zf.Wait())
	history, err = zf.History(0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestHistoryLimitOption(t *testing.T) {
	zf := newEngine(t, WithHistoryLimit(3))

	zf.Registry().RegisterAction("noop", ComponentInfo{},
		func(ctx context.Context, config map[string]string) (string, error) { return "ok", nil })

	workflow, err := zf.CreateWorkflow("chatty",
		TriggerSpec{Type: "webhook", Config: map[string]string{}},
		[]ActionSpec{{Type: "noop", Config: map[string]string{}}})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := zf.RunNow(context.Background(), workflow.ID)
		require.NoError(t, err)
	}

	history, err := zf.History(0)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	got, err := zf.GetWorkflow(workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.ExecutionCount)
}

func TestSQLiteBackedEngine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zeekyflow.db")

	zf, err := New(context.Background(), WithPath(path), WithActionTimeout(10*time.Second))
	require.NoError(t, err)

	workflow, err := zf.CreateWorkflowFromTemplate("daily-summary")
	require.NoError(t, err)
	_, err = zf.RunNow(context.Background(), workflow.ID)
	require.NoError(t, err)
	require.NoError(t, zf.Close())

	reopened, err := New(context.Background(), WithPath(path))
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetWorkflow(workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ExecutionCount)

	history, err := reopened.History(0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, workflow.ID, history[0].WorkflowID)
}
