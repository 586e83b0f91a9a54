package types

import (
	"time"
)

// WorkflowStatus is the lifecycle status of a workflow definition. Only
// active workflows are eligible for trigger-driven execution.
type WorkflowStatus string

const (
	WorkflowStatusActive  WorkflowStatus = "active"
	WorkflowStatusPaused  WorkflowStatus = "paused"
	WorkflowStatusDeleted WorkflowStatus = "deleted"
)

// ExecutionStatus is the status of a single run. Running is the only
// non-terminal state.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// ResultStatus is the outcome of one action within one execution.
type ResultStatus string

const (
	ResultStatusSuccess ResultStatus = "success"
	ResultStatusError   ResultStatus = "error"
)

// TriggerSpec names the condition that can start a workflow plus its
// component-specific configuration.
type TriggerSpec struct {
	Type   string            `json:"type"`
	Config map[string]string `json:"config"`
}

// ActionSpec is one configured step of a workflow's effect sequence.
type ActionSpec struct {
	Type   string            `json:"type"`
	Config map[string]string `json:"config"`
}

// Workflow is a named automation definition: one trigger, an ordered
// non-empty list of actions, and run statistics.
type Workflow struct {
	ID             WorkflowID     `json:"id"`
	Name           string         `json:"name"`
	CreatedAt      time.Time      `json:"created_at"`
	Status         WorkflowStatus `json:"status"`
	Trigger        TriggerSpec    `json:"trigger"`
	Actions        []ActionSpec   `json:"actions"`
	ExecutionCount int            `json:"execution_count"`
	LastRunAt      *time.Time     `json:"last_run_at,omitempty"`
}

// ActionResult is the recorded outcome of one action within one execution.
// Exactly one of Result or Error is meaningful, depending on Status.
type ActionResult struct {
	Type     string        `json:"type"`
	Status   ResultStatus  `json:"status"`
	Result   string        `json:"result,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Execution is one run of a workflow. WorkflowName is cached at start time so
// history entries stay readable after the workflow itself is deleted.
// Results holds one entry per action, in action order, success or not.
type Execution struct {
	ID           ExecutionID       `json:"id"`
	WorkflowID   WorkflowID        `json:"workflow_id"`
	WorkflowName string            `json:"workflow_name"`
	Status       ExecutionStatus   `json:"status"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      *time.Time        `json:"end_time,omitempty"`
	Error        string            `json:"error,omitempty"`
	TriggerData  map[string]string `json:"trigger_data,omitempty"`
	Results      []ActionResult    `json:"results"`
}

// Terminal reports whether the execution reached a final state.
func (e *Execution) Terminal() bool {
	return e.Status == ExecutionStatusCompleted || e.Status == ExecutionStatusFailed
}

// Clone returns a deep copy so store internals are never shared with callers.
func (w *Workflow) Clone() *Workflow {
	c := *w
	c.Trigger.Config = cloneConfig(w.Trigger.Config)
	c.Actions = make([]ActionSpec, len(w.Actions))
	for i, a := range w.Actions {
		c.Actions[i] = ActionSpec{Type: a.Type, Config: cloneConfig(a.Config)}
	}
	if w.LastRunAt != nil {
		t := *w.LastRunAt
		c.LastRunAt = &t
	}
	return &c
}

// Clone returns a deep copy of the execution record.
func (e *Execution) Clone() *Execution {
	c := *e
	c.TriggerData = cloneConfig(e.TriggerData)
	c.Results = make([]ActionResult, len(e.Results))
	copy(c.Results, e.Results)
	if e.EndTime != nil {
		t := *e.EndTime
		c.EndTime = &t
	}
	return &c
}

func cloneConfig(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
