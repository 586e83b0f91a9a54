package types

import "github.com/google/uuid"

type WorkflowID string

var NoWorkflowID = WorkflowID("")

type ExecutionID string

var NoExecutionID = ExecutionID("")

// IDs keep the "workflow_"/"exec_" prefixes so records stay recognizable in
// persisted history and logs.
func NewWorkflowID() WorkflowID {
	return WorkflowID("workflow_" + uuid.NewString())
}

func NewExecutionID() ExecutionID {
	return ExecutionID("exec_" + uuid.NewString())
}

func (id WorkflowID) String() string { return string(id) }

func (id ExecutionID) String() string { return string(id) }
