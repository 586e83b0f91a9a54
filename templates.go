package zeekyflow

import (
	"errors"
	"fmt"
	"sort"

	"github.com/joachimaross/zeekyflow/internal/types"
)

var ErrUnknownTemplate = errors.New("unknown workflow template")

// Template is a named, pre-built trigger/actions pair a workflow can be
// instantiated from.
type Template struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Trigger     types.TriggerSpec  `json:"trigger"`
	Actions     []types.ActionSpec `json:"actions"`
}

var templates = map[string]Template{
	"daily-summary": {
		Name:        "Daily Summary",
		Description: "Generate daily AI summaries of your activities",
		Trigger: types.TriggerSpec{
			Type:   "schedule",
			Config: map[string]string{"interval": "daily", "time": "18:00"},
		},
		Actions: []types.ActionSpec{
			{Type: "ai-chat", Config: map[string]string{"prompt": "Generate a summary of today's activities"}},
			{Type: "email", Config: map[string]string{"subject": "Daily Summary", "body": "{{ai_response}}"}},
		},
	},
	"file-processor": {
		Name:        "File Processor",
		Description: "Automatically process uploaded files with AI",
		Trigger: types.TriggerSpec{
			Type:   "file",
			Config: map[string]string{"fileTypes": "pdf,doc,txt"},
		},
		Actions: []types.ActionSpec{
			{Type: "ai-chat", Config: map[string]string{"prompt": "Analyze this file: {{file_content}}"}},
			{Type: "email", Config: map[string]string{"subject": "File Analysis Complete", "body": "{{ai_response}}"}},
		},
	},
	"smart-notifications": {
		Name:        "Smart Notifications",
		Description: "AI-powered intelligent notification system",
		Trigger: types.TriggerSpec{
			Type:   "webhook",
			Config: map[string]string{"method": "POST"},
		},
		Actions: []types.ActionSpec{
			{Type: "ai-chat", Config: map[string]string{"prompt": "Analyze this notification and determine priority: {{webhook_data}}"}},
			{Type: "email", Config: map[string]string{"subject": "Smart Alert", "body": "{{ai_response}}"}},
		},
	},
}

// Templates returns the template catalog keys, sorted.
func Templates() []string {
	keys := make([]string, 0, len(templates))
	for key := range templates {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Describe returns one template by key.
func DescribeTemplate(key string) (Template, error) {
	t, ok := templates[key]
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, key)
	}
	return t, nil
}

// CreateWorkflowFromTemplate instantiates a workflow from a named template.
// The pre-built definition still goes through registry validation like any
// other creation.
func (zf *Zeekyflow) CreateWorkflowFromTemplate(key string) (*Workflow, error) {
	t, err := DescribeTemplate(key)
	if err != nil {
		return nil, err
	}

	// Copy configs so two workflows from one template never share maps.
	trigger := types.TriggerSpec{Type: t.Trigger.Type, Config: copyConfig(t.Trigger.Config)}
	actionSpecs := make([]types.ActionSpec, len(t.Actions))
	for i, a := range t.Actions {
		actionSpecs[i] = types.ActionSpec{Type: a.Type, Config: copyConfig(a.Config)}
	}

	return zf.CreateWorkflow(t.Name, trigger, actionSpecs)
}

func copyConfig(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
