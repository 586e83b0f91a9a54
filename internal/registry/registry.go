package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrUnknownComponentType = errors.New("unknown component type")
)

// Kind distinguishes the two component catalogs.
type Kind string

const (
	KindTrigger Kind = "trigger"
	KindAction  Kind = "action"
)

// Handler is the contract with an action implementation: it receives the
// fully resolved configuration and returns an opaque result value. Failures
// must come back as an error, never a panic; the executor converts them into
// error results.
type Handler func(ctx context.Context, config map[string]string) (string, error)

// ComponentInfo is the display metadata and configuration schema of one
// trigger or action type. Produces names the interpolation variable an
// action's result is published under (empty for triggers).
type ComponentInfo struct {
	Label        string   `json:"label"`
	Icon         string   `json:"icon"`
	Description  string   `json:"description"`
	ConfigFields []string `json:"config_fields"`
	Produces     string   `json:"produces,omitempty"`
}

// Registry is the catalog of known trigger and action types. The engine never
// special-cases a type by name; adding a component means one Register call
// plus a Handler, nothing else.
type Registry struct {
	mu       sync.RWMutex
	triggers map[string]ComponentInfo
	actions  map[string]ComponentInfo
	handlers map[string]Handler
}

func New() *Registry {
	return &Registry{
		triggers: make(map[string]ComponentInfo),
		actions:  make(map[string]ComponentInfo),
		handlers: make(map[string]Handler),
	}
}

// NewDefault returns a registry pre-loaded with the built-in trigger catalog.
// Action handlers are registered separately by the actions package so the
// catalog stays pure data.
func NewDefault() *Registry {
	r := New()

	r.RegisterTrigger("schedule", ComponentInfo{
		Label:        "Schedule",
		Icon:         "fas fa-clock",
		Description:  "Trigger workflow at specific times",
		ConfigFields: []string{"interval", "time", "days"},
	})
	r.RegisterTrigger("webhook", ComponentInfo{
		Label:        "Webhook",
		Icon:         "fas fa-link",
		Description:  "Trigger workflow via HTTP request",
		ConfigFields: []string{"url", "method", "headers"},
	})
	r.RegisterTrigger("file", ComponentInfo{
		Label:        "File Upload",
		Icon:         "fas fa-file",
		Description:  "Trigger when files are uploaded",
		ConfigFields: []string{"fileTypes", "maxSize"},
	})

	return r
}

func (r *Registry) RegisterTrigger(typ string, info ComponentInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers[typ] = info
}

func (r *Registry) RegisterAction(typ string, info ComponentInfo, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[typ] = info
	r.handlers[typ] = handler
}

// Describe resolves one component's metadata.
func (r *Registry) Describe(kind Kind, typ string) (ComponentInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var catalog map[string]ComponentInfo
	switch kind {
	case KindTrigger:
		catalog = r.triggers
	case KindAction:
		catalog = r.actions
	default:
		return ComponentInfo{}, fmt.Errorf("%w: kind %q", ErrUnknownComponentType, kind)
	}

	info, ok := catalog[typ]
	if !ok {
		return ComponentInfo{}, fmt.Errorf("%w: %s %q", ErrUnknownComponentType, kind, typ)
	}
	return info, nil
}

// ActionHandler returns the executable implementation for an action type.
func (r *Registry) ActionHandler(typ string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[typ]
	if !ok {
		return nil, fmt.Errorf("%w: action %q", ErrUnknownComponentType, typ)
	}
	return h, nil
}

// Triggers returns the trigger catalog type names.
func (r *Registry) Triggers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.triggers))
	for typ := range r.triggers {
		out = append(out, typ)
	}
	return out
}

// Actions returns the action catalog type names.
func (r *Registry) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.actions))
	for typ := range r.actions {
		out = append(out, typ)
	}
	return out
}
