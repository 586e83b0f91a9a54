package zeekyflow

import (
	"log/slog"
	"time"

	"github.com/joachimaross/zeekyflow/internal/actions"
	"github.com/joachimaross/zeekyflow/internal/engine"
	"github.com/joachimaross/zeekyflow/internal/registry"
)

// Notifier re-exports the engine's notification side-effect hook.
type Notifier = engine.Notifier

type NoticeKind = engine.NoticeKind

const (
	NoticeSuccess = engine.NoticeSuccess
	NoticeError   = engine.NoticeError
)

type config struct {
	path             string
	memory           bool
	logger           *slog.Logger
	notifier         engine.Notifier
	executionWorkers int
	actionTimeout    time.Duration
	historyLimit     int
	scheduleInterval time.Duration
	registerDefaults bool
}

type Option func(*config)

// WithPath persists workflows and history in a SQLite database at path.
func WithPath(path string) Option {
	return func(c *config) {
		c.path = path
		c.memory = false
	}
}

// WithMemory keeps all state in memory; nothing survives the process.
func WithMemory() Option {
	return func(c *config) {
		c.memory = true
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithNotifier routes execution notifications to a collaborator (UI toast,
// chat message). Defaults to the structured log.
func WithNotifier(n Notifier) Option {
	return func(c *config) {
		c.notifier = n
	}
}

// WithInitialExecutionWorkers sizes the execution pool; each worker carries
// one execution at a time.
func WithInitialExecutionWorkers(n int) Option {
	return func(c *config) {
		c.executionWorkers = n
	}
}

// WithActionTimeout bounds every single action invocation; a timed-out
// action is recorded as an error result, not a hung execution.
func WithActionTimeout(d time.Duration) Option {
	return func(c *config) {
		c.actionTimeout = d
	}
}

// WithHistoryLimit caps the execution history (default 100, oldest evicted
// first).
func WithHistoryLimit(n int) Option {
	return func(c *config) {
		c.historyLimit = n
	}
}

// WithScheduleInterval tunes how often schedule triggers are evaluated.
func WithScheduleInterval(d time.Duration) Option {
	return func(c *config) {
		c.scheduleInterval = d
	}
}

// WithoutDefaultActions skips registering the built-in ai-chat/email/api
// implementations, for embedders that bring their own.
func WithoutDefaultActions() Option {
	return func(c *config) {
		c.registerDefaults = false
	}
}

func registerDefaultActions(reg *registry.Registry) {
	actions.RegisterDefaults(reg)
}
