package dispatcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sasha-s/go-deadlock"

	"github.com/joachimaross/zeekyflow/internal/clock"
	"github.com/joachimaross/zeekyflow/internal/persistence"
	"github.com/joachimaross/zeekyflow/internal/types"
	"github.com/joachimaross/zeekyflow/pkg/logs"
)

// Submitter is the dispatcher's one-way contract into the engine:
// fire-and-forget, completion observed through the execution history.
type Submitter interface {
	Submit(workflowID types.WorkflowID, triggerData map[string]string) error
}

const (
	TriggerSchedule = "schedule"
	TriggerWebhook  = "webhook"
	TriggerFile     = "file"

	DefaultScheduleInterval = 30 * time.Second
)

// Dispatcher receives trigger events (schedule ticks, webhook calls, file
// upload notifications) and submits the matching active workflows for
// execution. Only the call contract into the engine matters; its own timing
// mechanics stay deliberately simple.
type Dispatcher struct {
	ctx    context.Context
	store  persistence.Store
	engine Submitter
	clock  *clock.Clock

	mu        deadlock.Mutex
	lastFired map[types.WorkflowID]string // workflow -> minute it last fired
}

func New(ctx context.Context, store persistence.Store, engine Submitter, scheduleInterval time.Duration) *Dispatcher {
	if scheduleInterval <= 0 {
		scheduleInterval = DefaultScheduleInterval
	}
	d := &Dispatcher{
		ctx:       ctx,
		store:     store,
		engine:    engine,
		clock:     clock.New(ctx, scheduleInterval),
		lastFired: make(map[types.WorkflowID]string),
	}
	d.clock.Add("schedule-triggers", scheduleTicker{d}, clock.WithOnError(func(err error) {
		logs.Error(ctx, "schedule evaluation failed", "error", err)
	}))
	return d
}

func (d *Dispatcher) Start() {
	d.clock.Start()
}

func (d *Dispatcher) Stop() {
	d.clock.Stop()
}

type scheduleTicker struct {
	d *Dispatcher
}

func (t scheduleTicker) Tick() error {
	return t.d.evaluateSchedules(time.Now())
}

// evaluateSchedules fires every active schedule-triggered workflow whose
// interval/time configuration matches now, at most once per matching minute.
func (d *Dispatcher) evaluateSchedules(now time.Time) error {
	workflows, err := d.store.ListActive(d.ctx)
	if err != nil {
		return err
	}

	minute := now.Format("2006-01-02 15:04")
	for _, workflow := range workflows {
		if workflow.Trigger.Type != TriggerSchedule {
			continue
		}
		if !scheduleMatches(workflow.Trigger.Config, now) {
			continue
		}

		d.mu.Lock()
		already := d.lastFired[workflow.ID] == minute
		if !already {
			d.lastFired[workflow.ID] = minute
		}
		d.mu.Unlock()
		if already {
			continue
		}

		logs.Debug(d.ctx, "schedule trigger fired", "workflow", workflow.ID, "minute", minute)
		if err := d.engine.Submit(workflow.ID, map[string]string{
			"triggered_by":   TriggerSchedule,
			"scheduled_time": now.Format(time.RFC3339),
		}); err != nil {
			logs.Error(d.ctx, "schedule submit failed", "workflow", workflow.ID, "error", err)
		}
	}
	return nil
}

// scheduleMatches evaluates the schedule trigger config against a wall-clock
// instant. interval: hourly | daily | weekly; time: "HH:MM"; days: comma list
// of lowercase weekday names for weekly schedules.
func scheduleMatches(config map[string]string, now time.Time) bool {
	hhmm := now.Format("15:04")
	switch config["interval"] {
	case "hourly":
		return strings.HasSuffix(hhmm, ":00")
	case "daily":
		at := config["time"]
		if at == "" {
			at = "09:00"
		}
		return hhmm == at
	case "weekly":
		at := config["time"]
		if at == "" {
			at = "09:00"
		}
		if hhmm != at {
			return false
		}
		days := config["days"]
		if days == "" {
			return true
		}
		today := strings.ToLower(now.Weekday().String())
		for _, day := range strings.Split(days, ",") {
			if strings.TrimSpace(strings.ToLower(day)) == today {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// HandleWebhook fires one workflow from an incoming HTTP-style event. The
// workflow must be trigger-eligible and declare a webhook trigger; a method
// constraint in the trigger config is enforced when present.
func (d *Dispatcher) HandleWebhook(id types.WorkflowID, method string, body string) error {
	workflow, err := d.store.Get(d.ctx, id)
	if err != nil {
		return err
	}
	if workflow.Status != types.WorkflowStatusActive {
		return fmt.Errorf("workflow %s is not active", id)
	}
	if workflow.Trigger.Type != TriggerWebhook {
		return fmt.Errorf("workflow %s has no webhook trigger", id)
	}
	if want := workflow.Trigger.Config["method"]; want != "" && !strings.EqualFold(want, method) {
		return fmt.Errorf("webhook method %s not accepted by workflow %s", method, id)
	}

	return d.engine.Submit(id, map[string]string{
		"triggered_by": TriggerWebhook,
		"method":       strings.ToUpper(method),
		"webhook_data": body,
	})
}

// HandleFileUpload fans an upload notification out to every active workflow
// with a matching file trigger. fileTypes is a comma list of extensions,
// maxSize a byte limit; both optional.
func (d *Dispatcher) HandleFileUpload(name string, size int64) error {
	workflows, err := d.store.ListActive(d.ctx)
	if err != nil {
		return err
	}

	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	for _, workflow := range workflows {
		if workflow.Trigger.Type != TriggerFile {
			continue
		}
		if !fileMatches(workflow.Trigger.Config, ext, size) {
			continue
		}
		logs.Debug(d.ctx, "file trigger fired", "workflow", workflow.ID, "file", name)
		if err := d.engine.Submit(workflow.ID, map[string]string{
			"triggered_by": TriggerFile,
			"file_name":    name,
			"file_size":    strconv.FormatInt(size, 10),
		}); err != nil {
			logs.Error(d.ctx, "file submit failed", "workflow", workflow.ID, "error", err)
		}
	}
	return nil
}

func fileMatches(config map[string]string, ext string, size int64) bool {
	if allowed := config["fileTypes"]; allowed != "" {
		ok := false
		for _, t := range strings.Split(allowed, ",") {
			if strings.EqualFold(strings.TrimSpace(t), ext) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if raw := config["maxSize"]; raw != "" {
		if max, err := strconv.ParseInt(raw, 10, 64); err == nil && size > max {
			return false
		}
	}
	return true
}
