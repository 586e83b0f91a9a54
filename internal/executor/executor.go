package executor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/joachimaross/zeekyflow/internal/registry"
	"github.com/joachimaross/zeekyflow/internal/types"
	"github.com/joachimaross/zeekyflow/pkg/logs"
)

const (
	DefaultActionTimeout = 30 * time.Second
	defaultRetryBackoff  = 250 * time.Millisecond
)

// Executor runs exactly one action given the results accumulated so far in
// the current execution. Nothing escapes this boundary: handler errors,
// panics and timeouts all come back as ActionResult{Status: error}.
type Executor struct {
	reg           *registry.Registry
	actionTimeout time.Duration
	retryBackoff  time.Duration
}

func New(reg *registry.Registry, actionTimeout time.Duration) *Executor {
	if actionTimeout <= 0 {
		actionTimeout = DefaultActionTimeout
	}
	return &Executor{
		reg:           reg,
		actionTimeout: actionTimeout,
		retryBackoff:  defaultRetryBackoff,
	}
}

// Execute resolves variable references in the action's configuration, invokes
// the registered implementation bounded by the per-action timeout, and
// normalizes the outcome. The optional numeric "retries" config field retries
// the handler with a constant backoff; attempts are invisible to workflow
// statistics.
func (e *Executor) Execute(ctx context.Context, action types.ActionSpec, prior []types.ActionResult) types.ActionResult {
	start := time.Now()

	handler, err := e.reg.ActionHandler(action.Type)
	if err != nil {
		// Defensive: the store validated types at creation time.
		return types.ActionResult{
			Type:     action.Type,
			Status:   types.ResultStatusError,
			Error:    fmt.Sprintf("unknown action type: %s", action.Type),
			Duration: time.Since(start),
		}
	}

	resolved := resolveConfig(e.reg, action.Config, prior)

	callCtx, cancel := context.WithTimeout(ctx, e.actionTimeout)
	defer cancel()

	var output string
	invoke := func(ctx context.Context) error {
		var invokeErr error
		output, invokeErr = e.safeInvoke(ctx, handler, resolved)
		return invokeErr
	}

	if retries := parseRetries(action.Config); retries > 0 {
		backoff := retry.WithMaxRetries(uint64(retries), retry.NewConstant(e.retryBackoff))
		err = retry.Do(callCtx, backoff, func(ctx context.Context) error {
			if invokeErr := invoke(ctx); invokeErr != nil {
				return retry.RetryableError(invokeErr)
			}
			return nil
		})
	} else {
		err = invoke(callCtx)
	}

	if err != nil {
		logs.Debug(ctx, "action errored", "type", action.Type, "error", err)
		return types.ActionResult{
			Type:     action.Type,
			Status:   types.ResultStatusError,
			Error:    err.Error(),
			Duration: time.Since(start),
		}
	}

	return types.ActionResult{
		Type:     action.Type,
		Status:   types.ResultStatusSuccess,
		Result:   output,
		Duration: time.Since(start),
	}
}

type invokeOutcome struct {
	output string
	err    error
}

// safeInvoke contains handler panics so a misbehaving implementation cannot
// abort the surrounding execution, and unblocks when the per-action timeout
// fires even if the handler never returns.
func (e *Executor) safeInvoke(ctx context.Context, handler registry.Handler, config map[string]string) (string, error) {
	outcome := make(chan invokeOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				outcome <- invokeOutcome{err: fmt.Errorf("action panicked: %v", r)}
			}
		}()
		output, err := handler(ctx, config)
		outcome <- invokeOutcome{output: output, err: err}
	}()

	select {
	case o := <-outcome:
		return o.output, o.err
	case <-ctx.Done():
		return "", fmt.Errorf("action timed out: %w", ctx.Err())
	}
}

func parseRetries(config map[string]string) int {
	raw, ok := config["retries"]
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
