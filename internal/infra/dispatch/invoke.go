package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tooldispatch/internal/domain"
	"tooldispatch/internal/infra/params"
	"tooldispatch/internal/infra/telemetry"
)

func resolve(catalog Catalog, toolID string) (domain.Tool, error) {
	const op = "dispatch.resolve"
	tool, ok := catalog.Get(toolID)
	if !ok {
		return domain.Tool{}, domain.E(domain.CodeToolNotFound, op, fmt.Sprintf("tool %q not found", toolID), domain.ErrToolNotFound)
	}
	if !tool.Invocable() {
		return domain.Tool{}, domain.E(domain.CodeToolNotInvocable, op, fmt.Sprintf("tool %q has no bound invoker", toolID), domain.ErrToolNotInvocable)
	}
	return tool, nil
}

// Invoke calls toolID with caller-supplied arguments, bypassing filter and
// planning. Arguments are still validated and the call is still bounded by
// the tool timeout.
func (d *Dispatcher) Invoke(ctx context.Context, catalog Catalog, toolID string, args map[string]any) domain.Outcome {
	started := time.Now()
	ctx, meta := telemetry.EnsureRequestMeta(ctx, "")
	trace := newTrace(meta, toolID, domain.ModeDirect)

	result, args, err := d.invoke(ctx, catalog, toolID, args)
	if err != nil {
		outcome := errorOutcome(trace, err, domain.CodeToolExecutionFailed)
		outcome.ToolID = toolID
		outcome.Arguments = args
		return d.finish(ctx, started, outcome)
	}
	return d.finish(ctx, started, domain.Outcome{
		Kind:      domain.OutcomeResult,
		ToolID:    toolID,
		Arguments: args,
		Result:    result,
		Trace:     trace,
	})
}

func (d *Dispatcher) invoke(ctx context.Context, catalog Catalog, toolID string, args map[string]any) (any, map[string]any, error) {
	tool, err := resolve(catalog, toolID)
	if err != nil {
		return nil, nil, err
	}
	return d.call(ctx, tool, args)
}

type callResult struct {
	value any
	err   error
}

// call validates args against the tool's parameters and runs the invoker
// under the tool timeout. Panics and timeouts become TOOL_EXECUTION_FAILED.
func (d *Dispatcher) call(ctx context.Context, tool domain.Tool, args map[string]any) (any, map[string]any, error) {
	const op = "dispatch.call"
	args = params.ApplyDefaults(tool.Parameters, args)
	if err := params.Validate(tool.Parameters, args); err != nil {
		return nil, args, domain.E(domain.CodeInvalidArguments, op, err.Error(), err)
	}

	callCtx, cancel := context.WithTimeout(ctx, d.opts.ToolTimeout)
	defer cancel()

	started := time.Now()
	done := make(chan callResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callResult{err: fmt.Errorf("%w: %v", domain.ErrToolPanicked, r)}
			}
		}()
		value, err := tool.Invoker(callCtx, args)
		done <- callResult{value: value, err: err}
	}()

	logger := telemetry.LoggerWithRequest(ctx, d.logger)
	select {
	case res := <-done:
		duration := time.Since(started)
		switch {
		case res.err == nil:
			d.metrics.ObserveToolInvocation(tool.ID, domain.InvocationSuccess, duration)
			return res.value, args, nil
		case errors.Is(res.err, domain.ErrToolPanicked):
			d.metrics.ObserveToolInvocation(tool.ID, domain.InvocationPanic, duration)
			logger.Error("tool panicked", telemetry.EventField(telemetry.EventToolFailed), telemetry.ToolIDField(tool.ID), zap.Error(res.err))
		default:
			d.metrics.ObserveToolInvocation(tool.ID, domain.InvocationError, duration)
			logger.Warn("tool failed", telemetry.EventField(telemetry.EventToolFailed), telemetry.ToolIDField(tool.ID), zap.Error(res.err))
		}
		return nil, args, domain.E(domain.CodeToolExecutionFailed, op, res.err.Error(), res.err)
	case <-callCtx.Done():
		d.metrics.ObserveToolInvocation(tool.ID, domain.InvocationTimeout, time.Since(started))
		logger.Warn("tool timed out", telemetry.EventField(telemetry.EventToolFailed), telemetry.ToolIDField(tool.ID), zap.Error(callCtx.Err()))
		return nil, args, domain.E(domain.CodeToolExecutionFailed, op, fmt.Sprintf("tool %q did not finish: %v", tool.ID, callCtx.Err()), callCtx.Err())
	}
}
