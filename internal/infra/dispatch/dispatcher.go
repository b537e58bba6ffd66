// Package dispatch resolves requests to tool invocations. Every entry point
// returns a domain.Outcome; failures never escape as Go errors.
package dispatch

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"tooldispatch/internal/domain"
	"tooldispatch/internal/infra/filter"
	"tooldispatch/internal/infra/prompt"
	"tooldispatch/internal/infra/telemetry"
)

// Catalog is the read-only view a dispatch needs.
type Catalog interface {
	Get(id string) (domain.Tool, bool)
	Descriptors() []domain.ToolDescriptor
}

type Options struct {
	Temperature    float64
	ToolTimeout    time.Duration
	PinnedArgument string
	// StepRequiresCandidate short-circuits Step to no_available_agent when
	// no tool passes the filter. Off, Step still plans so the oracle can
	// finish from history alone.
	StepRequiresCandidate bool
}

// Dispatcher holds no per-request state; one value serves concurrent calls.
type Dispatcher struct {
	oracle  domain.Oracle
	filter  *filter.Filter
	metrics domain.Metrics
	logger  *zap.Logger
	opts    Options
}

func New(oracle domain.Oracle, f *filter.Filter, metrics domain.Metrics, logger *zap.Logger, opts Options) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = domain.NoopMetrics{}
	}
	if f == nil {
		f = filter.New(oracle, metrics, logger, filter.Options{Temperature: opts.Temperature})
	}
	if opts.ToolTimeout <= 0 {
		opts.ToolTimeout = time.Duration(domain.DefaultToolTimeoutSeconds) * time.Second
	}
	if opts.PinnedArgument == "" {
		opts.PinnedArgument = domain.DefaultPinnedArgument
	}
	return &Dispatcher{
		oracle:  oracle,
		filter:  f,
		metrics: metrics,
		logger:  logger.Named("dispatch"),
		opts:    opts,
	}
}

// SingleTurn resolves request to exactly one tool invocation: filter, plan
// over the full catalogue, validate, invoke. A "[tool_id] rest" request
// skips filtering and planning.
func (d *Dispatcher) SingleTurn(ctx context.Context, catalog Catalog, request string) domain.Outcome {
	started := time.Now()
	ctx, meta := telemetry.EnsureRequestMeta(ctx, "")

	if toolID, remainder, ok := ParsePin(request); ok {
		trace := newTrace(meta, request, domain.ModePinned)
		return d.finish(ctx, started, d.pinned(ctx, catalog, trace, toolID, remainder))
	}

	trace := newTrace(meta, request, domain.ModeSingleTurn)
	descriptors := catalog.Descriptors()
	trace.FilterResult = d.filter.Run(ctx, request, descriptors)
	if len(trace.AvailableIDs()) == 0 {
		return d.finish(ctx, started, noAvailableAgent(trace))
	}

	reply, err := d.complete(ctx, domain.PurposePlan, prompt.SingleTurn(descriptors, request))
	if err != nil {
		return d.finish(ctx, started, errorOutcome(trace, err, domain.CodeOracleError))
	}
	plan, err := prompt.DecodeSinglePlan(reply)
	if err != nil {
		return d.finish(ctx, started, errorOutcome(trace, err, domain.CodePlanParseError))
	}

	result, args, err := d.invoke(ctx, catalog, plan.ToolID, plan.Parameters)
	if err != nil {
		outcome := errorOutcome(trace, err, domain.CodeToolExecutionFailed)
		outcome.ToolID = plan.ToolID
		return d.finish(ctx, started, outcome)
	}
	return d.finish(ctx, started, domain.Outcome{
		Kind:      domain.OutcomeResult,
		ToolID:    plan.ToolID,
		Arguments: args,
		Result:    result,
		Trace:     trace,
	})
}

// Step decides and executes one further step of a multi-turn task. history
// is read only; the caller appends the returned Step itself.
func (d *Dispatcher) Step(ctx context.Context, catalog Catalog, history []domain.Step, query string) domain.Outcome {
	started := time.Now()
	ctx, meta := telemetry.EnsureRequestMeta(ctx, "")

	trace := newTrace(meta, query, domain.ModeStep)
	descriptors := catalog.Descriptors()
	trace.FilterResult = d.filter.Run(ctx, query, descriptors)
	if d.opts.StepRequiresCandidate && len(trace.AvailableIDs()) == 0 {
		return d.finish(ctx, started, noAvailableAgent(trace))
	}

	reply, err := d.complete(ctx, domain.PurposeStep, prompt.Step(descriptors, history, query))
	if err != nil {
		return d.finish(ctx, started, errorOutcome(trace, err, domain.CodeOracleError))
	}
	plan, err := prompt.DecodeStepPlan(reply)
	if err != nil {
		return d.finish(ctx, started, errorOutcome(trace, err, domain.CodePlanParseError))
	}

	if plan.Action == domain.ActionFinish {
		reason := plan.Reason
		if reason == "" {
			reason = domain.DefaultFinishReason
		}
		return d.finish(ctx, started, domain.Outcome{Kind: domain.OutcomeFinish, Reason: reason, Trace: trace})
	}

	tool, err := resolve(catalog, plan.ToolID)
	if err != nil {
		outcome := errorOutcome(trace, err, domain.CodeToolNotFound)
		outcome.ToolID = plan.ToolID
		return d.finish(ctx, started, outcome)
	}

	if redundantForTool(tool, history, plan.Parameters) {
		telemetry.LoggerWithRequest(ctx, d.logger).Info("redundant step terminated",
			telemetry.EventField(telemetry.EventRedundantStep),
			telemetry.ToolIDField(plan.ToolID),
		)
		return d.finish(ctx, started, domain.Outcome{
			Kind:   domain.OutcomeFinish,
			ToolID: plan.ToolID,
			Step:   &domain.Step{ToolID: plan.ToolID, Parameters: plan.Parameters, Reason: plan.Reason},
			Reason: domain.RedundantStepReason,
			Trace:  trace,
		})
	}

	result, args, err := d.call(ctx, tool, plan.Parameters)
	if err != nil {
		outcome := errorOutcome(trace, err, domain.CodeToolExecutionFailed)
		outcome.ToolID = plan.ToolID
		return d.finish(ctx, started, outcome)
	}
	return d.finish(ctx, started, domain.Outcome{
		Kind:      domain.OutcomeCallTool,
		ToolID:    plan.ToolID,
		Arguments: args,
		Result:    result,
		Step: &domain.Step{
			ToolID:     plan.ToolID,
			Parameters: args,
			Result:     result,
			Reason:     plan.Reason,
		},
		Reason: plan.Reason,
		Trace:  trace,
	})
}

func noAvailableAgent(trace domain.DispatchTrace) domain.Outcome {
	return domain.Outcome{
		Kind:    domain.OutcomeNoAvailableAgent,
		Code:    domain.CodeNoAvailableAgent,
		Message: "no tool can serve the request",
		Trace:   trace,
	}
}

func (d *Dispatcher) complete(ctx context.Context, purpose domain.OraclePurpose, messages []domain.Message) (string, error) {
	if d.oracle == nil {
		return "", domain.E(domain.CodeOracleError, "dispatch.complete", "oracle not configured", domain.ErrOracleUnavailable)
	}
	reply, err := d.oracle.Complete(domain.WithOraclePurpose(ctx, purpose), messages, d.opts.Temperature)
	if err != nil {
		var domainErr *domain.Error
		if errors.As(err, &domainErr) && domainErr.Code == domain.CodeOracleError {
			return "", err
		}
		return "", domain.E(domain.CodeOracleError, "dispatch.complete", err.Error(), errors.Join(domain.ErrOracleUnavailable, err))
	}
	return reply, nil
}

func (d *Dispatcher) finish(ctx context.Context, started time.Time, outcome domain.Outcome) domain.Outcome {
	duration := time.Since(started)
	d.metrics.ObserveDispatch(domain.DispatchMetric{
		Mode:     outcome.Trace.Mode,
		Outcome:  outcome.Kind,
		Code:     outcome.Code,
		Duration: duration,
	})

	fields := []zap.Field{
		telemetry.EventField(telemetry.EventDispatchCompleted),
		telemetry.ModeField(string(outcome.Trace.Mode)),
		telemetry.OutcomeField(string(outcome.Kind)),
		telemetry.DurationField(duration),
	}
	if outcome.ToolID != "" {
		fields = append(fields, telemetry.ToolIDField(outcome.ToolID))
	}
	logger := telemetry.LoggerWithRequest(ctx, d.logger)
	if outcome.Kind == domain.OutcomeError {
		fields = append(fields, zap.String("code", string(outcome.Code)), zap.String("message", outcome.Message))
		logger.Warn("dispatch failed", fields...)
		return outcome
	}
	logger.Info("dispatch completed", fields...)
	return outcome
}

func newTrace(meta telemetry.RequestMeta, request string, mode domain.DispatchMode) domain.DispatchTrace {
	return domain.DispatchTrace{
		RequestID:    meta.RequestID,
		Request:      request,
		Mode:         mode,
		FilterResult: []domain.FilterEntry{},
	}
}

func errorOutcome(trace domain.DispatchTrace, err error, fallback domain.ErrorCode) domain.Outcome {
	code, ok := domain.CodeFrom(err)
	if !ok {
		code = fallback
	}
	message := err.Error()
	var domainErr *domain.Error
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		message = domainErr.Message
	}
	return domain.Outcome{
		Kind:     domain.OutcomeError,
		Code:     code,
		Message:  message,
		RawReply: domain.RawReplyFrom(err),
		Trace:    trace,
	}
}
