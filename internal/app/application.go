package app

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"tooldispatch/internal/domain"
	"tooldispatch/internal/infra/catalog"
	"tooldispatch/internal/infra/dispatch"
	"tooldispatch/internal/infra/gateway"
	"tooldispatch/internal/infra/journal"
	"tooldispatch/internal/infra/telemetry"
)

// Application ties the catalogue, the dispatchers and the journal together.
type Application struct {
	config     domain.Config
	logger     *zap.Logger
	registry   *prometheus.Registry
	health     *telemetry.HealthTracker
	provider   *catalog.Provider
	dispatcher *dispatch.Dispatcher
	journal    *journal.Store
}

// ApplicationOptions captures dependencies for Application.
type ApplicationOptions struct {
	Config     domain.Config
	Logger     *zap.Logger
	Registry   *prometheus.Registry
	Health     *telemetry.HealthTracker
	Provider   *catalog.Provider
	Dispatcher *dispatch.Dispatcher
	Journal    *journal.Store
}

func NewApplication(opts ApplicationOptions) *Application {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Application{
		config:     opts.Config,
		logger:     logger,
		registry:   opts.Registry,
		health:     opts.Health,
		provider:   opts.Provider,
		dispatcher: opts.Dispatcher,
		journal:    opts.Journal,
	}
}

func (a *Application) Config() domain.Config {
	return a.config
}

// Catalog returns the current catalogue snapshot.
func (a *Application) Catalog() *catalog.Catalog {
	return a.provider.Snapshot()
}

// Reload rebuilds the catalogue from its sources.
func (a *Application) Reload(ctx context.Context) (*catalog.Catalog, error) {
	return a.provider.Reload(ctx)
}

// Journal returns the dispatch journal, or nil when journaling is off.
func (a *Application) Journal() *journal.Store {
	return a.journal
}

// Dispatch resolves request against the current catalogue.
func (a *Application) Dispatch(ctx context.Context, request string) domain.Outcome {
	outcome := a.dispatcher.SingleTurn(ctx, a.Catalog(), request)
	a.record(outcome, request, nil)
	return outcome
}

// Step runs one step of a multi-turn task against the current catalogue.
func (a *Application) Step(ctx context.Context, query string, history []domain.Step) domain.Outcome {
	outcome := a.dispatcher.Step(ctx, a.Catalog(), history, query)
	a.record(outcome, query, history)
	return outcome
}

// Invoke calls a named tool directly.
func (a *Application) Invoke(ctx context.Context, toolID string, args map[string]any) domain.Outcome {
	outcome := a.dispatcher.Invoke(ctx, a.Catalog(), toolID, args)
	a.record(outcome, toolID, nil)
	return outcome
}

// Select lists the catalogue tools the oracle considers relevant to query.
func (a *Application) Select(ctx context.Context, query string) ([]string, error) {
	return a.dispatcher.Select(ctx, a.Catalog(), query)
}

// RunResult is the transcript of a control loop.
type RunResult struct {
	Steps []domain.Step  `json:"steps"`
	Final domain.Outcome `json:"final"`
}

// Run drives Step until the oracle finishes, a step fails or maxTurns steps
// have been taken. A maxTurns below one uses the configured limit.
func (a *Application) Run(ctx context.Context, goal string, maxTurns int) RunResult {
	if maxTurns < 1 {
		maxTurns = a.config.Dispatch.MaxTurns
	}
	if maxTurns < 1 {
		maxTurns = domain.DefaultMaxTurns
	}
	runID := telemetry.NewRequestID()
	logger := a.logger.With(zap.String("run_id", runID))

	result := RunResult{Steps: []domain.Step{}}
	for turn := 1; turn <= maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			result.Final = canceledOutcome(goal, err)
			return result
		}
		// Each step is journaled under its own request id.
		stepCtx, _ := telemetry.EnsureRequestMeta(ctx, telemetry.NewRequestID())
		outcome := a.Step(stepCtx, goal, result.Steps)
		result.Final = outcome
		if outcome.Kind != domain.OutcomeCallTool || outcome.Step == nil {
			logger.Info("control loop stopped",
				zap.Int("turns", turn),
				telemetry.OutcomeField(string(outcome.Kind)),
			)
			return result
		}
		result.Steps = append(result.Steps, *outcome.Step)
	}

	logger.Info("control loop exhausted", zap.Int("turns", maxTurns))
	result.Final = domain.Outcome{
		Kind:   domain.OutcomeFinish,
		Reason: domain.MaxTurnsReason,
		Trace:  result.Final.Trace,
	}
	return result
}

func canceledOutcome(goal string, err error) domain.Outcome {
	code := domain.CodeCanceled
	if errors.Is(err, context.DeadlineExceeded) {
		code = domain.CodeDeadlineExceeded
	}
	return domain.Outcome{
		Kind:    domain.OutcomeError,
		Code:    code,
		Message: err.Error(),
		Trace:   domain.DispatchTrace{Request: goal, Mode: domain.ModeStep, FilterResult: []domain.FilterEntry{}},
	}
}

// ServeOptions configures the MCP gateway.
type ServeOptions struct {
	ExposeTools bool
	// Transport defaults to stdio.
	Transport mcp.Transport
}

// Serve runs the MCP gateway together with the observability server and,
// when enabled, the catalogue file watcher.
func (a *Application) Serve(ctx context.Context, opts ServeOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	gw := gateway.New(a, gateway.Options{ExposeTools: opts.ExposeTools}, a.logger)

	obs := a.config.Observability
	httpOpts := telemetry.HTTPServerOptions{
		Addr:          obs.ListenAddress,
		EnableMetrics: obs.Metrics,
		EnableHealthz: obs.Healthz,
		Health:        a.health,
		Registry:      a.registry,
	}
	if obs.Metrics || obs.Healthz {
		httpOpts.Catalog = func() any { return a.Catalog().Summary() }
	}
	go func() {
		if err := telemetry.StartHTTPServer(ctx, httpOpts, a.logger); err != nil {
			a.logger.Warn("observability server failed", zap.Error(err))
		}
	}()

	if a.config.Catalog.Watch {
		updates := a.provider.Watch(ctx)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case cat := <-updates:
					gw.Sync(cat)
				}
			}
		}()
	}

	return gw.Run(ctx, opts.Transport)
}

func (a *Application) record(outcome domain.Outcome, request string, history []domain.Step) {
	if a.journal == nil {
		return
	}
	entry := domain.JournalEntry{
		ID:      outcome.Trace.RequestID,
		Mode:    outcome.Trace.Mode,
		Request: request,
		History: history,
		Outcome: outcome,
	}
	if _, err := a.journal.Record(entry); err != nil {
		a.logger.Warn("journal record failed", telemetry.RequestIDField(outcome.Trace.RequestID), zap.Error(err))
	}
}

var _ gateway.Service = (*Application)(nil)
