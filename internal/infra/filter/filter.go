// Package filter decides which tools could be invoked for a request and
// with which extracted arguments.
package filter

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tooldispatch/internal/domain"
	"tooldispatch/internal/infra/params"
	"tooldispatch/internal/infra/prompt"
	"tooldispatch/internal/infra/telemetry"
)

type Options struct {
	// Concurrency bounds the number of extraction calls in flight.
	Concurrency int
	Temperature float64
}

// Filter runs one extraction per parameterised tool. A failing extraction
// only marks its own tool unavailable.
type Filter struct {
	oracle      domain.Oracle
	metrics     domain.Metrics
	logger      *zap.Logger
	concurrency int
	temperature float64
}

func New(oracle domain.Oracle, metrics domain.Metrics, logger *zap.Logger, opts Options) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = domain.NoopMetrics{}
	}
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = domain.DefaultFilterConcurrency
	}
	return &Filter{
		oracle:      oracle,
		metrics:     metrics,
		logger:      logger.Named("filter"),
		concurrency: concurrency,
		temperature: opts.Temperature,
	}
}

// Run evaluates every tool against request. Entries follow the order of tools.
func (f *Filter) Run(ctx context.Context, request string, tools []domain.ToolDescriptor) []domain.FilterEntry {
	entries := make([]domain.FilterEntry, len(tools))
	logger := telemetry.LoggerWithRequest(ctx, f.logger)

	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, tool := range tools {
		if len(tool.Parameters) == 0 {
			entries[i] = domain.FilterEntry{
				ToolID:          tool.ID,
				ToolName:        tool.Name,
				ExtractedParams: map[string]any{},
				Available:       true,
			}
			continue
		}
		g.Go(func() error {
			entries[i] = f.evaluate(ctx, logger, tool, request)
			return nil
		})
	}
	_ = g.Wait()

	available := 0
	for _, entry := range entries {
		if entry.Available {
			available++
		}
	}
	f.metrics.ObserveFilter(len(entries), available)
	return entries
}

func (f *Filter) evaluate(ctx context.Context, logger *zap.Logger, tool domain.ToolDescriptor, request string) (entry domain.FilterEntry) {
	entry = domain.FilterEntry{
		ToolID:          tool.ID,
		ToolName:        tool.Name,
		ExtractedParams: map[string]any{},
	}
	defer func() {
		if r := recover(); r != nil {
			entry.Available = false
			entry.Error = fmt.Sprintf("extraction panicked: %v", r)
			logger.Error("extraction panicked", telemetry.ToolIDField(tool.ID), zap.Any("panic", r))
		}
	}()

	extracted, err := f.extract(ctx, tool, request)
	if err != nil {
		entry.Error = err.Error()
		logger.Warn("parameter extraction failed",
			telemetry.EventField(telemetry.EventExtractionFailed),
			telemetry.ToolIDField(tool.ID),
			zap.Error(err),
		)
		return entry
	}
	if extracted == nil {
		return entry
	}

	entry.ExtractedParams = extracted
	missing := params.MissingRequired(tool.Parameters, extracted)
	entry.Available = len(missing) == 0
	if !entry.Available {
		logger.Debug("required parameters missing", telemetry.ToolIDField(tool.ID), zap.Strings("missing", missing))
	}
	return entry
}

// extract returns nil without error when the oracle signals it cannot
// extract anything.
func (f *Filter) extract(ctx context.Context, tool domain.ToolDescriptor, request string) (map[string]any, error) {
	if f.oracle == nil {
		return nil, domain.E(domain.CodeOracleError, "filter.extract", "oracle not configured", domain.ErrOracleUnavailable)
	}
	reply, err := f.oracle.Complete(domain.WithOraclePurpose(ctx, domain.PurposeExtract), prompt.Extraction(tool, request), f.temperature)
	if err != nil {
		return nil, err
	}
	extracted, ok, err := prompt.DecodeExtraction(reply)
	if err != nil || !ok {
		return nil, err
	}
	return extracted, nil
}
