package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"tooldispatch/internal/domain"
	"tooldispatch/internal/infra/builtin"
	"tooldispatch/internal/infra/catalog"
	"tooldispatch/internal/infra/dispatch"
	"tooldispatch/internal/infra/filter"
	"tooldispatch/internal/infra/journal"
	"tooldispatch/internal/infra/mcpsource"
	"tooldispatch/internal/infra/oracle"
	"tooldispatch/internal/infra/telemetry"
)

// MCPSources are the catalogue sources backed by configured MCP servers.
type MCPSources []*mcpsource.Source

// CatalogSources is the ordered source list a catalogue is built from.
type CatalogSources []catalog.Source

func NewMetricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	registry.MustRegister(prometheus.NewGoCollector())
	return registry
}

func NewMetrics(registry *prometheus.Registry) domain.Metrics {
	return telemetry.NewPrometheusMetrics(registry)
}

func NewHealthTracker() *telemetry.HealthTracker {
	return telemetry.NewHealthTracker()
}

// NewOracle builds the configured oracle. A provider that cannot be built
// (a missing API key, say) does not stop the application: every completion
// then fails with ORACLE_ERROR so commands that never consult the oracle
// keep working.
func NewOracle(ctx context.Context, config domain.Config, metrics domain.Metrics, health *telemetry.HealthTracker, logger *zap.Logger) domain.Oracle {
	client, err := oracle.New(ctx, config.Oracle, metrics, logger)
	health.Set("oracle", err)
	if err == nil {
		return client
	}
	logger.Warn("oracle unavailable", zap.String("provider", config.Oracle.Provider), zap.Error(err))
	cause := domain.Wrap(domain.CodeOracleError, "oracle.new", err)
	return domain.OracleFunc(func(context.Context, []domain.Message, float64) (string, error) {
		return "", cause
	})
}

func NewBuiltinRegistry(config domain.Config, llm domain.Oracle) (*catalog.Registry, error) {
	return builtin.NewRegistry(builtin.Options{Oracle: llm, Temperature: config.Oracle.Temperature})
}

// NewMCPSources creates one source per enabled MCP server. The cleanup
// closes their sessions.
func NewMCPSources(config domain.Config, logger *zap.Logger) (MCPSources, func()) {
	sources := make(MCPSources, 0, len(config.MCPServers))
	for _, spec := range config.MCPServers {
		if spec.Disabled {
			continue
		}
		sources = append(sources, mcpsource.New(spec, logger))
	}
	cleanup := func() {
		for _, source := range sources {
			if err := source.Close(); err != nil {
				logger.Warn("close mcp source failed", telemetry.SourceField(source.Name()), zap.Error(err))
			}
		}
	}
	return sources, cleanup
}

// NewCatalogSources orders the sources: embedded tools, tool files, built-ins,
// then MCP servers. Within a kind the earlier source wins an id.
func NewCatalogSources(config domain.Config, registry *catalog.Registry, servers MCPSources, logger *zap.Logger) CatalogSources {
	sources := make(CatalogSources, 0, 2+len(config.Catalog.ToolFiles)+len(servers))
	sources = append(sources, catalog.NewStaticSource("config", config.Tools))
	for _, path := range config.Catalog.ToolFiles {
		sources = append(sources, catalog.NewFileSource(path, logger))
	}
	sources = append(sources, registry)
	for _, server := range servers {
		sources = append(sources, server)
	}
	return sources
}

func NewCatalogProvider(
	ctx context.Context,
	config domain.Config,
	sources CatalogSources,
	metrics domain.Metrics,
	health *telemetry.HealthTracker,
	logger *zap.Logger,
) *catalog.Provider {
	opts := catalog.ProviderOptions{
		Build: catalog.BuildOptions{
			MetadataPrimary: config.Catalog.MetadataPrimary,
			Metrics:         metrics,
			Logger:          logger,
		},
		Health: health,
	}
	if config.Catalog.Watch {
		opts.WatchFiles = append([]string(nil), config.Catalog.ToolFiles...)
	}
	return catalog.NewProvider(ctx, sources, opts, logger)
}

func NewFilter(config domain.Config, llm domain.Oracle, metrics domain.Metrics, logger *zap.Logger) *filter.Filter {
	return filter.New(llm, metrics, logger, filter.Options{
		Concurrency: config.Dispatch.FilterConcurrency,
		Temperature: config.Oracle.Temperature,
	})
}

func NewDispatcher(config domain.Config, llm domain.Oracle, f *filter.Filter, metrics domain.Metrics, logger *zap.Logger) *dispatch.Dispatcher {
	return dispatch.New(llm, f, metrics, logger, dispatch.Options{
		Temperature:    config.Oracle.Temperature,
		ToolTimeout:    config.Dispatch.ToolTimeout(),
		PinnedArgument: config.Dispatch.PinnedArgument,

		StepRequiresCandidate: config.Dispatch.StepRequiresCandidate,
	})
}

// NewJournal opens the dispatch journal. It returns nil when no path is
// configured.
func NewJournal(config domain.Config, logger *zap.Logger) (*journal.Store, func(), error) {
	if config.Journal.Path == "" {
		return nil, func() {}, nil
	}
	store, err := journal.Open(config.Journal.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open journal: %w", err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("close journal failed", zap.Error(err))
		}
	}
	return store, cleanup, nil
}
