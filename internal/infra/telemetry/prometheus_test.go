package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tooldispatch/internal/domain"
)

func TestNewPrometheusMetrics(t *testing.T) {
	m := NewPrometheusMetrics(prometheus.NewRegistry())
	assert.NotNil(t, m)
	assert.NotNil(t, m.dispatchTotal)
	assert.NotNil(t, m.dispatchDuration)
	assert.NotNil(t, m.oracleLatency)
	assert.NotNil(t, m.oracleTokens)
	assert.NotNil(t, m.oracleErrors)
	assert.NotNil(t, m.filterAvailableRatio)
	assert.NotNil(t, m.toolInvocations)
	assert.NotNil(t, m.catalogSourceTools)
	assert.NotNil(t, m.catalogSourceFailures)
}

func TestNewPrometheusMetrics_UsesProvidedRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := NewPrometheusMetrics(registry)
	m.ObserveDispatch(domain.DispatchMetric{
		Mode:     domain.ModeSingleTurn,
		Outcome:  domain.OutcomeResult,
		Duration: 10 * time.Millisecond,
	})
	m.ObserveOracle(domain.OracleMetric{Provider: "openai", Model: "gpt-4.1-mini", Purpose: domain.PurposePlan, Duration: time.Second, Tokens: 128})
	m.ObserveOracle(domain.OracleMetric{Provider: "openai", Model: "gpt-4.1-mini", Purpose: domain.PurposeExtract, Err: errors.New("boom")})
	m.ObserveFilter(4, 1)
	m.ObserveToolInvocation("add", domain.InvocationSuccess, time.Millisecond)
	m.ObserveCatalogSource("builtin", 3, nil)
	m.ObserveCatalogSource("mcp:broken", 0, errors.New("dial failed"))

	metrics, err := registry.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(metrics))
	for _, m := range metrics {
		names = append(names, m.GetName())
	}

	assert.Contains(t, names, "tooldispatch_dispatch_total")
	assert.Contains(t, names, "tooldispatch_dispatch_duration_seconds")
	assert.Contains(t, names, "tooldispatch_oracle_latency_seconds")
	assert.Contains(t, names, "tooldispatch_oracle_tokens_total")
	assert.Contains(t, names, "tooldispatch_oracle_errors_total")
	assert.Contains(t, names, "tooldispatch_filter_available_ratio")
	assert.Contains(t, names, "tooldispatch_tool_invocations_total")
	assert.Contains(t, names, "tooldispatch_catalog_source_tools")
	assert.Contains(t, names, "tooldispatch_catalog_source_failures_total")

	assert.Equal(t, 128.0, testutil.ToFloat64(m.oracleTokens.WithLabelValues("openai", "gpt-4.1-mini")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.oracleErrors.WithLabelValues("openai", "gpt-4.1-mini", "extract")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.catalogSourceFailures.WithLabelValues("mcp:broken")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.catalogSourceTools.WithLabelValues("builtin")))
}

func TestObserveFilter_IgnoresEmptyCatalogue(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewPrometheusMetrics(registry)
	m.ObserveFilter(0, 0)

	metrics, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range metrics {
		if mf.GetName() == "tooldispatch_filter_available_ratio" {
			assert.Zero(t, mf.GetMetric()[0].GetHistogram().GetSampleCount())
		}
	}
}
