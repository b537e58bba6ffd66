package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tooldispatch/internal/domain"
)

type PrometheusMetrics struct {
	dispatchTotal         *prometheus.CounterVec
	dispatchDuration      *prometheus.HistogramVec
	oracleLatency         *prometheus.HistogramVec
	oracleTokens          *prometheus.CounterVec
	oracleErrors          *prometheus.CounterVec
	filterAvailableRatio  prometheus.Histogram
	toolInvocations       *prometheus.CounterVec
	toolDuration          *prometheus.HistogramVec
	catalogSourceTools    *prometheus.GaugeVec
	catalogSourceFailures *prometheus.CounterVec
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		dispatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tooldispatch_dispatch_total",
				Help: "Total number of dispatch calls by outcome",
			},
			[]string{"mode", "outcome", "code"},
		),
		dispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tooldispatch_dispatch_duration_seconds",
				Help:    "Duration of dispatch calls in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"mode"},
		),
		oracleLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tooldispatch_oracle_latency_seconds",
				Help:    "Latency of oracle calls in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider", "model", "purpose"},
		),
		oracleTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tooldispatch_oracle_tokens_total",
				Help: "Total number of tokens consumed by oracle calls",
			},
			[]string{"provider", "model"},
		),
		oracleErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tooldispatch_oracle_errors_total",
				Help: "Total number of failed oracle calls",
			},
			[]string{"provider", "model", "purpose"},
		),
		filterAvailableRatio: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tooldispatch_filter_available_ratio",
				Help:    "Share of catalogue tools judged available per filter pass",
				Buckets: []float64{0, .1, .25, .5, .75, .9, 1},
			},
		),
		toolInvocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tooldispatch_tool_invocations_total",
				Help: "Total number of tool invocations by status",
			},
			[]string{"tool", "status"},
		),
		toolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tooldispatch_tool_duration_seconds",
				Help:    "Duration of tool invocations in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"tool"},
		),
		catalogSourceTools: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tooldispatch_catalog_source_tools",
				Help: "Number of tools contributed by each catalogue source",
			},
			[]string{"source"},
		),
		catalogSourceFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tooldispatch_catalog_source_failures_total",
				Help: "Total number of catalogue source load failures",
			},
			[]string{"source"},
		),
	}
}

func (p *PrometheusMetrics) ObserveDispatch(metric domain.DispatchMetric) {
	p.dispatchTotal.WithLabelValues(string(metric.Mode), string(metric.Outcome), string(metric.Code)).Inc()
	p.dispatchDuration.WithLabelValues(string(metric.Mode)).Observe(metric.Duration.Seconds())
}

func (p *PrometheusMetrics) ObserveOracle(metric domain.OracleMetric) {
	purpose := string(metric.Purpose)
	p.oracleLatency.WithLabelValues(metric.Provider, metric.Model, purpose).Observe(metric.Duration.Seconds())
	if metric.Tokens > 0 {
		p.oracleTokens.WithLabelValues(metric.Provider, metric.Model).Add(float64(metric.Tokens))
	}
	if metric.Err != nil {
		p.oracleErrors.WithLabelValues(metric.Provider, metric.Model, purpose).Inc()
	}
}

func (p *PrometheusMetrics) ObserveFilter(total int, available int) {
	if total <= 0 {
		return
	}
	p.filterAvailableRatio.Observe(float64(available) / float64(total))
}

func (p *PrometheusMetrics) ObserveToolInvocation(toolID string, status domain.InvocationStatus, duration time.Duration) {
	p.toolInvocations.WithLabelValues(toolID, string(status)).Inc()
	p.toolDuration.WithLabelValues(toolID).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveCatalogSource(source string, tools int, err error) {
	p.catalogSourceTools.WithLabelValues(source).Set(float64(tools))
	if err != nil {
		p.catalogSourceFailures.WithLabelValues(source).Inc()
	}
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)
