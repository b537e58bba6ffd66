package domain

import "time"

// InvocationStatus labels the outcome of a tool invocation.
type InvocationStatus string

const (
	// InvocationSuccess indicates the tool returned a result.
	InvocationSuccess InvocationStatus = "success"
	// InvocationError indicates the tool returned an error.
	InvocationError InvocationStatus = "error"
	// InvocationPanic indicates the tool panicked.
	InvocationPanic InvocationStatus = "panic"
	// InvocationTimeout indicates the tool exceeded its deadline.
	InvocationTimeout InvocationStatus = "timeout"
)

// DispatchMetric captures metrics for one dispatch call.
type DispatchMetric struct {
	Mode     DispatchMode
	Outcome  OutcomeKind
	Code     ErrorCode
	Duration time.Duration
}

// OracleMetric captures metrics for one oracle call.
type OracleMetric struct {
	Provider string
	Model    string
	Purpose  OraclePurpose
	Duration time.Duration
	Tokens   int
	Err      error
}

// Metrics records orchestration observability signals.
type Metrics interface {
	ObserveDispatch(metric DispatchMetric)
	ObserveOracle(metric OracleMetric)
	ObserveFilter(total int, available int)
	ObserveToolInvocation(toolID string, status InvocationStatus, duration time.Duration)
	ObserveCatalogSource(source string, tools int, err error)
}

// NoopMetrics discards every observation.
type NoopMetrics struct{}

func (NoopMetrics) ObserveDispatch(DispatchMetric)                                {}
func (NoopMetrics) ObserveOracle(OracleMetric)                                    {}
func (NoopMetrics) ObserveFilter(int, int)                                        {}
func (NoopMetrics) ObserveToolInvocation(string, InvocationStatus, time.Duration) {}
func (NoopMetrics) ObserveCatalogSource(string, int, error)                       {}

var _ Metrics = NoopMetrics{}
