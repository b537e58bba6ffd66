package telemetry

import (
	"time"

	"go.uber.org/zap"
)

const (
	FieldEvent      = "event"
	FieldToolID     = "tool_id"
	FieldSource     = "source"
	FieldMode       = "mode"
	FieldOutcome    = "outcome"
	FieldDurationMs = "duration_ms"
	FieldRequestID  = "request_id"
	FieldTraceID    = "trace_id"
	FieldSpanID     = "span_id"
)

const (
	EventCatalogBuilt      = "catalog_built"
	EventSourceFailed      = "source_failed"
	EventExtractionFailed  = "extraction_failed"
	EventDispatchCompleted = "dispatch_completed"
	EventToolFailed        = "tool_failed"
	EventRedundantStep     = "redundant_step"
)

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func ToolIDField(toolID string) zap.Field {
	return zap.String(FieldToolID, toolID)
}

func SourceField(source string) zap.Field {
	return zap.String(FieldSource, source)
}

func ModeField(mode string) zap.Field {
	return zap.String(FieldMode, mode)
}

func OutcomeField(outcome string) zap.Field {
	return zap.String(FieldOutcome, outcome)
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}

func RequestIDField(value string) zap.Field {
	return zap.String(FieldRequestID, value)
}

func TraceIDField(value string) zap.Field {
	return zap.String(FieldTraceID, value)
}

func SpanIDField(value string) zap.Field {
	return zap.String(FieldSpanID, value)
}
