package domain

import "time"

// DispatchMode labels how a dispatch was resolved.
type DispatchMode string

const (
	ModeSingleTurn DispatchMode = "single_turn"
	ModeStep       DispatchMode = "step"
	ModePinned     DispatchMode = "pinned"
	// ModeDirect marks a caller-named invocation that bypasses the oracle.
	ModeDirect DispatchMode = "direct"
)

// FilterEntry is the availability verdict for one tool.
type FilterEntry struct {
	ToolID          string         `json:"tool_id"`
	ToolName        string         `json:"tool_name,omitempty"`
	ExtractedParams map[string]any `json:"extracted_params"`
	Available       bool           `json:"available"`
	// Error records why extraction failed; it never fails the filter pass.
	Error string `json:"error,omitempty"`
}

// DispatchTrace is the diagnostic record returned with every outcome.
type DispatchTrace struct {
	RequestID    string        `json:"request_id,omitempty"`
	Request      string        `json:"request"`
	Mode         DispatchMode  `json:"mode"`
	FilterResult []FilterEntry `json:"filter_result"`
}

// AvailableIDs returns the ids flagged available, in trace order.
func (t DispatchTrace) AvailableIDs() []string {
	ids := make([]string, 0, len(t.FilterResult))
	for _, entry := range t.FilterResult {
		if entry.Available {
			ids = append(ids, entry.ToolID)
		}
	}
	return ids
}

// Step is one entry of a caller-owned multi-turn history.
type Step struct {
	ToolID     string         `json:"tool_id"`
	Parameters map[string]any `json:"parameters"`
	Result     any            `json:"result,omitempty"`
	Reason     string         `json:"reason,omitempty"`
}

// PlanAction discriminates the oracle's decision.
type PlanAction string

const (
	ActionCallTool PlanAction = "call_tool"
	ActionFinish   PlanAction = "finish"
)

// Plan is the decoded oracle decision.
type Plan struct {
	Action     PlanAction     `json:"action"`
	ToolID     string         `json:"tool_id,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Reason     string         `json:"reason,omitempty"`
}

// OutcomeKind discriminates dispatch outcomes.
type OutcomeKind string

const (
	OutcomeResult           OutcomeKind = "result"
	OutcomeCallTool         OutcomeKind = "call_tool"
	OutcomeFinish           OutcomeKind = "finish"
	OutcomeError            OutcomeKind = "error"
	OutcomeNoAvailableAgent OutcomeKind = "no_available_agent"
)

// Outcome is the value every dispatch call returns. Dispatchers never
// surface failures any other way.
type Outcome struct {
	Kind      OutcomeKind    `json:"kind"`
	ToolID    string         `json:"tool_id,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Result    any            `json:"result,omitempty"`
	Step      *Step          `json:"step,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Code      ErrorCode      `json:"code,omitempty"`
	Message   string         `json:"message,omitempty"`
	RawReply  string         `json:"raw_reply,omitempty"`
	Trace     DispatchTrace  `json:"trace"`
}

// Failed reports whether the outcome represents a failure.
func (o Outcome) Failed() bool {
	return o.Kind == OutcomeError || o.Kind == OutcomeNoAvailableAgent
}

// Err converts a failed outcome back into a domain error.
func (o Outcome) Err() error {
	if !o.Failed() {
		return nil
	}
	code := o.Code
	if code == "" && o.Kind == OutcomeNoAvailableAgent {
		code = CodeNoAvailableAgent
	}
	return &Error{Code: code, Op: string(o.Trace.Mode), Message: o.Message, RawReply: o.RawReply}
}

// JournalEntry is one persisted dispatch record.
type JournalEntry struct {
	ID        string       `json:"id"`
	Mode      DispatchMode `json:"mode"`
	Request   string       `json:"request"`
	History   []Step       `json:"history,omitempty"`
	Outcome   Outcome      `json:"outcome"`
	CreatedAt time.Time    `json:"createdAt"`
}
