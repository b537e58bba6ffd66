package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"tooldispatch/internal/domain"
)

type wirePlan struct {
	ToolID     *string         `json:"tool_id"`
	Parameters json.RawMessage `json:"parameters"`
	Action     *string         `json:"action"`
	Reason     *string         `json:"reason"`
}

// DecodeSinglePlan decodes {"tool_id": string, "parameters": {...}}.
// tool_id is required; missing parameters decode to an empty map.
func DecodeSinglePlan(raw string) (domain.Plan, error) {
	const op = "prompt.DecodeSinglePlan"
	wire, err := decodeWirePlan(raw)
	if err != nil {
		return domain.Plan{}, planError(op, raw, err.Error())
	}
	if wire.ToolID == nil || strings.TrimSpace(*wire.ToolID) == "" {
		return domain.Plan{}, planError(op, raw, "reply must contain tool_id")
	}
	parameters, err := decodeParameters(wire.Parameters)
	if err != nil {
		return domain.Plan{}, planError(op, raw, err.Error())
	}
	plan := domain.Plan{
		Action:     domain.ActionCallTool,
		ToolID:     strings.TrimSpace(*wire.ToolID),
		Parameters: parameters,
	}
	if wire.Reason != nil {
		plan.Reason = *wire.Reason
	}
	return plan, nil
}

// DecodeStepPlan decodes the multi-turn wire shape. action is required;
// tool_id and parameters are required only for call_tool.
func DecodeStepPlan(raw string) (domain.Plan, error) {
	const op = "prompt.DecodeStepPlan"
	wire, err := decodeWirePlan(raw)
	if err != nil {
		return domain.Plan{}, planError(op, raw, err.Error())
	}
	if wire.Action == nil {
		return domain.Plan{}, planError(op, raw, "reply must contain action")
	}
	plan := domain.Plan{Action: domain.PlanAction(strings.ToLower(strings.TrimSpace(*wire.Action)))}
	if wire.Reason != nil {
		plan.Reason = *wire.Reason
	}

	switch plan.Action {
	case domain.ActionFinish:
		if wire.ToolID != nil {
			plan.ToolID = strings.TrimSpace(*wire.ToolID)
		}
		return plan, nil
	case domain.ActionCallTool:
		if wire.ToolID == nil || strings.TrimSpace(*wire.ToolID) == "" {
			return domain.Plan{}, planError(op, raw, "call_tool reply must contain tool_id")
		}
		if len(wire.Parameters) == 0 {
			return domain.Plan{}, planError(op, raw, "call_tool reply must contain parameters")
		}
		parameters, err := decodeParameters(wire.Parameters)
		if err != nil {
			return domain.Plan{}, planError(op, raw, err.Error())
		}
		plan.ToolID = strings.TrimSpace(*wire.ToolID)
		plan.Parameters = parameters
		return plan, nil
	default:
		return domain.Plan{}, planError(op, raw, fmt.Sprintf("unknown action %q", *wire.Action))
	}
}

// DecodeExtraction decodes an extraction reply. ok is false when the oracle
// signalled that nothing could be extracted (null, empty reply or {}).
func DecodeExtraction(raw string) (map[string]any, bool, error) {
	const op = "prompt.DecodeExtraction"
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" {
		return nil, false, nil
	}
	var value any
	if err := strictUnmarshal([]byte(trimmed), &value); err != nil {
		return nil, false, planError(op, raw, err.Error())
	}
	obj, isObject := value.(map[string]any)
	if !isObject {
		return nil, false, planError(op, raw, fmt.Sprintf("expected JSON object, got %s", jsonKind(value)))
	}
	if len(obj) == 0 {
		return nil, false, nil
	}
	return obj, true, nil
}

// DecodeSelection decodes a JSON array of tool ids and rejects ids not in known.
func DecodeSelection(raw string, known map[string]struct{}) ([]string, error) {
	const op = "prompt.DecodeSelection"
	var ids []string
	if err := strictUnmarshal([]byte(strings.TrimSpace(raw)), &ids); err != nil {
		return nil, planError(op, raw, fmt.Sprintf("invalid JSON response: %v", err))
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	var invalid []string
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			invalid = append(invalid, id)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(invalid) > 0 {
		return nil, planError(op, raw, "invalid tool ids: "+strings.Join(invalid, ", "))
	}
	return out, nil
}

func decodeWirePlan(raw string) (wirePlan, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return wirePlan{}, fmt.Errorf("empty reply")
	}
	if !strings.HasPrefix(trimmed, "{") {
		return wirePlan{}, fmt.Errorf("reply is not a JSON object")
	}
	var wire wirePlan
	if err := strictUnmarshal([]byte(trimmed), &wire); err != nil {
		return wirePlan{}, err
	}
	return wire, nil
}

func decodeParameters(raw json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}, nil
	}
	var params map[string]any
	if err := json.Unmarshal(trimmed, &params); err != nil {
		return nil, fmt.Errorf("parameters must be a JSON object: %w", err)
	}
	if params == nil {
		params = map[string]any{}
	}
	return params, nil
}

// strictUnmarshal rejects trailing content after the first JSON value.
func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("unexpected content after JSON value")
	}
	return nil
}

func planError(op, raw, msg string) *domain.Error {
	return domain.E(domain.CodePlanParseError, op, msg, domain.ErrMalformedReply).WithRawReply(raw)
}

func jsonKind(value any) string {
	switch value.(type) {
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return "null"
	}
}
