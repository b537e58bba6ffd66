package dispatch

import (
	"encoding/json"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"tooldispatch/internal/domain"
	"tooldispatch/internal/infra/params"
)

// IsRedundant reports whether planned repeats the parameters of the most
// recent step. Only the last step is compared; an empty history is never
// redundant. Values are compared in their JSON form so 1 and 1.0 match.
func IsRedundant(history []domain.Step, planned map[string]any) bool {
	if len(history) == 0 {
		return false
	}
	previous, ok := jsonForm(history[len(history)-1].Parameters)
	if !ok {
		return false
	}
	next, ok := jsonForm(planned)
	if !ok {
		return false
	}
	return cmp.Equal(previous, next, cmpopts.EquateEmpty())
}

// redundantForTool fills tool's declared defaults into both the planned
// parameters and the last step's before comparing. Steps record the
// arguments the tool actually received, while plans may omit defaults.
func redundantForTool(tool domain.Tool, history []domain.Step, planned map[string]any) bool {
	if len(history) == 0 {
		return false
	}
	last := history[len(history)-1]
	previous := []domain.Step{{ToolID: last.ToolID, Parameters: params.ApplyDefaults(tool.Parameters, last.Parameters)}}
	return IsRedundant(previous, params.ApplyDefaults(tool.Parameters, planned))
}

func jsonForm(values map[string]any) (map[string]any, bool) {
	if len(values) == 0 {
		return map[string]any{}, true
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, false
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}
