package dispatch

import (
	"context"
	"regexp"
	"strings"

	"tooldispatch/internal/domain"
)

var pinPattern = regexp.MustCompile(`(?s)^\[(\w+)\](.*)$`)

// ParsePin splits a "[tool_id] remainder" request. ok is false when the
// request is not pinned.
func ParsePin(request string) (toolID, remainder string, ok bool) {
	match := pinPattern.FindStringSubmatch(strings.TrimSpace(request))
	if match == nil {
		return "", "", false
	}
	return match[1], strings.TrimSpace(match[2]), true
}

// pinnedArgument picks the parameter that receives the remainder of a
// pinned request.
func pinnedArgument(tool domain.ToolDescriptor, fallback string) string {
	for _, p := range tool.Parameters {
		if p.Type == domain.ParamString {
			return p.Name
		}
	}
	if len(tool.Parameters) > 0 {
		return tool.Parameters[0].Name
	}
	return fallback
}

func (d *Dispatcher) pinned(ctx context.Context, catalog Catalog, trace domain.DispatchTrace, toolID, remainder string) domain.Outcome {
	tool, err := resolve(catalog, toolID)
	if err != nil {
		outcome := errorOutcome(trace, err, domain.CodeToolNotFound)
		outcome.ToolID = toolID
		return outcome
	}

	args := map[string]any{pinnedArgument(tool.ToolDescriptor, d.opts.PinnedArgument): remainder}
	result, args, err := d.call(ctx, tool, args)
	if err != nil {
		outcome := errorOutcome(trace, err, domain.CodeToolExecutionFailed)
		outcome.ToolID = toolID
		outcome.Arguments = args
		return outcome
	}
	return domain.Outcome{
		Kind:      domain.OutcomeResult,
		ToolID:    toolID,
		Arguments: args,
		Result:    result,
		Trace:     trace,
	}
}
