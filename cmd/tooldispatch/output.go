package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"tooldispatch/internal/app"
	"tooldispatch/internal/domain"
	"tooldispatch/internal/infra/catalog"
)

var stdout io.Writer = os.Stdout

func writeJSON(value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, string(data))
	return err
}

func printSummary(summary catalog.Summary, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(summary)
	}
	fmt.Fprintf(stdout, "etag=%s revision=%d tools=%d\n", summary.ETag, summary.Revision, len(summary.Tools))
	for _, tool := range summary.Tools {
		marker := " "
		if tool.Invocable {
			marker = "*"
		}
		line := fmt.Sprintf("%s %s", marker, tool.ID)
		if len(tool.Parameters) > 0 {
			line += "(" + strings.Join(tool.Parameters, ", ") + ")"
		}
		if tool.Category != "" {
			line += " [" + tool.Category + "]"
		}
		fmt.Fprintln(stdout, line)
	}
	sources := make([]string, 0, len(summary.Failures))
	for source := range summary.Failures {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	for _, source := range sources {
		fmt.Fprintf(stdout, "! %s: %s\n", source, summary.Failures[source])
	}
	return nil
}

func printOutcome(outcome domain.Outcome, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(outcome)
	}
	switch outcome.Kind {
	case domain.OutcomeResult, domain.OutcomeCallTool:
		fmt.Fprintf(stdout, "%s %s\n", outcome.Kind, outcome.ToolID)
		if len(outcome.Arguments) > 0 {
			fmt.Fprintf(stdout, "arguments: %s\n", compactJSON(outcome.Arguments))
		}
		fmt.Fprintf(stdout, "result: %s\n", formatResult(outcome.Result))
		if outcome.Reason != "" {
			fmt.Fprintf(stdout, "reason: %s\n", outcome.Reason)
		}
	case domain.OutcomeFinish:
		fmt.Fprintf(stdout, "finish: %s\n", outcome.Reason)
	default:
		fmt.Fprintf(stdout, "%s %s: %s\n", outcome.Kind, outcome.Code, outcome.Message)
	}
	if outcome.Trace.RequestID != "" {
		fmt.Fprintf(stdout, "request_id=%s mode=%s\n", outcome.Trace.RequestID, outcome.Trace.Mode)
	}
	return nil
}

func printRun(result app.RunResult, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(result)
	}
	for i, step := range result.Steps {
		fmt.Fprintf(stdout, "%d. %s %s -> %s\n", i+1, step.ToolID, compactJSON(step.Parameters), formatResult(step.Result))
	}
	return printOutcome(result.Final, false)
}

func printJournalEntries(entries []domain.JournalEntry, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(map[string]any{"entries": entries})
	}
	for _, entry := range entries {
		status := string(entry.Outcome.Kind)
		if entry.Outcome.ToolID != "" {
			status += " " + entry.Outcome.ToolID
		}
		fmt.Fprintf(stdout, "%s %s %-12s %s | %s\n",
			entry.ID,
			entry.CreatedAt.Local().Format(time.DateTime),
			entry.Mode,
			status,
			entry.Request,
		)
	}
	return nil
}

func formatResult(value any) string {
	if text, ok := value.(string); ok {
		return text
	}
	return compactJSON(value)
}

func compactJSON(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(data)
}
