// Package prompt builds oracle conversations and strictly decodes the replies.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"tooldispatch/internal/domain"
)

const extractionSystemPrompt = `You are a parameter extraction assistant. Extract the values the tool below needs from the user query and ignore unrelated numbers and list markers.
Reply with a JSON object only, for example {"a": 3, "b": 5}. If the query does not contain the required values, reply with null.`

const planSystemPrompt = `You are a tool dispatch assistant. Given the user input and the tool list below, choose the single most suitable tool id and its parameters.
Reply with JSON only, in the form {"tool_id": "...", "parameters": {...}}.`

const stepSystemPrompt = `You are a multi-step tool dispatch assistant. Based on the goal and the results gathered so far, plan the next tool call or declare the task finished.
If the latest results repeat earlier ones or no new information can be gained, reply {"action": "finish", "reason": "..."} instead of splitting the query further.
Reply with JSON only, in the form {"tool_id": "...", "parameters": {...}, "action": "call_tool" or "finish", "reason": "why this step"}.`

const selectSystemPrompt = `You are a tool selection assistant. Given a user task and a list of available tools, select only the tools that are relevant to completing the task.

Output only a JSON array of tool ids. Do not include any extra text or formatting.
Example: ["tool1", "tool2"]`

// toolBrief is the catalogue view shown to the oracle.
type toolBrief struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Parameters  []paramBrief `json:"parameters"`
}

type paramBrief struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
	Pattern     string `json:"pattern,omitempty"`
}

// Extraction builds the per-tool argument extraction conversation.
func Extraction(tool domain.ToolDescriptor, request string) []domain.Message {
	var sb strings.Builder
	sb.WriteString(extractionSystemPrompt)
	sb.WriteString("\n\nTool: ")
	sb.WriteString(tool.ID)
	if tool.Description != "" {
		sb.WriteString(" - ")
		sb.WriteString(tool.Description)
	}
	sb.WriteString("\nParameters:\n")
	for _, p := range tool.Parameters {
		sb.WriteString(fmt.Sprintf("- %s (%s", p.Name, p.Type))
		if p.IsRequired() {
			sb.WriteString(", required")
		}
		sb.WriteString(")")
		if p.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(p.Description)
		}
		sb.WriteString("\n")
	}
	return []domain.Message{
		{Role: domain.RoleSystem, Content: strings.TrimRight(sb.String(), "\n")},
		{Role: domain.RoleUser, Content: "User query: " + request},
	}
}

// SingleTurn builds the one-shot planning conversation over the full catalogue.
func SingleTurn(tools []domain.ToolDescriptor, request string) []domain.Message {
	system := planSystemPrompt + "\n\nTools:\n" + briefJSON(tools)
	return []domain.Message{
		{Role: domain.RoleSystem, Content: system},
		{Role: domain.RoleUser, Content: "User input: " + request},
	}
}

// Step builds the next-step planning conversation.
func Step(tools []domain.ToolDescriptor, history []domain.Step, goal string) []domain.Message {
	var sb strings.Builder
	sb.WriteString(stepSystemPrompt)
	sb.WriteString("\n\nHistory so far:\n")
	sb.WriteString(historyJSON(history))
	sb.WriteString("\n\nGoal: ")
	sb.WriteString(goal)
	sb.WriteString("\n\nTools:\n")
	sb.WriteString(briefJSON(tools))
	return []domain.Message{
		{Role: domain.RoleSystem, Content: sb.String()},
		{Role: domain.RoleUser, Content: "Decide the next step based on the results so far, or finish."},
	}
}

// Select builds the candidate selection conversation.
func Select(tools []domain.ToolDescriptor, query string) []domain.Message {
	var sb strings.Builder
	sb.WriteString("User task: ")
	sb.WriteString(query)
	sb.WriteString("\n\nAvailable tools:\n")
	for _, t := range tools {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", t.ID, t.Description))
	}
	sb.WriteString("\nSelect only the tools that are directly relevant to completing this task.\n")
	sb.WriteString("Return only a JSON array of tool ids. Do not include any other text.")
	return []domain.Message{
		{Role: domain.RoleSystem, Content: selectSystemPrompt},
		{Role: domain.RoleUser, Content: sb.String()},
	}
}

func briefJSON(tools []domain.ToolDescriptor) string {
	briefs := make([]toolBrief, 0, len(tools))
	for _, t := range tools {
		params := make([]paramBrief, 0, len(t.Parameters))
		for _, p := range t.Parameters {
			params = append(params, paramBrief{
				Name:        p.Name,
				Type:        string(p.Type),
				Description: p.Description,
				Required:    p.IsRequired(),
				Default:     p.Default,
				Enum:        p.Enum,
				Pattern:     p.Pattern,
			})
		}
		briefs = append(briefs, toolBrief{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
		})
	}
	data, err := json.MarshalIndent(briefs, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}

func historyJSON(history []domain.Step) string {
	if len(history) == 0 {
		return "[]"
	}
	data, err := json.Marshal(history)
	if err != nil {
		return "[]"
	}
	return string(data)
}
