package domain

import (
	"context"
	"strings"
)

// ParamType enumerates the scalar parameter types a tool may declare.
type ParamType string

const (
	ParamInt    ParamType = "int"
	ParamFloat  ParamType = "float"
	ParamBool   ParamType = "bool"
	ParamString ParamType = "string"
)

// NormalizeParamType maps accepted aliases onto the canonical type names.
// Unknown names are returned lower-cased so validation can report them.
func NormalizeParamType(raw string) ParamType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "int", "integer":
		return ParamInt
	case "float", "number", "double":
		return ParamFloat
	case "bool", "boolean":
		return ParamBool
	case "string", "str", "":
		return ParamString
	default:
		return ParamType(strings.ToLower(strings.TrimSpace(raw)))
	}
}

// Valid reports whether t is one of the supported parameter types.
func (t ParamType) Valid() bool {
	switch t {
	case ParamInt, ParamFloat, ParamBool, ParamString:
		return true
	default:
		return false
	}
}

// ParameterSpec describes one named argument of a tool.
type ParameterSpec struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description,omitempty"`
	// Required is nil when the source did not say; see IsRequired.
	Required *bool  `json:"required,omitempty"`
	Default  any    `json:"default,omitempty"`
	Enum     []any  `json:"enum,omitempty"`
	Pattern  string `json:"pattern,omitempty"`
}

// IsRequired applies the declaration rule: an explicit flag wins, otherwise
// a parameter without a default is required.
func (p ParameterSpec) IsRequired() bool {
	if p.Required != nil {
		return *p.Required
	}
	return p.Default == nil
}

// ToolDescriptor is the metadata half of a catalogue entry.
type ToolDescriptor struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Category       string          `json:"category,omitempty"`
	Tags           []string        `json:"tags,omitempty"`
	Parameters     []ParameterSpec `json:"parameters"`
	ExampleQueries []string        `json:"example_queries,omitempty"`
}

// Clone returns a deep copy so snapshots never share slices with sources.
func (d ToolDescriptor) Clone() ToolDescriptor {
	out := d
	out.Tags = cloneStrings(d.Tags)
	out.ExampleQueries = cloneStrings(d.ExampleQueries)
	if d.Parameters != nil {
		out.Parameters = make([]ParameterSpec, len(d.Parameters))
		for i, p := range d.Parameters {
			cp := p
			if p.Required != nil {
				required := *p.Required
				cp.Required = &required
			}
			if p.Enum != nil {
				cp.Enum = append([]any(nil), p.Enum...)
			}
			out.Parameters[i] = cp
		}
	}
	return out
}

// Invoker is the callable half of a catalogue entry.
type Invoker func(ctx context.Context, args map[string]any) (any, error)

// Tool pairs a descriptor with its invoker. Invoker is nil for tools that are
// only known declaratively.
type Tool struct {
	ToolDescriptor
	Invoker Invoker `json:"-"`
}

// Invocable reports whether the tool has a bound callable.
func (t Tool) Invocable() bool {
	return t.Invoker != nil
}

// SourceKind classifies a catalogue source.
type SourceKind string

const (
	SourceDeclarative  SourceKind = "declarative"
	SourceProgrammatic SourceKind = "programmatic"
)

// Valid reports whether k names a known source kind.
func (k SourceKind) Valid() bool {
	return k == SourceDeclarative || k == SourceProgrammatic
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool {
	return &v
}
