// Package params interprets ParameterSpec lists: required sets, defaults and
// JSON Schema validation of tool arguments.
package params

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"tooldispatch/internal/domain"
)

// RequiredNames returns the names of required parameters in declaration order.
func RequiredNames(specs []domain.ParameterSpec) []string {
	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		if spec.IsRequired() {
			names = append(names, spec.Name)
		}
	}
	return names
}

// Required returns the required subset of specs.
func Required(specs []domain.ParameterSpec) []domain.ParameterSpec {
	out := make([]domain.ParameterSpec, 0, len(specs))
	for _, spec := range specs {
		if spec.IsRequired() {
			out = append(out, spec)
		}
	}
	return out
}

// IsPresent reports whether an extracted value counts as supplied: not null
// and not empty.
func IsPresent(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

// MissingRequired lists required parameter names absent from args.
func MissingRequired(specs []domain.ParameterSpec, args map[string]any) []string {
	var missing []string
	for _, name := range RequiredNames(specs) {
		if !IsPresent(args[name]) {
			missing = append(missing, name)
		}
	}
	return missing
}

// ApplyDefaults returns a copy of args with declared defaults filled in for
// absent parameters.
func ApplyDefaults(specs []domain.ParameterSpec, args map[string]any) map[string]any {
	out := make(map[string]any, len(args)+len(specs))
	for k, v := range args {
		out[k] = v
	}
	for _, spec := range specs {
		if spec.Default == nil {
			continue
		}
		if v, ok := out[spec.Name]; !ok || v == nil {
			out[spec.Name] = spec.Default
		}
	}
	return out
}

// SchemaDocument renders specs as a JSON Schema object document.
func SchemaDocument(specs []domain.ParameterSpec) map[string]any {
	properties := make(map[string]any, len(specs))
	required := make([]string, 0, len(specs))
	for _, spec := range specs {
		prop := map[string]any{
			"type": jsonType(spec.Type),
		}
		if spec.Description != "" {
			prop["description"] = spec.Description
		}
		if len(spec.Enum) > 0 {
			prop["enum"] = spec.Enum
		}
		if spec.Pattern != "" && spec.Type == domain.ParamString {
			prop["pattern"] = spec.Pattern
		}
		if spec.Default != nil {
			prop["default"] = spec.Default
		}
		properties[spec.Name] = prop
		if spec.IsRequired() {
			required = append(required, spec.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// Compile resolves specs into a reusable JSON Schema validator.
func Compile(specs []domain.ParameterSpec) (*jsonschema.Resolved, error) {
	raw, err := json.Marshal(SchemaDocument(specs))
	if err != nil {
		return nil, fmt.Errorf("encode parameter schema: %w", err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("decode parameter schema: %w", err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve parameter schema: %w", err)
	}
	return resolved, nil
}

// Validate checks args against specs. Failures wrap domain.ErrInvalidArguments.
func Validate(specs []domain.ParameterSpec, args map[string]any) error {
	resolved, err := Compile(specs)
	if err != nil {
		return err
	}
	instance, err := normalize(withoutOptionalNulls(specs, args))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArguments, err)
	}
	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArguments, err)
	}
	return nil
}

// CheckSpecs reports declaration problems in specs, prefixed by path.
func CheckSpecs(path string, specs []domain.ParameterSpec) []string {
	var errs []string
	seen := make(map[string]struct{}, len(specs))
	for i, spec := range specs {
		prefix := fmt.Sprintf("%s.parameters[%d]", path, i)
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			errs = append(errs, prefix+": name is required")
		} else if _, dup := seen[name]; dup {
			errs = append(errs, fmt.Sprintf("%s: duplicate parameter %q", prefix, name))
		} else {
			seen[name] = struct{}{}
		}
		if !spec.Type.Valid() {
			errs = append(errs, fmt.Sprintf("%s: unsupported type %q", prefix, spec.Type))
			continue
		}
		if spec.Pattern != "" {
			if spec.Type != domain.ParamString {
				errs = append(errs, prefix+": pattern only applies to string parameters")
			} else if _, err := regexp.Compile(spec.Pattern); err != nil {
				errs = append(errs, fmt.Sprintf("%s: invalid pattern: %v", prefix, err))
			}
		}
		if spec.Default != nil && !MatchesType(spec.Type, spec.Default) {
			errs = append(errs, fmt.Sprintf("%s: default %v is not of type %s", prefix, spec.Default, spec.Type))
		}
		for _, value := range spec.Enum {
			if !MatchesType(spec.Type, value) {
				errs = append(errs, fmt.Sprintf("%s: enum value %v is not of type %s", prefix, value, spec.Type))
			}
		}
	}
	return errs
}

// MatchesType reports whether value is assignable to a parameter of type t.
func MatchesType(t domain.ParamType, value any) bool {
	switch t {
	case domain.ParamString:
		_, ok := value.(string)
		return ok
	case domain.ParamBool:
		_, ok := value.(bool)
		return ok
	case domain.ParamInt:
		f, ok := numeric(value)
		return ok && f == math.Trunc(f)
	case domain.ParamFloat:
		_, ok := numeric(value)
		return ok
	default:
		return false
	}
}

func numeric(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func jsonType(t domain.ParamType) string {
	switch t {
	case domain.ParamInt:
		return "integer"
	case domain.ParamFloat:
		return "number"
	case domain.ParamBool:
		return "boolean"
	default:
		return "string"
	}
}

// withoutOptionalNulls drops explicit nulls for optional parameters without
// a default, which stand for "not supplied". Required parameters keep their
// null so validation still rejects it.
func withoutOptionalNulls(specs []domain.ParameterSpec, args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	for _, spec := range specs {
		if spec.IsRequired() || spec.Default != nil {
			continue
		}
		if v, ok := out[spec.Name]; ok && v == nil {
			delete(out, spec.Name)
		}
	}
	return out
}

// normalize round-trips args through JSON so the validator sees plain JSON values.
func normalize(args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
