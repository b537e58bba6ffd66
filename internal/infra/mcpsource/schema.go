package mcpsource

import (
	"encoding/json"
	"fmt"
	"sort"

	"tooldispatch/internal/domain"
)

type inputSchema struct {
	Properties map[string]propertySchema `json:"properties"`
	Required   []string                  `json:"required"`
}

type propertySchema struct {
	Type        any    `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default"`
	Enum        []any  `json:"enum"`
	Pattern     string `json:"pattern"`
}

// parametersFromSchema maps an MCP input schema onto scalar parameter specs.
// Required properties keep the order of the schema's required list; the rest
// follow sorted by name. Optional properties of a non-scalar type are
// dropped; a required one makes the tool unusable and returns an error.
func parametersFromSchema(raw any) ([]domain.ParameterSpec, error) {
	if raw == nil {
		return []domain.ParameterSpec{}, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode input schema: %w", err)
	}
	var schema inputSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("decode input schema: %w", err)
	}

	required := make(map[string]bool, len(schema.Required))
	names := make([]string, 0, len(schema.Properties))
	for _, name := range schema.Required {
		if _, ok := schema.Properties[name]; ok && !required[name] {
			required[name] = true
			names = append(names, name)
		}
	}
	optional := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		if !required[name] {
			optional = append(optional, name)
		}
	}
	sort.Strings(optional)
	names = append(names, optional...)

	specs := make([]domain.ParameterSpec, 0, len(names))
	for _, name := range names {
		prop := schema.Properties[name]
		paramType, ok := scalarType(prop.Type)
		if !ok {
			if required[name] {
				return nil, fmt.Errorf("required property %q has unsupported type %v", name, prop.Type)
			}
			continue
		}
		specs = append(specs, domain.ParameterSpec{
			Name:        name,
			Type:        paramType,
			Description: prop.Description,
			Required:    domain.BoolPtr(required[name]),
			Default:     prop.Default,
			Enum:        prop.Enum,
			Pattern:     prop.Pattern,
		})
	}
	return specs, nil
}

// scalarType accepts "integer" style names and ["integer", "null"] unions.
func scalarType(raw any) (domain.ParamType, bool) {
	switch v := raw.(type) {
	case string:
		return jsonSchemaType(v)
	case []any:
		for _, item := range v {
			name, ok := item.(string)
			if !ok || name == "null" {
				continue
			}
			return jsonSchemaType(name)
		}
	case nil:
		return domain.ParamString, true
	}
	return "", false
}

func jsonSchemaType(name string) (domain.ParamType, bool) {
	switch name {
	case "integer":
		return domain.ParamInt, true
	case "number":
		return domain.ParamFloat, true
	case "boolean":
		return domain.ParamBool, true
	case "string":
		return domain.ParamString, true
	default:
		return "", false
	}
}
