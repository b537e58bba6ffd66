package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"tooldispatch/internal/domain"
	"tooldispatch/internal/infra/params"
)

type rawTool struct {
	ID             string         `mapstructure:"id" yaml:"id" toml:"id" json:"id"`
	Name           string         `mapstructure:"name" yaml:"name" toml:"name" json:"name"`
	Description    string         `mapstructure:"description" yaml:"description" toml:"description" json:"description"`
	Category       string         `mapstructure:"category" yaml:"category" toml:"category" json:"category"`
	Tags           []string       `mapstructure:"tags" yaml:"tags" toml:"tags" json:"tags"`
	ExampleQueries []string       `mapstructure:"example_queries" yaml:"example_queries" toml:"example_queries" json:"example_queries"`
	Parameters     []rawParameter `mapstructure:"parameters" yaml:"parameters" toml:"parameters" json:"parameters"`
}

type rawParameter struct {
	Name        string `mapstructure:"name" yaml:"name" toml:"name" json:"name"`
	Type        string `mapstructure:"type" yaml:"type" toml:"type" json:"type"`
	Description string `mapstructure:"description" yaml:"description" toml:"description" json:"description"`
	Required    *bool  `mapstructure:"required" yaml:"required" toml:"required" json:"required"`
	Default     any    `mapstructure:"default" yaml:"default" toml:"default" json:"default"`
	Enum        []any  `mapstructure:"enum" yaml:"enum" toml:"enum" json:"enum"`
	Pattern     string `mapstructure:"pattern" yaml:"pattern" toml:"pattern" json:"pattern"`
}

// rawToolFile is the layout of a standalone declarative tool file. The
// legacy "agents" key is accepted alongside "tools".
type rawToolFile struct {
	Tools  []rawTool `yaml:"tools" toml:"tools" json:"tools"`
	Agents []rawTool `yaml:"agents" toml:"agents" json:"agents"`
}

func normalizeTool(raw rawTool) domain.ToolDescriptor {
	id := strings.TrimSpace(raw.ID)
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		name = id
	}
	tool := domain.ToolDescriptor{
		ID:             id,
		Name:           name,
		Description:    strings.TrimSpace(raw.Description),
		Category:       strings.TrimSpace(raw.Category),
		Tags:           trimAll(raw.Tags),
		ExampleQueries: trimAll(raw.ExampleQueries),
		Parameters:     make([]domain.ParameterSpec, 0, len(raw.Parameters)),
	}
	for _, p := range raw.Parameters {
		tool.Parameters = append(tool.Parameters, domain.ParameterSpec{
			Name:        strings.TrimSpace(p.Name),
			Type:        domain.NormalizeParamType(p.Type),
			Description: strings.TrimSpace(p.Description),
			Required:    p.Required,
			Default:     p.Default,
			Enum:        p.Enum,
			Pattern:     p.Pattern,
		})
	}
	return tool
}

func normalizeTools(raws []rawTool) []domain.ToolDescriptor {
	tools := make([]domain.ToolDescriptor, 0, len(raws))
	for _, raw := range raws {
		tools = append(tools, normalizeTool(raw))
	}
	return tools
}

// validateTools reports problems in a declarative tool list; path prefixes
// each message (e.g. "tools" or a file name).
func validateTools(path string, tools []domain.ToolDescriptor) []string {
	var errs []string
	seen := make(map[string]struct{}, len(tools))
	for i, tool := range tools {
		prefix := fmt.Sprintf("%s[%d]", path, i)
		if tool.ID == "" {
			errs = append(errs, prefix+": id is required")
		} else if _, dup := seen[tool.ID]; dup {
			errs = append(errs, fmt.Sprintf("%s: duplicate id %q", prefix, tool.ID))
		} else {
			seen[tool.ID] = struct{}{}
		}
		errs = append(errs, params.CheckSpecs(prefix, tool.Parameters)...)
	}
	return errs
}

// decodeToolFile reads a declarative tool file. The format follows the
// extension: .yaml/.yml, .toml or .json.
func decodeToolFile(path string) ([]domain.ToolDescriptor, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read tool file: %w", err)
	}

	var (
		file    rawToolFile
		missing []string
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		expanded, unset, err := expandYAML(data)
		if err != nil {
			return nil, nil, err
		}
		missing = unset
		if err := yaml.Unmarshal([]byte(expanded), &file); err != nil {
			return nil, nil, fmt.Errorf("decode tool file: %w", err)
		}
	case ".toml":
		expanded, unset := expandText(string(data))
		missing = unset
		if err := toml.Unmarshal([]byte(expanded), &file); err != nil {
			return nil, nil, fmt.Errorf("decode tool file: %w", err)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&file); err != nil {
			return nil, nil, fmt.Errorf("decode tool file: %w", err)
		}
	default:
		return nil, nil, fmt.Errorf("unsupported tool file extension %q", ext)
	}

	tools := normalizeTools(append(file.Tools, file.Agents...))
	if errs := validateTools(filepath.Base(path), tools); len(errs) > 0 {
		return nil, missing, fmt.Errorf("invalid tool file %s: %s", path, strings.Join(errs, "; "))
	}
	return tools, missing, nil
}

func trimAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
