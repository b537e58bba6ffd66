package catalog

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envExpansion records the variables referenced but not set while expanding.
type envExpansion struct {
	missing map[string]struct{}
}

func newEnvExpansion() *envExpansion {
	return &envExpansion{missing: make(map[string]struct{})}
}

// Missing returns the unset variable names, sorted.
func (e *envExpansion) Missing() []string {
	if len(e.missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(e.missing))
	for name := range e.missing {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// expandYAML substitutes ${VAR} references in scalar values of a YAML
// document. Keys are left untouched; unquoted scalars are re-typed after
// substitution so "${PORT}" can become an int.
func expandYAML(raw []byte) (string, []string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return "", nil, fmt.Errorf("parse yaml: %w", err)
	}

	env := newEnvExpansion()
	env.walk(&root)

	expanded, err := yaml.Marshal(&root)
	if err != nil {
		return "", nil, fmt.Errorf("encode expanded yaml: %w", err)
	}
	return string(expanded), env.Missing(), nil
}

// expandText substitutes ${VAR} references in raw text. Used for formats
// without a node tree to walk.
func expandText(raw string) (string, []string) {
	env := newEnvExpansion()
	return env.expand(raw), env.Missing()
}

func (e *envExpansion) walk(node *yaml.Node) {
	switch node.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, child := range node.Content {
			e.walk(child)
		}
	case yaml.MappingNode:
		for i := 1; i < len(node.Content); i += 2 {
			e.walk(node.Content[i])
		}
	case yaml.AliasNode:
		if node.Alias != nil {
			e.walk(node.Alias)
		}
	case yaml.ScalarNode:
		e.scalar(node)
	}
}

func (e *envExpansion) scalar(node *yaml.Node) {
	if node.Tag != "" && node.Tag != "!!str" {
		return
	}
	if !strings.Contains(node.Value, "$") {
		return
	}
	expanded := e.expand(node.Value)
	if expanded == node.Value {
		return
	}
	if node.Style != 0 {
		node.Tag = "!!str"
		node.Value = expanded
		return
	}
	node.Tag, node.Value = retagScalar(expanded)
}

func (e *envExpansion) expand(value string) string {
	return os.Expand(value, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		e.missing[key] = struct{}{}
		return ""
	})
}

func retagScalar(value string) (string, string) {
	if strings.TrimSpace(value) == "" {
		return "!!str", value
	}
	var parsed any
	if err := yaml.Unmarshal([]byte(value), &parsed); err != nil {
		return "!!str", value
	}
	switch v := parsed.(type) {
	case nil:
		return "!!null", "null"
	case bool:
		return "!!bool", strconv.FormatBool(v)
	case int:
		return "!!int", strconv.Itoa(v)
	case float64:
		return "!!float", strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return "!!str", value
	}
}
