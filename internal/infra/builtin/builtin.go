package builtin

import (
	"context"
	"errors"
	"strings"

	"tooldispatch/internal/domain"
	"tooldispatch/internal/infra/catalog"
	"tooldispatch/internal/infra/params"
)

// SourceName is the registry name the built-in tools are published under.
const SourceName = "builtin"

// Options configures the oracle-backed built-ins.
type Options struct {
	Oracle      domain.Oracle
	Temperature float64
}

// NewRegistry returns a registry holding the built-in tools. llm_query is
// only registered when an oracle is available.
func NewRegistry(opts Options) (*catalog.Registry, error) {
	registry := catalog.NewRegistry(SourceName)
	if err := Register(registry, opts); err != nil {
		return nil, err
	}
	return registry, nil
}

// Register adds the built-in tools to registry.
func Register(registry *catalog.Registry, opts Options) error {
	tools := []struct {
		desc    domain.ToolDescriptor
		invoker domain.Invoker
	}{
		{desc: addDescriptor, invoker: add},
		{desc: echoDescriptor, invoker: echo},
	}
	if opts.Oracle != nil {
		tools = append(tools, struct {
			desc    domain.ToolDescriptor
			invoker domain.Invoker
		}{desc: llmQueryDescriptor, invoker: llmQuery(opts.Oracle, opts.Temperature)})
	}

	var errs []error
	for _, tool := range tools {
		if err := registry.Register(tool.desc, tool.invoker); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var addDescriptor = domain.ToolDescriptor{
	ID:          "add",
	Name:        "Add",
	Description: "Adds two integers and returns the sum.",
	Category:    "math",
	Tags:        []string{"builtin"},
	Parameters: []domain.ParameterSpec{
		{Name: "a", Type: domain.ParamInt, Description: "first addend"},
		{Name: "b", Type: domain.ParamInt, Description: "second addend"},
	},
	ExampleQueries: []string{"what is 2 plus 3", "add 40 and 2"},
}

var echoDescriptor = domain.ToolDescriptor{
	ID:          "echo",
	Name:        "Echo",
	Description: "Returns the given text unchanged.",
	Category:    "utility",
	Tags:        []string{"builtin"},
	Parameters: []domain.ParameterSpec{
		{Name: "text", Type: domain.ParamString, Description: "text to repeat"},
	},
	ExampleQueries: []string{"repeat after me: hello"},
}

var llmQueryDescriptor = domain.ToolDescriptor{
	ID:          "llm_query",
	Name:        "LLM query",
	Description: "Answers a free-form question with the language model.",
	Category:    "general",
	Tags:        []string{"builtin", "llm"},
	Parameters: []domain.ParameterSpec{
		{Name: "prompt", Type: domain.ParamString, Description: "question to answer"},
	},
	ExampleQueries: []string{"explain what a binary tree is"},
}

func add(_ context.Context, args map[string]any) (any, error) {
	a, err := params.Int(args, "a")
	if err != nil {
		return nil, err
	}
	b, err := params.Int(args, "b")
	if err != nil {
		return nil, err
	}
	return a + b, nil
}

func echo(_ context.Context, args map[string]any) (any, error) {
	return params.String(args, "text")
}

func llmQuery(oracle domain.Oracle, temperature float64) domain.Invoker {
	return func(ctx context.Context, args map[string]any) (any, error) {
		prompt, err := params.String(args, "prompt")
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(prompt) == "" {
			return nil, errors.New("prompt is empty")
		}
		ctx = domain.WithOraclePurpose(ctx, domain.PurposeQuery)
		return oracle.Complete(ctx, []domain.Message{{Role: domain.RoleUser, Content: prompt}}, temperature)
	}
}
