// Package gateway serves the dispatch operations as MCP tools.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"tooldispatch/internal/buildinfo"
	"tooldispatch/internal/domain"
	"tooldispatch/internal/infra/catalog"
)

const (
	ToolDispatch     = "dispatch"
	ToolDispatchStep = "dispatch_step"
	ToolListTools    = "list_tools"
)

// Service is the dispatch surface the gateway exposes.
type Service interface {
	Dispatch(ctx context.Context, request string) domain.Outcome
	Step(ctx context.Context, query string, history []domain.Step) domain.Outcome
	Invoke(ctx context.Context, toolID string, args map[string]any) domain.Outcome
	Catalog() *catalog.Catalog
}

type Options struct {
	// ExposeTools also publishes every invocable catalogue tool under its id.
	ExposeTools bool
}

type Gateway struct {
	service  Service
	logger   *zap.Logger
	server   *mcp.Server
	registry *toolRegistry
	opts     Options
}

func New(service Service, opts Options, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{
		service: service,
		logger:  logger.Named("gateway"),
		opts:    opts,
	}
	g.server = mcp.NewServer(&mcp.Implementation{
		Name:    buildinfo.Name,
		Version: buildinfo.Version,
	}, &mcp.ServerOptions{HasTools: true})

	g.server.AddTool(dispatchTool(), g.dispatchHandler)
	g.server.AddTool(dispatchStepTool(), g.dispatchStepHandler)
	g.server.AddTool(listToolsTool(), g.listToolsHandler)

	g.registry = newToolRegistry(g.server, g.invokeHandler, []string{ToolDispatch, ToolDispatchStep, ToolListTools}, g.logger)
	return g
}

// Server returns the underlying MCP server.
func (g *Gateway) Server() *mcp.Server {
	return g.server
}

// Sync publishes cat's tools when ExposeTools is set.
func (g *Gateway) Sync(cat *catalog.Catalog) {
	if !g.opts.ExposeTools {
		return
	}
	g.registry.Apply(cat)
}

// Run serves on transport until ctx ends or the client disconnects. A nil
// transport means stdio.
func (g *Gateway) Run(ctx context.Context, transport mcp.Transport) error {
	if transport == nil {
		transport = &mcp.StdioTransport{}
	}
	g.Sync(g.service.Catalog())
	g.logger.Info("gateway starting", zap.Bool("exposeTools", g.opts.ExposeTools))
	err := g.server.Run(ctx, transport)
	if err != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type dispatchArgs struct {
	Request string `json:"request"`
}

type dispatchStepArgs struct {
	Query   string        `json:"query"`
	History []domain.Step `json:"history"`
}

func (g *Gateway) dispatchHandler(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args dispatchArgs
	if err := decodeArguments(req, &args); err != nil {
		return errorResult(err), nil
	}
	if strings.TrimSpace(args.Request) == "" {
		return errorResult(errors.New("request is required")), nil
	}
	return outcomeResult(g.service.Dispatch(ctx, args.Request)), nil
}

func (g *Gateway) dispatchStepHandler(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args dispatchStepArgs
	if err := decodeArguments(req, &args); err != nil {
		return errorResult(err), nil
	}
	if strings.TrimSpace(args.Query) == "" {
		return errorResult(errors.New("query is required")), nil
	}
	return outcomeResult(g.service.Step(ctx, args.Query, args.History)), nil
}

func (g *Gateway) listToolsHandler(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(g.service.Catalog().Summary(), false), nil
}

func (g *Gateway) invokeHandler(toolID string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args map[string]any
		if err := decodeArguments(req, &args); err != nil {
			return errorResult(err), nil
		}
		if args == nil {
			args = map[string]any{}
		}
		return outcomeResult(g.service.Invoke(ctx, toolID, args)), nil
	}
}

func decodeArguments(req *mcp.CallToolRequest, target any) error {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, target); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

func outcomeResult(outcome domain.Outcome) *mcp.CallToolResult {
	return jsonResult(outcome, outcome.Failed())
}

func jsonResult(value any, isError bool) *mcp.CallToolResult {
	raw, err := json.Marshal(value)
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
		IsError: isError,
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		IsError: true,
	}
}

func dispatchTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        ToolDispatch,
		Description: "Resolve a natural-language request to one tool invocation and run it. Prefix the request with [tool_id] to call a tool directly.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"request": map[string]any{
					"type":        "string",
					"description": "The user request.",
				},
			},
			"required": []string{"request"},
		},
	}
}

func dispatchStepTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        ToolDispatchStep,
		Description: "Decide and run the next step of a multi-turn task. Pass the steps taken so far; append the returned step before the next call.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The overall goal.",
				},
				"history": map[string]any{
					"type":        "array",
					"description": "Steps already taken, oldest first.",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"tool_id":    map[string]any{"type": "string"},
							"parameters": map[string]any{"type": "object"},
							"result":     map[string]any{},
							"reason":     map[string]any{"type": "string"},
						},
					},
				},
			},
			"required": []string{"query"},
		},
	}
}

func listToolsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        ToolListTools,
		Description: "List the tools in the current catalogue.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}
}
