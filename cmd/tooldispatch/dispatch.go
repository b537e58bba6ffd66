package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tooldispatch/internal/app"
	"tooldispatch/internal/domain"
)

// exitCodeFailed is returned when a dispatch produced an error outcome.
const exitCodeFailed = 2

func newToolsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tool catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApplication(cmd, opts, func(_ context.Context, application *app.Application) error {
				return printSummary(application.Catalog().Summary(), opts.jsonOutput)
			})
		},
	}
}

func newDispatchCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch <request>",
		Short: "Resolve a request to one tool call and run it",
		Long:  "Resolve a request to one tool call and run it. Prefix the request with [tool_id] to skip tool selection.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			request := strings.Join(args, " ")
			return withApplication(cmd, opts, func(ctx context.Context, application *app.Application) error {
				return finishOutcome(application.Dispatch(ctx, request), opts.jsonOutput)
			})
		},
	}
}

func newInvokeCmd(opts *cliOptions) *cobra.Command {
	var rawArgs string
	cmd := &cobra.Command{
		Use:   "invoke <tool_id>",
		Short: "Call a catalogue tool directly with JSON arguments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs, err := parseArguments(rawArgs)
			if err != nil {
				return err
			}
			return withApplication(cmd, opts, func(ctx context.Context, application *app.Application) error {
				return finishOutcome(application.Invoke(ctx, args[0], toolArgs), opts.jsonOutput)
			})
		},
	}
	cmd.Flags().StringVar(&rawArgs, "args", "{}", "tool arguments as a JSON object")
	return cmd
}

func newStepCmd(opts *cliOptions) *cobra.Command {
	var historyPath string
	cmd := &cobra.Command{
		Use:   "step <goal>",
		Short: "Decide and run the next step of a multi-turn task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := loadHistory(historyPath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			goal := strings.Join(args, " ")
			return withApplication(cmd, opts, func(ctx context.Context, application *app.Application) error {
				return finishOutcome(application.Step(ctx, goal, history), opts.jsonOutput)
			})
		},
	}
	cmd.Flags().StringVar(&historyPath, "history", "", "JSON file holding the steps taken so far (- reads stdin)")
	return cmd
}

func newRunCmd(opts *cliOptions) *cobra.Command {
	var maxTurns int
	cmd := &cobra.Command{
		Use:   "run <goal>",
		Short: "Drive a multi-turn task until it finishes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			goal := strings.Join(args, " ")
			return withApplication(cmd, opts, func(ctx context.Context, application *app.Application) error {
				result := application.Run(ctx, goal, maxTurns)
				if err := printRun(result, opts.jsonOutput); err != nil {
					return err
				}
				if result.Final.Failed() {
					return exitSilent(exitCodeFailed)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&maxTurns, "max-turns", 0, "maximum number of steps (0 uses the configured limit)")
	return cmd
}

func newSuggestCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <query>",
		Short: "List the tools relevant to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return withApplication(cmd, opts, func(ctx context.Context, application *app.Application) error {
				ids, err := application.Select(ctx, query)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return writeJSON(map[string]any{"tools": ids})
				}
				for _, id := range ids {
					fmt.Println(id)
				}
				return nil
			})
		},
	}
}

func finishOutcome(outcome domain.Outcome, jsonOutput bool) error {
	if err := printOutcome(outcome, jsonOutput); err != nil {
		return err
	}
	if outcome.Failed() {
		return exitSilent(exitCodeFailed)
	}
	return nil
}

func parseArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("parse --args: %w", err)
	}
	if args == nil {
		return nil, errors.New("parse --args: expected a JSON object")
	}
	return args, nil
}

func loadHistory(path string, stdin io.Reader) ([]domain.Step, error) {
	if path == "" {
		return nil, nil
	}
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	var history []domain.Step
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}
	for i, step := range history {
		if strings.TrimSpace(step.ToolID) == "" {
			return nil, fmt.Errorf("parse history: step %d has no tool_id", i)
		}
	}
	return history, nil
}
