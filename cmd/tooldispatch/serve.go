package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tooldispatch/internal/app"
)

func newServeCmd(opts *cliOptions) *cobra.Command {
	var exposeTools bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve dispatch as an MCP server over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApplication(cmd, opts, func(ctx context.Context, application *app.Application) error {
				return application.Serve(ctx, app.ServeOptions{ExposeTools: exposeTools})
			})
		},
	}
	cmd.Flags().BoolVar(&exposeTools, "expose-tools", false, "also publish every invocable catalogue tool")
	return cmd
}

func newValidateCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the config file without building the catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := app.ValidateConfig(cmd.Context(), app.ServeConfig{ConfigPath: opts.configPath}, app.LoggingConfig{Logger: opts.logger})
			if err != nil {
				return err
			}
			opts.logger.Debug("config valid", zap.String("provider", config.Oracle.Provider))
			if opts.jsonOutput {
				return writeJSON(map[string]any{
					"valid":      true,
					"provider":   config.Oracle.Provider,
					"model":      config.Oracle.Model,
					"tools":      len(config.Tools),
					"toolFiles":  len(config.Catalog.ToolFiles),
					"mcpServers": len(config.MCPServers),
				})
			}
			fmt.Printf("config ok: provider=%s model=%s tools=%d toolFiles=%d mcpServers=%d\n",
				config.Oracle.Provider, config.Oracle.Model, len(config.Tools), len(config.Catalog.ToolFiles), len(config.MCPServers))
			return nil
		},
	}
}
