package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"tooldispatch/internal/app"
	"tooldispatch/internal/buildinfo"
	"tooldispatch/internal/domain"
)

const envPrefix = "TOOLDISPATCH_"

type cliOptions struct {
	configPath string
	debug      bool
	jsonOutput bool
	logger     *zap.Logger
}

func newRootCommand() *cobra.Command {
	opts := cliOptions{
		configPath: domain.DefaultConfigPath,
		logger:     zap.NewNop(),
	}

	root := &cobra.Command{
		Use:           buildinfo.Name,
		Short:         "Route natural-language requests to catalogued tools",
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := applyEnvDefaults(cmd.Flags(), os.LookupEnv); err != nil {
				return err
			}
			logger, err := newLogger(opts.debug)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = opts.logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", opts.configPath, "path to config file")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable development logging")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output JSON")

	root.AddCommand(
		newToolsCmd(&opts),
		newDispatchCmd(&opts),
		newInvokeCmd(&opts),
		newStepCmd(&opts),
		newRunCmd(&opts),
		newSuggestCmd(&opts),
		newJournalCmd(&opts),
		newServeCmd(&opts),
		newValidateCmd(&opts),
	)

	return root
}

// applyEnvDefaults fills flags left unset on the command line from
// TOOLDISPATCH_<FLAG> variables, so --config reads TOOLDISPATCH_CONFIG.
func applyEnvDefaults(flags *pflag.FlagSet, lookup func(string) (string, bool)) error {
	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			return
		}
		value, ok := lookup(envName(f.Name))
		if !ok {
			return
		}
		if err := flags.Set(f.Name, value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", envName(f.Name), err))
		}
	})
	return errors.Join(errs...)
}

func envName(flag string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// newLogger writes to stderr in both modes so stdout stays free for output
// and for the stdio MCP transport.
func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func withApplication(cmd *cobra.Command, opts *cliOptions, fn func(ctx context.Context, application *app.Application) error) error {
	ctx, cancel := signalAwareContext(cmd.Context())
	defer cancel()

	application, cleanup, err := app.InitializeApplication(ctx, app.ServeConfig{ConfigPath: opts.configPath}, app.LoggingConfig{Logger: opts.logger})
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(ctx, application)
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
