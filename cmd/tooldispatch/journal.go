package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tooldispatch/internal/app"
	"tooldispatch/internal/infra/journal"
)

var errJournalDisabled = errors.New("journal is not configured (set journal.path)")

func newJournalCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect recorded dispatches",
	}
	cmd.AddCommand(
		newJournalListCmd(opts),
		newJournalShowCmd(opts),
	)
	return cmd
}

func newJournalListCmd(opts *cliOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent dispatches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withJournal(cmd, opts, func(store *journal.Store) error {
				entries, err := store.List(limit)
				if err != nil {
					return err
				}
				return printJournalEntries(entries, opts.jsonOutput)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of entries (0 lists all)")
	return cmd
}

func newJournalShowCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one recorded dispatch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd, opts, func(store *journal.Store) error {
				entry, err := store.Get(args[0])
				if errors.Is(err, journal.ErrNotFound) {
					return exitError{code: 1, message: fmt.Sprintf("journal entry %q not found", args[0])}
				}
				if err != nil {
					return err
				}
				return writeJSON(entry)
			})
		},
	}
}

func withJournal(cmd *cobra.Command, opts *cliOptions, fn func(store *journal.Store) error) error {
	return withApplication(cmd, opts, func(_ context.Context, application *app.Application) error {
		store := application.Journal()
		if store == nil {
			return errJournalDisabled
		}
		return fn(store)
	})
}
