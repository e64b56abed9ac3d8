package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/basetier/stratum/internal/model"
)

// NewChangeSetCommand creates the changeset command group.
func NewChangeSetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "changeset",
		Aliases: []string{"cs"},
		Short:   "Manage change sets (branches)",
	}

	cmd.AddCommand(newChangeSetCreateCommand(rootOpts))
	cmd.AddCommand(newChangeSetListCommand(rootOpts))
	cmd.AddCommand(newChangeSetApplyCommand(rootOpts))
	cmd.AddCommand(newChangeSetAbandonCommand(rootOpts))
	return cmd
}

func newChangeSetCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:           "create",
		Short:         "Create an open change set",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())

			s, cleanup, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			cs, err := s.NewChangeSet(cmd.Context(), rootOpts.Workspace, name)
			if err != nil {
				return reportStoreError(formatter, err)
			}
			return formatter.Successf(cs, "created change set %s (%s)", cs.Name, cs.ID)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "change set name (default: derived from id)")
	return cmd
}

func newChangeSetListCommand(rootOpts *RootOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List a workspace's change sets",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())

			s, cleanup, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			list, err := s.ListChangeSets(cmd.Context(), rootOpts.Workspace, model.ChangeSetStatus(status))
			if err != nil {
				return reportStoreError(formatter, err)
			}
			counts, err := s.CountChangeSets(cmd.Context(), rootOpts.Workspace)
			if err != nil {
				return reportStoreError(formatter, err)
			}

			if formatter.Format == "json" {
				return formatter.Success(map[string]any{
					"changeSets": list,
					"counts":     counts,
				})
			}

			var b strings.Builder
			for _, cs := range list {
				fmt.Fprintf(&b, "%s  %-9s  %s\n", cs.ID, cs.Status, cs.Name)
			}
			fmt.Fprintf(&b, "open: %d, closed: %d", counts.Open, counts.Closed)
			return formatter.Success(b.String())
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (open|applied|abandoned)")
	return cmd
}

func newChangeSetApplyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "apply <change-set-id>",
		Short:         "Atomically promote a change set to head",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())

			s, cleanup, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := s.ApplyChangeSet(cmd.Context(), args[0]); err != nil {
				return reportStoreError(formatter, err)
			}
			return formatter.Successf(map[string]string{"applied": args[0]},
				"applied %s to head", args[0])
		},
	}
	return cmd
}

func newChangeSetAbandonCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "abandon <change-set-id>",
		Short:         "Discard a change set without applying it",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())

			s, cleanup, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := s.AbandonChangeSet(cmd.Context(), args[0]); err != nil {
				return reportStoreError(formatter, err)
			}
			return formatter.Successf(map[string]string{"abandoned": args[0]},
				"abandoned %s", args[0])
		},
	}
	return cmd
}

// reportStoreError renders a store failure in the configured format and
// converts it to a non-zero exit.
func reportStoreError(formatter *OutputFormatter, err error) error {
	var se *model.StoreError
	if errors.As(err, &se) {
		_ = formatter.Error(string(se.Code), se.Message, se.ObjectID)
		return WrapExitError(ExitFailure, string(se.Code), err)
	}
	_ = formatter.Error("ERROR", err.Error(), nil)
	return WrapExitError(ExitFailure, "store error", err)
}
