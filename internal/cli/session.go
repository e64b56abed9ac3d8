package cli

import (
	"github.com/spf13/cobra"
)

// NewSessionCommand creates the session command group.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage edit sessions (working copies)",
	}

	cmd.AddCommand(newSessionCreateCommand(rootOpts))
	cmd.AddCommand(newSessionSaveCommand(rootOpts))
	cmd.AddCommand(newSessionCancelCommand(rootOpts))
	return cmd
}

func newSessionCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var changeSetID string

	cmd := &cobra.Command{
		Use:           "create",
		Short:         "Open an edit session under a change set",
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

			session, err := s.NewEditSession(cmd.Context(), changeSetID, rootOpts.Workspace)
			if err != nil {
				return reportStoreError(formatter, err)
			}
			return formatter.Successf(session, "opened edit session %s under %s", session.ID, changeSetID)
		},
	}

	cmd.Flags().StringVar(&changeSetID, "changeset", "", "owning change set id (required)")
	_ = cmd.MarkFlagRequired("changeset")
	return cmd
}

func newSessionSaveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "save <session-id>",
		Short:         "Promote a session's drafts to its change set",
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

			if err := s.SaveSession(cmd.Context(), args[0]); err != nil {
				return reportStoreError(formatter, err)
			}
			return formatter.Successf(map[string]string{"saved": args[0]},
				"saved session %s", args[0])
		},
	}
	return cmd
}

func newSessionCancelCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cancel <session-id>",
		Short:         "Discard a session's drafts",
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

			if err := s.CancelSession(cmd.Context(), args[0]); err != nil {
				return reportStoreError(formatter, err)
			}
			return formatter.Successf(map[string]string{"canceled": args[0]},
				"canceled session %s", args[0])
		},
	}
	return cmd
}
