package cli

import (
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create or migrate the database",
		Long: `Create the SQLite database if it does not exist and apply schema
migrations. Safe to run repeatedly.

Example:
  stratum init --db ./stratum.db --workspace acme`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())

			_, cleanup, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			formatter.VerboseLog("database ready at %s", rootOpts.Database)
			return formatter.Successf(map[string]string{"db": rootOpts.Database},
				"initialized %s", rootOpts.Database)
		},
	}
	return cmd
}
