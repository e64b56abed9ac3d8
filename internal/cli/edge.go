package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/basetier/stratum/internal/model"
)

// NewEdgeCommand creates the edge command group.
func NewEdgeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edge",
		Short: "Connect entities and walk the graph",
	}

	cmd.AddCommand(newEdgeCreateCommand(rootOpts))
	cmd.AddCommand(newEdgeSuccessorsCommand(rootOpts))
	return cmd
}

func newEdgeCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		flags   scopeFlags
		kind    string
		tail    string
		head    string
		payload string
	)

	cmd := &cobra.Command{
		Use:           "create",
		Short:         "Create an edge draft between two objects",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())

			doc, err := parsePayloadFlag(payload)
			if err != nil {
				return err
			}

			s, cleanup, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer cleanup()

			scope := flags.scope(rootOpts.Workspace)

			// Resolve both endpoints under the same scope to pick up their
			// declared kinds and reject dangling references early.
			tailRec, err := s.Resolve(cmd.Context(), scope, model.RecordKindForID(tail), tail)
			if err != nil {
				return reportStoreError(formatter, err)
			}
			headRec, err := s.Resolve(cmd.Context(), scope, model.RecordKindForID(head), head)
			if err != nil {
				return reportStoreError(formatter, err)
			}

			edge, err := s.CreateEdge(cmd.Context(), scope, kind,
				model.Vertex{ObjectID: tailRec.ObjectID, Kind: tailRec.Kind},
				model.Vertex{ObjectID: headRec.ObjectID, Kind: headRec.Kind},
				doc)
			if err != nil {
				return reportStoreError(formatter, err)
			}
			return formatter.Successf(edge, "created %s edge %s -> %s (%s)",
				edge.Kind, edge.Tail.ObjectID, edge.Head.ObjectID, edge.ID)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&kind, "kind", "", "edge kind (required)")
	cmd.Flags().StringVar(&tail, "tail", "", "source object id (required)")
	cmd.Flags().StringVar(&head, "head", "", "target object id (required)")
	cmd.Flags().StringVar(&payload, "payload", "", "payload JSON document")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("tail")
	_ = cmd.MarkFlagRequired("head")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newEdgeSuccessorsCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		flags scopeFlags
		kind  string
	)

	cmd := &cobra.Command{
		Use:           "successors <object-id>",
		Short:         "List outgoing edges of a kind under a tier context",
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

			edges, err := s.Successors(cmd.Context(), flags.scope(rootOpts.Workspace), kind, args[0])
			if err != nil {
				return reportStoreError(formatter, err)
			}

			if formatter.Format == "json" {
				return formatter.Success(edges)
			}
			var b strings.Builder
			for _, e := range edges {
				fmt.Fprintf(&b, "%s  %s -> %s  [%s]\n", e.ID, e.Tail.ObjectID, e.Head.ObjectID, e.Tier)
			}
			fmt.Fprintf(&b, "%d %s successors of %s", len(edges), kind, args[0])
			return formatter.Success(b.String())
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&kind, "kind", "", "edge kind (required)")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}
