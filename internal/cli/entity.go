package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/basetier/stratum/internal/model"
)

// scopeFlags are the tier-context flags shared by graph commands.
type scopeFlags struct {
	ChangeSet string
	Session   string
}

func (f *scopeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.ChangeSet, "changeset", "", "change set id (tier context)")
	cmd.Flags().StringVar(&f.Session, "session", "", "edit session id (tier context)")
}

func (f *scopeFlags) scope(workspace string) model.Scope {
	return model.Scope{
		WorkspaceID:   workspace,
		ChangeSetID:   f.ChangeSet,
		EditSessionID: f.Session,
	}
}

// parsePayloadFlag decodes the --payload JSON document.
func parsePayloadFlag(raw string) (model.Payload, error) {
	if raw == "" {
		return model.Payload{}, nil
	}
	payload, err := model.DecodePayload([]byte(raw))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --payload", err)
	}
	return payload, nil
}

// NewEntityCommand creates the entity command group.
func NewEntityCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Create, edit and inspect entities",
	}

	cmd.AddCommand(newEntityCreateCommand(rootOpts))
	cmd.AddCommand(newEntityUpdateCommand(rootOpts))
	cmd.AddCommand(newEntityGetCommand(rootOpts))
	cmd.AddCommand(newEntityListCommand(rootOpts))
	cmd.AddCommand(newEntityDeleteCommand(rootOpts))
	return cmd
}

func newEntityCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		flags   scopeFlags
		kind    string
		name    string
		payload string
	)

	cmd := &cobra.Command{
		Use:           "create",
		Short:         "Create an entity draft in an edit session",
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

			entity, err := s.CreateEntity(cmd.Context(), flags.scope(rootOpts.Workspace), kind, name, doc)
			if err != nil {
				return reportStoreError(formatter, err)
			}
			return formatter.Successf(entity, "created %s %q (%s)", entity.Kind, entity.Name, entity.ID)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&kind, "kind", "", "entity kind (required)")
	cmd.Flags().StringVar(&name, "name", "", "entity name (required)")
	cmd.Flags().StringVar(&payload, "payload", "", "payload JSON document")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newEntityUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		flags   scopeFlags
		name    string
		payload string
	)

	cmd := &cobra.Command{
		Use:           "update <object-id>",
		Short:         "Write a copy-on-write draft for an entity",
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

			var doc model.Payload
			if payload != "" {
				if doc, err = parsePayloadFlag(payload); err != nil {
					return err
				}
			}

			rec, err := s.UpdateRecord(cmd.Context(), flags.scope(rootOpts.Workspace),
				model.RecordEntity, args[0], func(r *model.Record) error {
					if name != "" {
						r.Name = name
					}
					if doc != nil {
						r.Payload = doc
					}
					return nil
				})
			if err != nil {
				return reportStoreError(formatter, err)
			}
			return formatter.Successf(model.EntityFromRecord(rec), "updated %s at %s", rec.ObjectID, rec.Tier)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&name, "name", "", "new entity name")
	cmd.Flags().StringVar(&payload, "payload", "", "replacement payload JSON document")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newEntityGetCommand(rootOpts *RootOptions) *cobra.Command {
	var flags scopeFlags

	cmd := &cobra.Command{
		Use:           "get <object-id>",
		Short:         "Resolve an entity under a tier context",
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

			entity, err := s.ResolveEntity(cmd.Context(), flags.scope(rootOpts.Workspace), args[0])
			if err != nil {
				return reportStoreError(formatter, err)
			}

			if formatter.Format == "json" {
				return formatter.Success(entity)
			}
			payload, perr := entity.Payload.MarshalCanonicalJSON()
			if perr != nil {
				return reportStoreError(formatter, perr)
			}
			return formatter.Success(fmt.Sprintf("%s  %s  %q  [%s]\n%s",
				entity.ID, entity.Kind, entity.Name, entity.Tier, payload))
		},
	}

	flags.register(cmd)
	return cmd
}

func newEntityListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		flags scopeFlags
		kind  string
	)

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List entities of a kind visible under a tier context",
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

			entities, err := s.ListEntities(cmd.Context(), flags.scope(rootOpts.Workspace), kind)
			if err != nil {
				return reportStoreError(formatter, err)
			}

			if formatter.Format == "json" {
				return formatter.Success(entities)
			}
			var b strings.Builder
			for _, e := range entities {
				fmt.Fprintf(&b, "%s  %q  [%s]\n", e.ID, e.Name, e.Tier)
			}
			fmt.Fprintf(&b, "%d %s entities", len(entities), kind)
			return formatter.Success(b.String())
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&kind, "kind", "", "entity kind (required)")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func newEntityDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var flags scopeFlags

	cmd := &cobra.Command{
		Use:           "delete <object-id>",
		Short:         "Draft a deletion for an entity in an edit session",
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

			if err := s.DeleteRecord(cmd.Context(), flags.scope(rootOpts.Workspace), model.RecordEntity, args[0]); err != nil {
				return reportStoreError(formatter, err)
			}
			return formatter.Successf(map[string]string{"deleted": args[0]},
				"drafted deletion of %s", args[0])
		},
	}

	flags.register(cmd)
	_ = cmd.MarkFlagRequired("session")
	return cmd
}
