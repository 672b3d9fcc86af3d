package cli

import (
	"context"

	"github.com/spf13/cobra"

	"bfdb/application/commands"
	"bfdb/application/queries"
	querybus "bfdb/application/queries/bus"
	"bfdb/domain/core/entities"
	"bfdb/domain/core/valueobjects"
	"bfdb/infrastructure/di"
)

// edgeCommand creates the edge management command.
func (c *CLI) edgeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edge",
		Short: "Connect and disconnect nodes",
	}

	cmd.AddCommand(c.edgeCreateCommand())
	cmd.AddCommand(c.edgeDeleteCommand())

	return cmd
}

// edgeCreateCommand creates the "edge create" subcommand.
func (c *CLI) edgeCreateCommand() *cobra.Command {
	var (
		id        string
		role      string
		className string
		rawProps  string
	)

	cmd := &cobra.Command{
		Use:   "create <source-id> <target-id>",
		Short: "Create an edge from source to target",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := parseProps(rawProps)
			if err != nil {
				return err
			}
			return c.withContainer(cmd, func(ctx context.Context, viewer valueobjects.CurrentViewer, container *di.Container) error {
				edgeID := valueobjects.BfGid(id)
				if edgeID.IsZero() {
					edgeID = valueobjects.NewBfGid()
				}
				create := commands.CreateEdgeCommand{
					EdgeID:    edgeID,
					Viewer:    viewer,
					SourceID:  valueobjects.BfGid(args[0]),
					TargetID:  valueobjects.BfGid(args[1]),
					Role:      role,
					ClassName: className,
					Props:     props,
				}
				if err := container.CommandBus.Send(ctx, create); err != nil {
					return err
				}
				return c.printJSON(map[string]string{
					"edgeId":    edgeID.String(),
					"sourceId":  create.SourceID.String(),
					"targetId":  create.TargetID.String(),
					"role":      role,
					"className": className,
				})
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "edge id (generated when empty)")
	cmd.Flags().StringVar(&role, "role", "", "relationship role")
	cmd.Flags().StringVar(&className, "class", valueobjects.DefaultEdgeClassName, "edge class name")
	cmd.Flags().StringVar(&rawProps, "props", "", "edge props as a JSON object")

	return cmd
}

// edgeDeleteCommand creates the "edge delete" subcommand.
func (c *CLI) edgeDeleteCommand() *cobra.Command {
	var cascade bool

	cmd := &cobra.Command{
		Use:   "delete <edge-id>",
		Short: "Delete an edge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withContainer(cmd, func(ctx context.Context, viewer valueobjects.CurrentViewer, container *di.Container) error {
				return container.CommandBus.Send(ctx, commands.DeleteEdgeCommand{
					EdgeID:  valueobjects.BfGid(args[0]),
					Viewer:  viewer,
					Cascade: cascade,
				})
			})
		},
	}

	cmd.Flags().BoolVar(&cascade, "cascade", false, "also delete the target when nothing else points at it")

	return cmd
}

// traversalCommand creates the one-hop "targets" and "sources" commands.
func (c *CLI) traversalCommand(use, short string) *cobra.Command {
	var (
		className string
		role      string
	)

	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withContainer(cmd, func(ctx context.Context, viewer valueobjects.CurrentViewer, container *di.Container) error {
				var edgeProps valueobjects.Props
				if cmd.Flags().Changed("role") {
					edgeProps = valueobjects.Props{entities.RoleKey: role}
				}

				var query querybus.Query
				gid := valueobjects.BfGid(args[0])
				if use == "targets" {
					query = queries.QueryTargetInstancesQuery{
						Viewer:          viewer,
						SourceID:        gid,
						TargetClassName: className,
						EdgeProps:       edgeProps,
					}
				} else {
					query = queries.QuerySourceInstancesQuery{
						Viewer:          viewer,
						TargetID:        gid,
						SourceClassName: className,
						EdgeProps:       edgeProps,
					}
				}
				return c.askNodes(ctx, container, query)
			})
		},
	}

	cmd.Flags().StringVar(&className, "class", "", "only include nodes of this class")
	cmd.Flags().StringVar(&role, "role", "", "only follow edges with this role")

	return cmd
}

// lineageCommand creates the multi-hop "ancestors" and "descendants" commands.
func (c *CLI) lineageCommand(use, short string) *cobra.Command {
	var (
		className string
		depth     int
	)

	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withContainer(cmd, func(ctx context.Context, viewer valueobjects.CurrentViewer, container *di.Container) error {
				gid := valueobjects.BfGid(args[0])
				if use == "ancestors" {
					return c.askNodes(ctx, container, queries.QueryAncestorsQuery{
						Viewer: viewer, BfGid: gid, ClassName: className, Depth: depth,
					})
				}
				return c.askNodes(ctx, container, queries.QueryDescendantsQuery{
					Viewer: viewer, BfGid: gid, ClassName: className, Depth: depth,
				})
			})
		},
	}

	cmd.Flags().StringVar(&className, "class", "", "class of the nodes to collect")
	cmd.Flags().IntVar(&depth, "depth", 0, "maximum hops (0 uses the configured default)")
	_ = cmd.MarkFlagRequired("class")

	return cmd
}

func (c *CLI) askNodes(ctx context.Context, container *di.Container, query querybus.Query) error {
	result, err := container.QueryBus.Ask(ctx, query)
	if err != nil {
		return err
	}
	return c.printNodes(result.([]*entities.Node))
}
