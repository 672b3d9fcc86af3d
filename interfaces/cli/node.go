package cli

import (
	"context"

	"github.com/spf13/cobra"

	"bfdb/application/commands"
	"bfdb/application/connection"
	"bfdb/application/queries"
	"bfdb/domain/core/entities"
	"bfdb/domain/core/valueobjects"
	"bfdb/infrastructure/di"
)

// nodeCommand creates the node management command.
func (c *CLI) nodeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Create, read, update and delete nodes",
	}

	cmd.AddCommand(c.nodeCreateCommand())
	cmd.AddCommand(c.nodeGetCommand())
	cmd.AddCommand(c.nodeUpdateCommand())
	cmd.AddCommand(c.nodeDeleteCommand())
	cmd.AddCommand(c.nodeListCommand())

	return cmd
}

// nodeCreateCommand creates the "node create" subcommand.
func (c *CLI) nodeCreateCommand() *cobra.Command {
	var (
		id        string
		className string
		rawProps  string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a node and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := parseProps(rawProps)
			if err != nil {
				return err
			}
			return c.withContainer(cmd, func(ctx context.Context, viewer valueobjects.CurrentViewer, container *di.Container) error {
				gid := valueobjects.BfGid(id)
				if gid.IsZero() {
					gid = valueobjects.NewBfGid()
				}
				err := container.CommandBus.Send(ctx, commands.CreateNodeCommand{
					BfGid:     gid,
					Viewer:    viewer,
					ClassName: className,
					Props:     props,
				})
				if err != nil {
					return err
				}
				return c.printNode(ctx, container, viewer, gid)
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "node id (generated when empty)")
	cmd.Flags().StringVar(&className, "class", "", "node class name")
	cmd.Flags().StringVar(&rawProps, "props", "", "props as a JSON object")
	_ = cmd.MarkFlagRequired("class")

	return cmd
}

// nodeGetCommand creates the "node get" subcommand.
func (c *CLI) nodeGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print one node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withContainer(cmd, func(ctx context.Context, viewer valueobjects.CurrentViewer, container *di.Container) error {
				return c.printNode(ctx, container, viewer, valueobjects.BfGid(args[0]))
			})
		},
	}
}

// nodeUpdateCommand creates the "node update" subcommand.
func (c *CLI) nodeUpdateCommand() *cobra.Command {
	var (
		rawProps string
		replace  bool
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Merge or replace the props of a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := parseProps(rawProps)
			if err != nil {
				return err
			}
			return c.withContainer(cmd, func(ctx context.Context, viewer valueobjects.CurrentViewer, container *di.Container) error {
				gid := valueobjects.BfGid(args[0])
				err := container.CommandBus.Send(ctx, commands.UpdateNodeCommand{
					BfGid:   gid,
					Viewer:  viewer,
					Props:   props,
					Replace: replace,
				})
				if err != nil {
					return err
				}
				return c.printNode(ctx, container, viewer, gid)
			})
		},
	}

	cmd.Flags().StringVar(&rawProps, "props", "", "props as a JSON object")
	cmd.Flags().BoolVar(&replace, "replace", false, "replace props instead of merging")
	_ = cmd.MarkFlagRequired("props")

	return cmd
}

// nodeDeleteCommand creates the "node delete" subcommand.
func (c *CLI) nodeDeleteCommand() *cobra.Command {
	var cascade bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a node and its edges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withContainer(cmd, func(ctx context.Context, viewer valueobjects.CurrentViewer, container *di.Container) error {
				return container.CommandBus.Send(ctx, commands.DeleteNodeCommand{
					BfGid:   valueobjects.BfGid(args[0]),
					Viewer:  viewer,
					Cascade: cascade,
				})
			})
		},
	}

	cmd.Flags().BoolVar(&cascade, "cascade", false, "also delete targets left without incoming edges")

	return cmd
}

// nodeListCommand creates the "node list" subcommand.
func (c *CLI) nodeListCommand() *cobra.Command {
	var (
		className string
		first     int
		after     string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Page through the organisation's nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withContainer(cmd, func(ctx context.Context, viewer valueobjects.CurrentViewer, container *di.Container) error {
				query := queries.NodeConnectionQuery{Viewer: viewer, ClassName: className}
				if first > 0 {
					query.Args.First = &first
				}
				if after != "" {
					query.Args.After = &after
				}
				result, err := container.QueryBus.Ask(ctx, query)
				if err != nil {
					return err
				}
				conn := result.(*connection.Connection[*entities.Node])
				return c.printJSON(connection.Map(conn, (*entities.Node).ToItem))
			})
		},
	}

	cmd.Flags().StringVar(&className, "class", "", "only list nodes of this class")
	cmd.Flags().IntVar(&first, "first", 0, "page size")
	cmd.Flags().StringVar(&after, "after", "", "cursor to continue from")

	return cmd
}

func (c *CLI) printNode(ctx context.Context, container *di.Container, viewer valueobjects.CurrentViewer, gid valueobjects.BfGid) error {
	result, err := container.QueryBus.Ask(ctx, queries.GetNodeQuery{Viewer: viewer, BfGid: gid})
	if err != nil {
		return err
	}
	return c.printJSON(result.(*entities.Node).ToItem())
}

func (c *CLI) printNodes(nodes []*entities.Node) error {
	items := make([]entities.Item, len(nodes))
	for i, n := range nodes {
		items[i] = n.ToItem()
	}
	return c.printJSON(items)
}
