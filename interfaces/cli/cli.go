// Package cli implements bfdbctl, a command-line client that drives the
// command and query buses directly against a local store.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"bfdb/domain/core/valueobjects"
	"bfdb/infrastructure/config"
	"bfdb/infrastructure/di"
)

// CLI holds shared state for all commands.
type CLI struct {
	out io.Writer

	verbose    bool
	backend    string
	badgerPath string
	org        string
	person     string
}

// New creates a CLI that prints results to out.
func New(out io.Writer) *CLI {
	return &CLI{out: out}
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "bfdbctl",
		Short:         "bfdbctl reads and writes the bfdb graph store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&c.backend, "backend", config.BackendBadger, "storage backend (memory, badger, dynamodb)")
	flags.StringVar(&c.badgerPath, "path", "", "badger data directory (defaults to BADGER_PATH)")
	flags.StringVar(&c.org, "org", "", "viewer organisation id")
	flags.StringVar(&c.person, "person", "", "viewer person id (defaults to the organisation)")

	root.AddCommand(c.nodeCommand())
	root.AddCommand(c.edgeCommand())
	root.AddCommand(c.traversalCommand("targets", "List nodes the given node points at"))
	root.AddCommand(c.traversalCommand("sources", "List nodes that point at the given node"))
	root.AddCommand(c.lineageCommand("ancestors", "Walk incoming edges to nodes of a class"))
	root.AddCommand(c.lineageCommand("descendants", "Walk outgoing edges to nodes of a class"))
	root.AddCommand(c.tokenCommand())

	return root
}

// loadConfig applies the command-line overrides on top of the environment.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	cfg.Backend = c.backend
	if c.badgerPath != "" {
		cfg.BadgerPath = c.badgerPath
	}

	cfg.LogLevel = "warn"
	if c.verbose {
		cfg.LogLevel = "debug"
	}
	cfg.EnableMetrics = false
	cfg.EnableTracing = false

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// open builds a container for one command invocation.
func (c *CLI) open(ctx context.Context) (*di.Container, func(), error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}
	return container, cleanup, nil
}

func (c *CLI) viewer() (valueobjects.CurrentViewer, error) {
	if c.org == "" {
		return valueobjects.CurrentViewer{}, fmt.Errorf("--org is required")
	}
	person := c.person
	if person == "" {
		return valueobjects.OmniViewer(valueobjects.BfGid(c.org)), nil
	}
	return valueobjects.NewCurrentViewer(c.org, person)
}

// withContainer runs fn with a viewer and an open container, closing the
// store afterwards.
func (c *CLI) withContainer(cmd *cobra.Command, fn func(context.Context, valueobjects.CurrentViewer, *di.Container) error) error {
	viewer, err := c.viewer()
	if err != nil {
		return err
	}
	container, cleanup, err := c.open(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(cmd.Context(), viewer, container)
}

func (c *CLI) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseProps decodes a JSON object given on the command line.
func parseProps(raw string) (valueobjects.Props, error) {
	if raw == "" {
		return valueobjects.Props{}, nil
	}
	var props valueobjects.Props
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, fmt.Errorf("--props must be a JSON object: %w", err)
	}
	if props == nil {
		props = valueobjects.Props{}
	}
	return props, nil
}
