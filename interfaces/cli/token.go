package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bfdb/pkg/auth"
)

// tokenCommand creates the "token" command, which mints a bearer token for
// the HTTP API signed with the configured secret.
func (c *CLI) tokenCommand() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the viewer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			viewer, err := c.viewer()
			if err != nil {
				return err
			}
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			generator, err := auth.NewJWTGenerator(cfg.SigningSecret(), cfg.JWTIssuer, ttl)
			if err != nil {
				return err
			}
			token, err := generator.GenerateToken(viewer)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.out, token)
			return err
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")

	return cmd
}
