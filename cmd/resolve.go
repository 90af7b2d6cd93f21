package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/embedder/internal/webembed"
)

func newResolveCommand() *cobra.Command {
	var host string

	cmd := &cobra.Command{
		Use:   "resolve <url>",
		Short: "Look up the embed for one link and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newCLIApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			embed, err := app.Resolver.Resolve(cmd.Context(), webembed.Request{URL: args[0], SiteHost: host})
			if err != nil {
				return fmt.Errorf("resolve %s: %w", args[0], err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(embed)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "site host forwarded to providers that need a parent domain")
	return cmd
}
