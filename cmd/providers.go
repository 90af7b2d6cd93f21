package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/embedder/internal/provider"
)

func newProvidersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the domains that can be embedded",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, domain := range provider.Domains() {
				fmt.Fprintln(cmd.OutOrStdout(), domain)
			}
		},
	}
}
