// Package cmd implements the embedder command-line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/embedder/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/embedder/internal/config"
	"github.com/jonesrussell/north-cloud/embedder/internal/logger"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug enables debug logging for all commands.
	debug bool
)

// NewRootCommand builds the command tree. Running it without a subcommand
// starts the HTTP service.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "embedder",
		Short:         "Resolve embeddable links and splice them into HTML",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $CONFIG_PATH or ./config.yml)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newServeCommand(),
		newRenderCommand(),
		newResolveCommand(),
		newProvidersCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "embedder version %s\n", bootstrap.Version)
			},
		},
	)

	return root
}

// Execute runs the root command until it finishes or a signal arrives.
func Execute() error {
	// A missing .env file is fine; the environment is used as-is.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewRootCommand().ExecuteContext(ctx)
}

func loadConfig() (*config.Config, error) {
	return bootstrap.LoadConfig(cfgFile, debug)
}

// newCLIApp wires the components for one-shot commands. Logs go to stderr.
func newCLIApp(ctx context.Context) (*bootstrap.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	return bootstrap.NewApp(ctx, cfg, logger.ForCLI(debug || cfg.Debug))
}
