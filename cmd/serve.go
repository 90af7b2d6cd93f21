package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/embedder/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/embedder/internal/logger"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the embed HTTP service",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return err
	}

	log, err := bootstrap.CreateLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting embedder",
		logger.String("webembed_base_url", cfg.WebEmbed.BaseURL),
		logger.Int("port", cfg.Server.Port),
		logger.Bool("cache_enabled", cfg.Cache.Enabled),
		logger.Bool("auth_enabled", cfg.Auth.JWTSecret != ""),
	)

	return bootstrap.Serve(cmd.Context(), cfg, log)
}
