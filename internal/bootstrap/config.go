// Package bootstrap wires configuration, logging, the embed client, the cache
// and the HTTP server into a running embedder.
package bootstrap

import (
	"fmt"

	"github.com/jonesrussell/north-cloud/embedder/internal/config"
	"github.com/jonesrussell/north-cloud/embedder/internal/logger"
)

const (
	serviceName = "embedder"
	// defaultConfigPath is used when neither --config nor CONFIG_PATH is set.
	defaultConfigPath = "config.yml"
)

// Version is set at build time with -ldflags "-X ...bootstrap.Version=...".
var Version = "dev"

// LoadConfig loads configuration from path, falling back to CONFIG_PATH and
// then config.yml. debug forces debug mode on.
func LoadConfig(path string, debug bool) (*config.Config, error) {
	if path == "" {
		path = config.GetConfigPath(defaultConfigPath)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if debug {
		cfg.Debug = true
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// CreateLogger creates the service logger from configuration.
func CreateLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	return log.With(
		logger.String("service", serviceName),
		logger.String("version", Version),
	), nil
}
