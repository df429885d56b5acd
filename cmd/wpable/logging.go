package main

import (
	"fmt"
	"io"
	"os"

	"github.com/samedayrules/wpable-server/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const defaultConfigPath = config.DefaultPath

// loadConfig reads the file named by --config, or the default location when
// it exists. --log-level overrides the configured level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	cfg, err := config.Load(path, explicit)
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
		if _, err := cfg.Level(); err != nil {
			return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", level)
		}
	}
	return cfg, nil
}

// configureLogger creates the logger described by cfg. When withFile is set,
// entries are also appended to cfg.LogFile; if it cannot be opened the logger
// keeps writing to stderr only. The returned function closes the log file.
func configureLogger(cfg *config.Config, stderr io.Writer, withFile bool) (*logrus.Logger, func()) {
	logger := cfg.NewLogger()
	logger.SetOutput(stderr)

	if !withFile || cfg.LogFile == "" {
		return logger, func() {}
	}

	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.WithError(err).WithField("file", cfg.LogFile).Warn("Cannot open log file, logging to stderr only")
		return logger, func() {}
	}

	logger.SetOutput(io.MultiWriter(stderr, f))
	return logger, func() { _ = f.Close() }
}
