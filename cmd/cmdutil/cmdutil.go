// Package cmdutil holds helpers shared by the careflow subcommands.
package cmdutil

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/careflow_backend/config"
	"github.com/Alijeyrad/careflow_backend/pkg/logs"
)

// LoadConfig reads the file named by the root --config flag, with
// CAREFLOW_* environment overrides applied.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("config flag: %w", err)
	}
	cfg, err := config.ReadConfig(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return cfg, nil
}

// InstallLogger makes the configured logger the slog default. The returned
// func flushes buffered sinks and must run before exit.
func InstallLogger(cfg *config.Config) func() {
	slog.SetDefault(logs.New(cfg))
	return logs.Flush
}

// CommandContext bounds one-shot maintenance commands by server.timeout_seconds.
func CommandContext(cmd *cobra.Command, cfg *config.Config) (context.Context, context.CancelFunc) {
	timeout := time.Duration(cfg.Server.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Minute
	}
	return context.WithTimeout(cmd.Context(), timeout)
}
