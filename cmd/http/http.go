package http

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/careflow_backend/cmd/cmdutil"
	apihttp "github.com/Alijeyrad/careflow_backend/internal/api/http"
)

func NewHTTPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "http",
		Short: "Queue and export HTTP API",
	}
	cmd.AddCommand(newStartCommand())
	return cmd
}

func newStartCommand() *cobra.Command {
	var shutdownTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Serve the API; with scheduler.embedded the export trigger runs in-process",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdutil.LoadConfig(cmd)
			if err != nil {
				return err
			}
			flush := cmdutil.InstallLogger(cfg)
			defer flush()

			apihttp.Start(cfg, shutdownTimeout)
			return nil
		},
	}
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "Maximum time to wait for graceful shutdown")
	return cmd
}
