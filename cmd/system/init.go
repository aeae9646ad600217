package system

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/careflow_backend/cmd/cmdutil"
	"github.com/Alijeyrad/careflow_backend/pkg/database"
)

func NewInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the careflow and policy databases if missing",
		Long: `Connects to the maintenance "postgres" database with the credentials in
the database section and creates each name listed in server.databases.
Run once per cluster before "system migrate".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdutil.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Storage.Driver == "memory" {
				fmt.Println("storage.driver is memory; nothing to initialize.")
				return nil
			}
			flush := cmdutil.InstallLogger(cfg)
			defer flush()

			ctx, cancel := cmdutil.CommandContext(cmd, cfg)
			defer cancel()

			if err := database.InitializeDatabases(ctx, cfg); err != nil {
				return fmt.Errorf("initialize databases: %w", err)
			}
			fmt.Println("Databases initialized.")
			return nil
		},
	}
}
