package system

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Alijeyrad/careflow_backend/cmd/cmdutil"
	"github.com/Alijeyrad/careflow_backend/pkg/authorize"
	"github.com/Alijeyrad/careflow_backend/pkg/database"
)

func NewMigrateCommand() *cobra.Command {
	var superadmin string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create queue and export tables and seed RBAC policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdutil.LoadConfig(cmd)
			if err != nil {
				return err
			}
			flush := cmdutil.InstallLogger(cfg)
			defer flush()

			ctx, cancel := cmdutil.CommandContext(cmd, cfg)
			defer cancel()

			if cfg.Storage.Driver == "memory" {
				fmt.Println("storage.driver is memory; skipping table migrations.")
			} else {
				fmt.Println("Running migrations for the careflow database.")
				client, err := database.NewEntClient(ctx, cfg.Database)
				if err != nil {
					return fmt.Errorf("failed to open database: %w", err)
				}
				defer client.Close()

				if err := database.MigrateEnt(ctx, client, cfg.Database.Migrations); err != nil {
					return fmt.Errorf("failed to run migrations: %w", err)
				}
			}

			fmt.Println("Seeding the Casbin policy database.")
			authCfg := authorize.FromCentralConfig(cfg.Authorization)
			enforcer, cleanup, err := authorize.NewEnforcer(authCfg, database.NewDSN(cfg.CasbinDatabase))
			if err != nil {
				return fmt.Errorf("failed to create enforcer: %w", err)
			}
			defer cleanup(context.Background())

			auth, err := authorize.NewAuthorization(enforcer, authCfg)
			if err != nil {
				return fmt.Errorf("failed to create authorization: %w", err)
			}
			if err := authorize.SeedDefaultPolicies(ctx, auth); err != nil {
				return fmt.Errorf("failed to seed policies: %w", err)
			}

			if superadmin != "" {
				userID, err := uuid.Parse(superadmin)
				if err != nil {
					return fmt.Errorf("invalid --superadmin %q: %w", superadmin, err)
				}
				if err := authorize.AssignSuperAdmin(ctx, auth, userID); err != nil {
					return fmt.Errorf("failed to assign superadmin: %w", err)
				}
				slog.Info("assigned platform superadmin", "user_id", userID)
			}

			if err := authorize.PersistPolicy(auth, authCfg); err != nil {
				return fmt.Errorf("failed to save policy file: %w", err)
			}

			fmt.Println("Migrations executed successfully.")
			return nil
		},
	}

	cmd.Flags().StringVar(&superadmin, "superadmin", "", "User id to grant the platform superadmin role")

	return cmd
}
