package system

import "github.com/spf13/cobra"

// NewSystemCommand groups the one-shot maintenance commands: database
// bootstrap, table migration with RBAC seeding, and CLI docs.
func NewSystemCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "system",
		Short: "Maintenance and tooling commands",
	}
	cmd.AddCommand(NewInitCommand(), NewMigrateCommand(), NewGenDocsCommand())
	return cmd
}
