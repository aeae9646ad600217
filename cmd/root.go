package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	httpcmd "github.com/Alijeyrad/careflow_backend/cmd/http"
	schedulercmd "github.com/Alijeyrad/careflow_backend/cmd/scheduler"
	systemcmd "github.com/Alijeyrad/careflow_backend/cmd/system"
)

var (
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "careflow",
	Short: "Careflow clinical review queue and recurring export engine.",
	Long: `Careflow serves the clinical review queue for care facilities: mobility
assessments awaiting review and post-fall follow-ups, with claiming, status
transitions and SLA tracking. It also runs recurring facility exports and
hands out expiring download links for them.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global config flag, available for all commands.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")

	// Attach top-level command trees.
	rootCmd.AddCommand(systemcmd.NewSystemCommand())
	rootCmd.AddCommand(httpcmd.NewHTTPCommand())
	rootCmd.AddCommand(schedulercmd.NewSchedulerCommand())
}
