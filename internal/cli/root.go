// Package cli contains the command line interface of the service.
package cli

import (
	"fmt"
	"os"

	"github.com/bissquit/incident-pulse/internal/version"
	"github.com/spf13/cobra"
)

var configPath string

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "incidentpulse",
	Short: "Incident lifecycle tracking and reporting service",
	Long: `incidentpulse tracks operational incidents through their lifecycle
(triage, work, resolution, closure), keeps an append-only timeline per
incident and serves aggregated metrics: KPIs, breakdowns, trend series
and CSV or document exports.`,
	Version: version.Version,
}

// Execute runs the CLI. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
}
