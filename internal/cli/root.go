// Package cli implements the fincastd command tree: the long-running API
// daemon plus one-shot forecasting against a local dataset file.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags.
var version = "dev"

var flagConfig string

var rootCmd = &cobra.Command{
	Use:   "fincastd",
	Short: "Cash-flow forecasting service",
	Long: `FinCast generates 12-week cash-flow forecasts from categorized
transaction history, using an ensemble of statistical and machine-learning
models with per-category strategies and confidence bands.`,
	SilenceUsage: true,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to TOML config file")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the fincastd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "fincastd %s\n", version)
	},
}
