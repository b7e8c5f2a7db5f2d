package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scriptbot",
	Short: "Script-driven automated futures trading agent",
	Long: `Scriptbot executes strategy scripts against USD-M futures markets.

It provides tools for:
  - Running strategy scripts once or in a live loop
  - Validating script syntax and action strings offline
  - Inspecting open positions and working orders
  - Computing indicators over cached market data
  - Risk-based position sizing with tiered leverage brackets

Complete documentation is available at https://github.com/rustyeddy/scriptbot`,
}

var cfgPath string

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "f", "scriptbot.yaml", "path to config file (YAML or JSON)")
}
