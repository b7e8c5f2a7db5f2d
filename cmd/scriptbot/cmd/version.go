package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scriptbot version %s\n", version)
		fmt.Println("Script-driven automated futures trading agent")
		fmt.Println("https://github.com/rustyeddy/scriptbot")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
