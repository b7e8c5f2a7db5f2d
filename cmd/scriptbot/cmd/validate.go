package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/scriptbot/action"
	"github.com/rustyeddy/scriptbot/script"
)

var validateCmd = &cobra.Command{
	Use:   "validate [script...]",
	Short: "Check strategy scripts without executing them",
	Long: `Parse strategy scripts and report syntax errors, without touching
the exchange or placing any order.

With --action, validate a single action string instead:

  scriptbot validate --action "long(2%risk@10x,sl=1.5%,rr=2)"`,
	RunE: runValidate,
}

var validateAction string

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validateAction, "action", "", "validate an action string instead of script files")
}

func runValidate(cmd *cobra.Command, args []string) error {
	if validateAction != "" {
		if err := action.Validate(validateAction); err != nil {
			return err
		}
		fmt.Println("action OK")
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("no scripts given")
	}

	failed := 0
	for _, path := range args {
		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read script: %w", err)
		}
		if err := script.ValidateScript(string(src)); err != nil {
			fmt.Printf("%s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("%s: OK\n", path)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scripts failed validation", failed, len(args))
	}
	return nil
}
