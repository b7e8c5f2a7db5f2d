package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/scriptbot/keys"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encrypted API credentials",
	Long: `Store exchange API credentials in an encrypted key file.

The file is sealed with AES-256-GCM under a passphrase-derived key, so it
can live next to the config without exposing the secrets.

Example:
  scriptbot keys init --output keys.json`,
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an encrypted key file interactively",
	RunE:  runKeysInit,
}

var keysInitOutput string

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysInitCmd)
	keysInitCmd.Flags().StringVarP(&keysInitOutput, "output", "o", "keys.json", "output path")
}

func runKeysInit(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(os.Stdin)
	apiKey, err := prompt(reader, "API key: ")
	if err != nil {
		return err
	}
	apiSecret, err := prompt(reader, "API secret: ")
	if err != nil {
		return err
	}
	pass, err := prompt(reader, "Passphrase: ")
	if err != nil {
		return err
	}
	confirm, err := prompt(reader, "Passphrase (again): ")
	if err != nil {
		return err
	}
	if pass != confirm {
		return fmt.Errorf("passphrases do not match")
	}

	creds := keys.Credentials{APIKey: apiKey, APISecret: apiSecret}
	if err := keys.Save(keysInitOutput, creds, []byte(pass)); err != nil {
		return err
	}
	fmt.Printf("wrote encrypted key file to %s\n", keysInitOutput)
	return nil
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
