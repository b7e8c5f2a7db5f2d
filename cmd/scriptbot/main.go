package main

import (
	"os"

	"github.com/rustyeddy/scriptbot/cmd/scriptbot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
