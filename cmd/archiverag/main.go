package main

import (
	"os"

	"github.com/0xcro3dile/archiverag/internal/infrastructure/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
