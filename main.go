package main

import (
	"os"
	_ "time/tzdata"

	"healthTrackerAPI/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
