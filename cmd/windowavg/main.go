package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/window-average-service/pkg/utils"
)

func main() {
	// Flag values may come from the env file, so it is loaded before parsing.
	if path, required := envFileFromArgs(os.Args[1:]); path != "" {
		if err := utils.LoadEnvFile(path, required); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	app := &cli.App{
		Name:  "windowavg",
		Usage: "Serve a sliding window average over categorized number feeds",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run the window average service",
				Flags:  runFlags(),
				Action: run,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
