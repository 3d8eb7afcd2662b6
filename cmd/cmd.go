// Package cmd wires the CAELES capsule execution host CLI.
package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jardelva96/caeles/internal/driver"
)

// Run dispatches CLI subcommands.
func Run(args []string) error {
	if len(args) == 0 || args[0] == "help" {
		printHelp()
		return nil
	}
	switch args[0] {
	case "run":
		return runCapsule(args[1:])
	case "version":
		fmt.Println("caeles 0.1.0")
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printHelp() {
	fmt.Println(`caeles — WebAssembly capsule execution host

Commands:
  run <manifest.json>   Load, audit, and execute a capsule
  version                Print the build version`)
}

func runCapsule(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: run <manifest.json>")
	}

	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	result, err := driver.Run(context.Background(), args[0], driver.Options{
		FileCapabilityEnabled: true,
		Log:                   log,
	})
	if err != nil {
		return fmt.Errorf("run %s (%s): %w", args[0], result.State, err)
	}
	return nil
}
