package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"wvharness/internal/watchdb"
)

// CLI is the watchdb command line.
type CLI struct {
	Prompt          string `help:"Prompt printed before each statement." default:"watchdb>"`
	DB              string `help:"Path to a sqlite file shared with other clients; empty keeps rows in memory."`
	ExitOnInterrupt bool   `help:"Die on SIGINT instead of canceling the running watch."`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("watchdb"),
		kong.Description("Deterministic interactive database client fixture with tumble-window WATCH support."),
		kong.UsageOnError(),
	)

	repl, err := watchdb.New(cli.Prompt, cli.DB, os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	repl.ExitOnInterrupt = cli.ExitOnInterrupt
	if err := repl.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
