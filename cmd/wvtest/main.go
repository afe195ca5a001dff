package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"golang.org/x/term"

	"wvharness/internal/expect"
	"wvharness/internal/scenario"
)

// CLI is the wvtest command line.
type CLI struct {
	Config string `help:"Path to the scenario config YAML." short:"c" required:"" type:"existingfile"`
	Echo   bool   `help:"Echo session transcripts even when stdout is not a terminal."`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("wvtest"),
		kong.Description("Drives the streaming window-view watch scenario against an interactive database client."),
		kong.UsageOnError(),
	)

	cfg, err := scenario.Load(cli.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Transcripts go to stdout when requested, or by default when a human
	// is watching.
	var sink io.Writer
	if cli.Echo || term.IsTerminal(int(os.Stdout.Fd())) {
		sink = os.Stdout
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("[wvtest] interrupted, closing sessions")
		expect.CloseAll()
		os.Exit(130)
	}()

	if err := scenario.Run(cfg, sink); err != nil {
		fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", cfg.Name, err)
		expect.CloseAll()
		os.Exit(1)
	}
	fmt.Printf("PASS %s\n", cfg.Name)
}
