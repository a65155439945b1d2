// cardvault TUI - Terminal User Interface for ordering and exporting a card
// collection. It shares storage with the server and the CLI.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/iconidentify/cardvault/cmd/cardvault-tui/internal/ui"
	"github.com/iconidentify/cardvault/internal/bootstrap"
	"github.com/iconidentify/cardvault/internal/config"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	logPath := flag.String("log", "", "Write logs to this file")
	flag.Parse()

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: cardvault-tui needs an interactive terminal; use the cardvault CLI instead")
		os.Exit(1)
	}

	// The screen belongs to the UI, so logs go to a file or nowhere.
	var logOut io.Writer = io.Discard
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	core, err := bootstrap.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing TUI: %v\n", err)
		os.Exit(1)
	}

	app := ui.NewApp(core, logger)
	runErr := app.Run()

	if err := core.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error closing storage: %v\n", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", runErr)
		os.Exit(1)
	}
}
