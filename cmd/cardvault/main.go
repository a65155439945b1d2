// Command cardvault runs ordered collection exports and edits the saved
// ordering from the command line.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iconidentify/cardvault/internal/bootstrap"
	"github.com/iconidentify/cardvault/internal/config"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "cancelled")
			os.Exit(130)
		}
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "cardvault",
		Short:         "Order and export a Pokémon card collection",
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "Path to config file")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(
		newShowCmd(g),
		newMoveCmd(g),
		newSortCmd(g),
		newResetCmd(g),
		newSelectCmd(g),
		newExportCmd(g),
		newUnsealCmd(),
	)
	return root
}

// openApp loads configuration and restores the saved ordering and selection.
// The caller must Close the App.
func openApp(cmd *cobra.Command, g *globalFlags) (*bootstrap.App, error) {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	app, err := bootstrap.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	app.Restore(cmd.Context())
	return app, nil
}

// withApp runs fn against an opened App and always closes it.
func withApp(cmd *cobra.Command, g *globalFlags, fn func(app *bootstrap.App, out io.Writer) error) error {
	app, err := openApp(cmd, g)
	if err != nil {
		return err
	}
	runErr := fn(app, cmd.OutOrStdout())
	if err := app.Close(); err != nil && runErr == nil {
		return fmt.Errorf("close storage: %w", err)
	}
	return runErr
}
