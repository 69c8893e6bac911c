// Command usagectl manages the master tables and draws charts from the
// terminal. It shares the data directory and saved charts database with the
// server, so stop the server before ingesting from here.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sakif/usage-dashboard/internal/app"
	"github.com/sakif/usage-dashboard/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(cfg)
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(cfg config.Config) *cobra.Command {
	var (
		dataDir string
		verbose bool
	)

	root := &cobra.Command{
		Use:          "usagectl",
		Short:        "Manage weekly AI usage reports and chart them from the terminal.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dataDir, "data-dir", cfg.DataDir, "directory holding the master tables")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at the configured LOG_LEVEL instead of warnings only")

	// open builds the app lazily so --help never touches the data directory.
	open := func(cmd *cobra.Command) (*app.App, error) {
		c := cfg
		c.DataDir = dataDir
		level := max(cfg.LogLevel, slog.LevelWarn)
		if verbose {
			level = cfg.LogLevel
		}
		logger := config.NewLogger(level)
		return app.New(cmd.Context(), c, nil, logger)
	}

	root.AddCommand(
		newIngestCommand(open),
		newReportsCommand(open),
		newDeleteCommand(open),
		newKPIsCommand(open),
		newShowCommand(open),
		newBackendsCommand(open),
		newChartCommand(open),
		newRenderCommand(open),
		newHashPasswordCommand(),
	)
	return root
}

type opener func(cmd *cobra.Command) (*app.App, error)

// withApp opens the app, runs fn and closes it.
func withApp(cmd *cobra.Command, open opener, fn func(*app.App) error) error {
	a, err := open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
