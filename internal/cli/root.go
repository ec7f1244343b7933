// Package cli implements the stagegate command-line interface using Cobra.
//
// The CLI resolves the unlock state of the business-planning pipeline from
// local stage evidence and the backend's advisory status, and manages the
// evidence store the dashboard writes to.
//
// Commands:
//   - status: Print the resolved state of every stage
//   - next: Print the first stage ready to be worked on
//   - evidence: List, set or clear stage evidence
//   - watch: Re-resolve whenever the evidence directory changes
//
// Key types:
//   - [App] holds the application dependencies for dependency injection
//   - [ExecuteResult] carries the exit code for testable execution
//   - [ExitError] signals a non-zero exit code without calling os.Exit
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stagegate/internal/baseline"
	"stagegate/internal/catalog"
	"stagegate/internal/config"
	"stagegate/internal/evidence"
	"stagegate/internal/gate"
	"stagegate/internal/logging"
	"stagegate/internal/output"
)

// App holds the dependencies shared by all commands.
//
// Tests build an App by hand with in-memory stores and static baselines;
// [NewApp] wires the production implementations from configuration.
type App struct {
	Config   *config.Config
	Gate     *gate.Gate
	Store    evidence.Store
	Catalog  *catalog.Catalog
	Printer  *output.Printer
	Logger   *zap.Logger
	Registry *prometheus.Registry
}

// NewApp wires an [App] from cfg. The returned cleanup releases the
// evidence store and flushes the logger; call it once the command is done.
func NewApp(cfg *config.Config) (*App, func(), error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, nil, err
	}

	var cat *catalog.Catalog
	if cfg.Evidence.CatalogPath != "" {
		cat, err = catalog.ReadFromFile(cfg.Evidence.CatalogPath)
		if err != nil {
			return nil, nil, err
		}
	}
	keys := cat.Keys()

	var (
		store      evidence.Store
		closeStore func() error
	)
	switch cfg.Evidence.Driver {
	case config.DriverSQLite:
		s, err := evidence.NewSQLiteStore(cfg.Evidence.DBPath, keys)
		if err != nil {
			return nil, nil, err
		}
		store, closeStore = s, s.Close
	case config.DriverMemory:
		store = evidence.NewMemoryStore(keys)
	default:
		store = evidence.NewFileStore(evidence.ResolveDir("", cfg.Evidence.Dir), keys)
	}

	var base gate.BaselineSource
	if cfg.Backend.URL != "" {
		client, err := baseline.NewClient(cfg.Backend.URL, cfg.Backend.StatusPath,
			baseline.WithTimeout(cfg.Backend.Timeout),
			baseline.WithLogger(logger.Named("baseline")))
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("using backend baseline", zap.String("endpoint", client.Endpoint()))
		base = client
	} else if path := baseline.ResolveSnapshotPath(cfg.Backend.SnapshotPath); path != "" {
		snap := baseline.NewSnapshot(path)
		logger.Debug("using snapshot baseline", zap.String("path", snap.Path()))
		base = snap
	}

	registry := prometheus.NewRegistry()
	g := gate.New(store, base,
		gate.WithLogger(logger.Named("gate")),
		gate.WithMetrics(gate.NewMetrics(registry)))

	printer := output.NewPrinter()
	if err := printer.SetFormat(cfg.Output.Format); err != nil {
		return nil, nil, err
	}
	printer.SetColor(cfg.Output.Color)

	app := &App{
		Config:   cfg,
		Gate:     g,
		Store:    store,
		Catalog:  cat,
		Printer:  printer,
		Logger:   logger,
		Registry: registry,
	}
	cleanup := func() {
		if closeStore != nil {
			if err := closeStore(); err != nil {
				logger.Warn("error closing evidence store", zap.Error(err))
			}
		}
		_ = logger.Sync()
	}
	return app, cleanup, nil
}

// title resolves display titles through the catalog.
func (app *App) title() output.TitleFunc {
	return app.Catalog.Title
}

// NewRootCommand creates the root command with all subcommands attached.
func NewRootCommand(app *App) *cobra.Command {
	var format string

	rootCmd := &cobra.Command{
		Use:   "stagegate",
		Short: "Gate the business-planning pipeline on local evidence",
		Long: `stagegate decides which stages of the business-planning pipeline are
locked, available or completed.

A stage is completed when the dashboard has cached output for it locally, and
completing a stage unlocks the next one. The backend's status endpoint is
used as a starting point; when it is unreachable every stage after ideation
starts locked.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("output") {
				return app.Printer.SetFormat(format)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&format, "output", "o", output.FormatTable,
		"Output format: table, json or yaml")

	rootCmd.AddCommand(
		newStatusCommand(app),
		newNextCommand(app),
		newEvidenceCommand(app),
		newWatchCommand(app),
	)

	return rootCmd
}

// ExecuteResult holds the result of running the CLI.
type ExecuteResult struct {
	ExitCode int
	Err      error
}

// RunWithConfig builds the application from cfg and runs the command line
// in args. It never calls os.Exit.
func RunWithConfig(ctx context.Context, cfg *config.Config, args []string) ExecuteResult {
	app, cleanup, err := NewApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExecuteResult{ExitCode: 1, Err: err}
	}
	defer cleanup()

	rootCmd := NewRootCommand(app)
	rootCmd.SetArgs(args)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if code, ok := IsExitError(err); ok {
			return ExecuteResult{ExitCode: code, Err: err}
		}
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return ExecuteResult{ExitCode: 1, Err: err}
	}
	return ExecuteResult{ExitCode: 0}
}

// Execute loads configuration, runs the CLI and exits the process.
func Execute() {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	result := RunWithConfig(ctx, cfg, os.Args[1:])
	stop()
	os.Exit(result.ExitCode)
}
