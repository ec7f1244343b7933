package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stagegate/internal/config"
	"stagegate/internal/evidence"
	"stagegate/internal/gate"
	"stagegate/internal/output"
	"stagegate/internal/stage"
)

func newWatchCommand(app *App) *cobra.Command {
	var (
		metricsAddr string
		interval    time.Duration
		debounce    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-resolve the pipeline whenever evidence changes",
		Long: `Print the pipeline state, then watch the evidence directory and print
every status change as it happens.

With --interval the backend status is also polled, so changes made elsewhere
show up without local evidence changing. With --metrics-addr the gate's
prometheus metrics are served on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, ok := app.Store.(*evidence.FileStore)
			if !ok {
				app.Printer.Error("watch requires the %q evidence driver", config.DriverFile)
				return NewExitError(1)
			}
			ctx := cmd.Context()

			sw := &stateWatcher{app: app, holder: gate.NewHolder()}
			if err := sw.start(ctx); err != nil {
				return err
			}

			if metricsAddr != "" {
				addr, shutdown, err := serveMetrics(metricsAddr, app.Registry, app.Logger)
				if err != nil {
					app.Printer.Error("Failed to serve metrics: %v", err)
					return NewExitError(1)
				}
				defer shutdown()
				app.Printer.Info("Serving metrics on http://%s/metrics", addr)
			}

			w, err := evidence.NewWatcher(store, sw.onEvidence, evidence.WithDebounce(debounce), evidence.WithWatchLogger(app.Logger.Named("watch")))
			if err != nil {
				app.Printer.Error("Failed to watch evidence: %v", err)
				return NewExitError(1)
			}
			defer w.Stop()

			if err := w.Start(ctx); err != nil {
				app.Printer.Error("Failed to watch evidence: %v", err)
				return NewExitError(1)
			}
			app.Printer.Info("Watching %s", store.Dir())

			var tick <-chan time.Time
			if interval > 0 {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				tick = ticker.C
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-tick:
					sw.refresh(ctx)
				}
			}
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Also re-resolve on this interval (0 disables polling)")
	cmd.Flags().DurationVar(&debounce, "debounce", evidence.DefaultDebounce, "Quiet period before reacting to file changes")

	return cmd
}

// stateWatcher serializes re-resolutions and prints what changed.
type stateWatcher struct {
	app    *App
	holder *gate.Holder
	mu     sync.Mutex
}

func (sw *stateWatcher) start(ctx context.Context) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	st := sw.app.Gate.Resolve(ctx)
	sw.holder.Replace(st)
	return sw.app.Printer.PrintState(st, sw.app.title())
}

// onEvidence re-resolves when a changed key holds some stage's evidence.
// Other files in the evidence directory are ignored.
func (sw *stateWatcher) onEvidence(ctx context.Context, keys []string) {
	var stages []stage.Stage
	for _, key := range keys {
		if s, ok := sw.app.Catalog.StageForKey(key); ok {
			stages = append(stages, s)
		}
	}
	if len(stages) == 0 {
		sw.app.Logger.Debug("ignoring change to non-evidence files", zap.Strings("keys", keys))
		return
	}
	sw.app.Logger.Debug("stage evidence changed", zap.Stringers("stages", stages))
	sw.refresh(ctx)
}

func (sw *stateWatcher) refresh(ctx context.Context) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	prev, _ := sw.holder.Load()
	st := sw.app.Gate.Resolve(ctx)
	version, changed := sw.holder.Replace(st)
	if !changed {
		return
	}
	if err := sw.app.Printer.PrintChanges(version, output.Diff(prev, st), sw.app.title()); err != nil {
		sw.app.Logger.Warn("failed to print state change", zap.Error(err))
	}
}

// serveMetrics starts an HTTP server exposing reg on /metrics. It returns
// the bound address and a function that shuts the server down.
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) (net.Addr, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
	return ln.Addr(), shutdown, nil
}
