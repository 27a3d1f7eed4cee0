// Package daemon provides the agent lifecycle: server management, the
// reconciliation loop and reload wiring.
package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wiktac/node-agent/internal/agent"
	"github.com/wiktac/node-agent/internal/allowlist"
)

// App owns the long-lived runtime lifecycle (watchdog loop, allowlist watcher,
// reload wiring) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	payouts      *allowlist.Holder
	watchdog     *agent.Watchdog
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator.
func NewApp(logger zerolog.Logger, manager Manager, payouts *allowlist.Holder, watchdog *agent.Watchdog) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		payouts:      payouts,
		watchdog:     watchdog,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts all owned background subsystems and blocks until ctx is cancelled
// or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	// Allowlist watcher is best-effort: startup should not fail when inotify
	// is unavailable, the agent loop re-reads the file on every tick anyway.
	if a.payouts != nil {
		if err := a.payouts.StartWatcher(ctx); err != nil {
			a.logger.Warn().
				Err(err).
				Str("event", "allowlist.watcher_start_failed").
				Msg("failed to start allowlist watcher")
		}
	}

	// SIGHUP trigger for manual reload.
	if a.payouts != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str("event", "allowlist.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading allowlist")

					a.payouts.Reload(context.Background())
				}
			}
		})
	}

	// Reconciliation loop (stops via ctx).
	if a.watchdog != nil {
		g.Go(func() error {
			a.watchdog.Start(ctx)
			return nil
		})
	}

	// Main server lifecycle.
	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}
