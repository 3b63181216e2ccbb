package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ferplaru/ai-playground/internal/config"
)

const shutdownTimeout = 15 * time.Second

// Run assembles the service, starts the idle reaper and the HTTP server, and
// blocks until a termination signal arrives.
func Run(cfg *config.Config) error {
	a, err := New(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if n := a.deployer.Reconcile(ctx); n > 0 {
		log.Info("cleaned up orphaned containers", "removed", n)
	}

	go a.reapLoop(ctx, cfg.Deploy.ReapInterval.Std())

	errCh := make(chan error, 1)
	go func() { errCh <- a.start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig)
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	return a.shutdown(shutdownCtx)
}

// reapLoop periodically stops idle deployments. A slow cycle never stacks;
// overlapping ticks are skipped by the service.
func (a *App) reapLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.deployer.Reap(ctx); n > 0 {
				log.Info("reap cycle complete", "stopped", n)
			}
		}
	}
}
