// Package app wires the adapters and use cases together and owns the
// process lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	httpin "github.com/ferplaru/ai-playground/internal/adapters/in/http"
	"github.com/ferplaru/ai-playground/internal/adapters/out/dockercli"
	"github.com/ferplaru/ai-playground/internal/adapters/out/gitbuild"
	"github.com/ferplaru/ai-playground/internal/adapters/out/sqlitehistory"
	"github.com/ferplaru/ai-playground/internal/config"
	"github.com/ferplaru/ai-playground/internal/usecase/deploy"
	"github.com/ferplaru/ai-playground/internal/usecase/health"
)

// App holds the assembled service.
type App struct {
	cfg      *config.Config
	echo     *echo.Echo
	deployer *deploy.Service
	history  *sqlitehistory.Store
}

// New assembles the service from configuration. The engine is probed once
// here; an unreachable engine leaves the service up but degraded.
func New(cfg *config.Config) (*App, error) {
	if err := os.MkdirAll(cfg.Server.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	runtime := dockercli.NewClient(cfg.Engine.Binary, cfg.Engine.ProbeTimeout.Std())
	if runtime.Available() {
		log.Info("container engine connected", "binary", cfg.Engine.Binary)
	} else {
		log.Warn("container engine unavailable, deployments will fail until it returns")
		for _, probe := range runtime.Probes() {
			log.Warn("connection probe failed", "strategy", probe.Strategy, "host", probe.Host, "error", probe.Error)
		}
	}

	history, err := sqlitehistory.New(cfg.HistoryDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	builder := gitbuild.NewBuilder(runtime, cfg.BuildDir())

	deployer := deploy.NewService(runtime, builder, history, deploy.Config{
		BaseURL:       cfg.Server.BaseURL,
		IdleTimeout:   cfg.Deploy.IdleTimeout.Std(),
		StopGrace:     cfg.Deploy.StopGrace.Std(),
		MemoryLimit:   cfg.Deploy.MemoryLimit,
		CPUPeriod:     cfg.Deploy.CPUPeriod,
		CPUQuota:      cfg.Deploy.CPUQuota,
		RestartPolicy: cfg.Deploy.RestartPolicy,
		ContainerEnv:  cfg.Deploy.ContainerEnv,
	})

	healthSvc := health.NewService(runtime, history, deployer.Registry(), cfg.Engine.MinAPIVersion)

	tokens := httpin.NewTokenManager(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL.Std())
	handler := httpin.NewHandler(deployer, healthSvc, tokens, cfg.Auth.Password)

	return &App{
		cfg:      cfg,
		echo:     httpin.NewRouter(handler, tokens),
		deployer: deployer,
		history:  history,
	}, nil
}

// start brings up the HTTP listener. It blocks until the server stops.
func (a *App) start() error {
	addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	log.Info("http server listening", "addr", addr)
	if err := a.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// shutdown stops the HTTP server and closes the history store.
func (a *App) shutdown(ctx context.Context) error {
	if err := a.echo.Shutdown(ctx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	return a.history.Close()
}
