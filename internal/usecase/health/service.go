// Package health reports on the container engine connection and the
// service's own state.
package health

import (
	"context"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"

	"github.com/ferplaru/ai-playground/internal/boundaries/in"
	"github.com/ferplaru/ai-playground/internal/boundaries/out"
	"github.com/ferplaru/ai-playground/internal/usecase/deploy"
)

// Service implements in.HealthService.
type Service struct {
	runtime       out.ContainerRuntime
	history       out.HistoryStore
	registry      *deploy.Registry
	minAPIVersion string
}

// NewService wires a health checker. minAPIVersion is the lowest engine API
// version the service is willing to talk to.
func NewService(runtime out.ContainerRuntime, history out.HistoryStore, registry *deploy.Registry, minAPIVersion string) *Service {
	return &Service{
		runtime:       runtime,
		history:       history,
		registry:      registry,
		minAPIVersion: minAPIVersion,
	}
}

// Check probes the engine and the history store. A missing history store only
// degrades the report; engine availability and API support decide health.
func (s *Service) Check(ctx context.Context) *in.HealthReport {
	report := &in.HealthReport{
		Engine: in.EngineHealth{
			Available:     s.runtime.Available(),
			Probes:        s.runtime.Probes(),
			MinAPIVersion: s.minAPIVersion,
		},
	}

	if report.Engine.Available {
		version, err := s.runtime.Version(ctx)
		if err != nil {
			log.Warn("engine version query failed", "error", err)
		} else {
			report.Engine.Version = version
			report.Engine.APISupported = s.apiSupported(version.APIVersion)
		}
	}

	report.ActiveCount = s.registry.Len()

	if _, err := s.history.ListRecent(ctx, 1); err != nil {
		log.Warn("history store unreachable", "error", err)
	} else {
		report.HistoryOnline = true
	}

	report.Healthy = report.Engine.Available && report.Engine.APISupported
	return report
}

func (s *Service) apiSupported(apiVersion string) bool {
	if apiVersion == "" {
		return false
	}
	have, err := semver.NewVersion(apiVersion)
	if err != nil {
		log.Warn("unparseable engine api version", "version", apiVersion)
		return false
	}
	want, err := semver.NewVersion(s.minAPIVersion)
	if err != nil {
		log.Warn("unparseable minimum api version", "version", s.minAPIVersion)
		return false
	}
	return !have.LessThan(want)
}
