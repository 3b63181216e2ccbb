// Package in defines input ports (interfaces) implemented by use cases and
// consumed by inbound adapters such as the HTTP layer.
package in

import (
	"context"

	"github.com/ferplaru/ai-playground/internal/domain"
)

// DeployerService drives the deployment lifecycle.
type DeployerService interface {
	Deploy(ctx context.Context, appName, repository string, port int) (*domain.DeployResult, error)
	Build(ctx context.Context, appName, repository string) (*domain.BuildResult, error)
	Stop(ctx context.Context, appName string) error
	Status(ctx context.Context, appName string) *domain.AppStatus
	Touch(appName string)
	ListActive(ctx context.Context) []domain.AppStatus
	History(ctx context.Context, limit int) (*domain.HistoryReport, error)
}

// HealthService reports engine availability and version information.
type HealthService interface {
	Check(ctx context.Context) *HealthReport
}

// HealthReport is the result of a health check.
type HealthReport struct {
	Healthy       bool
	Engine        EngineHealth
	ActiveCount   int
	HistoryOnline bool
}

// EngineHealth describes the engine side of a health check.
type EngineHealth struct {
	Available     bool
	Probes        []domain.SocketProbe
	Version       domain.EngineVersion
	APISupported  bool
	MinAPIVersion string
}
