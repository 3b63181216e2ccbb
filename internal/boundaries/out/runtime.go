// Package out defines output ports (interfaces) for infrastructure.
// These interfaces define the contract between use cases and driven adapters
// (engine CLI, git, sqlite).
package out

import (
	"context"
	"time"

	"github.com/ferplaru/ai-playground/internal/domain"
)

// ContainerRuntime defines the contract for container engine operations.
// It abstracts the underlying engine (Docker, Podman) behind an
// engine-agnostic command vocabulary. It is the only component permitted
// to invoke the engine.
type ContainerRuntime interface {
	// Availability and identity
	Available() bool
	Probes() []domain.SocketProbe
	Version(ctx context.Context) (domain.EngineVersion, error)

	// Image operations
	Pull(ctx context.Context, image string) error
	Build(ctx context.Context, contextDir, tag string) error

	// Container lifecycle
	Run(ctx context.Context, spec domain.RunSpec) (string, error)
	Stop(ctx context.Context, containerID string, grace time.Duration) error
	Remove(ctx context.Context, containerID string, force bool) error

	// Container inspection
	Get(ctx context.Context, containerID string) (*domain.Container, error)
	List(ctx context.Context, all bool) ([]*domain.Container, error)
	Ports(ctx context.Context, containerID string) (domain.PortMap, error)
}
