package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors represent business-level errors that can occur in the system.
// These errors are used across layers to communicate specific failure conditions.
var (
	// Engine errors
	ErrEngineUnavailable = errors.New("container engine unavailable")
	ErrContainerNotFound = errors.New("container not found")

	// Deployment errors
	ErrAppNotFound    = errors.New("app not found")
	ErrDeployConflict = errors.New("app already deployed with different settings")

	// Config errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// CommandError is returned when an engine invocation exits non-zero.
// Stderr carries the captured error text; it is logged server-side and
// never exposed beyond the boundary.
type CommandError struct {
	Args   []string
	Stderr string
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("engine command %v failed", e.Args)
	}
	return fmt.Sprintf("engine command %v failed: %s", e.Args, e.Stderr)
}

// TimeoutError is returned when an engine invocation exceeds its bound.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("engine %s timed out after %s", e.Op, e.Timeout)
}

// Build stages for BuildError.
const (
	BuildStageClone = "clone"
	BuildStageBuild = "build"
)

// BuildError is returned when the build pipeline fails at either stage.
type BuildError struct {
	Stage  string // "clone" or "build"
	Detail string
	Err    error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build failed at %s stage: %s", e.Stage, e.Detail)
}

func (e *BuildError) Unwrap() error { return e.Err }
