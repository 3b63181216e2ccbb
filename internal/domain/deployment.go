// Package domain contains pure business types without external dependencies.
// These types are used throughout the application and have no tags or framework dependencies.
package domain

import "time"

// DeploymentStatus represents the lifecycle state of a deployment.
type DeploymentStatus string

const (
	DeploymentStatusRunning DeploymentStatus = "running"
	DeploymentStatusStopped DeploymentStatus = "stopped"
)

// DeploymentRecord tracks one active deployment. Records are owned by the
// deployment registry: created on deploy, touched on access, removed on stop.
type DeploymentRecord struct {
	AppName       string
	Repository    string
	ContainerID   string
	ContainerName string
	ContainerPort int
	HostPort      string // empty until the engine has published a binding
	StartedAt     time.Time
	LastAccessed  time.Time
}

// DeployResult is returned by the deploy operation.
type DeployResult struct {
	Status      string // "success" or "already_running"
	AppName     string
	URL         string
	ContainerID string
}

// BuildResult is returned by an explicit image build.
type BuildResult struct {
	AppName    string
	Repository string
	ImageName  string
}

// AppStatus describes the observed state of one application.
type AppStatus struct {
	Name         string
	Status       DeploymentStatus
	URL          string
	StartedAt    time.Time
	LastAccessed time.Time
}
