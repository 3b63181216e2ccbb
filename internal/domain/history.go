package domain

import "time"

// HistoryRecord is one row of the durable deployment log.
type HistoryRecord struct {
	AppName     string
	Repository  string
	ContainerID string
	HostPort    string
	StartedAt   time.Time
	StoppedAt   *time.Time // nil while the deployment is running
	Status      DeploymentStatus
}

// HistoryReport combines recent history with the currently running set.
type HistoryReport struct {
	Deployments []HistoryRecord
	Running     []AppStatus
}
