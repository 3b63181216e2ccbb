package http

import "time"

// DeployRequest is the body of POST /deploy.
type DeployRequest struct {
	AppName    string `json:"app_name" validate:"required,hostname_rfc1123,max=63"`
	Repository string `json:"repository" validate:"required"`
	Port       int    `json:"port" validate:"required,min=1,max=65535"`
}

// BuildRequest is the body of POST /build.
type BuildRequest struct {
	AppName    string `json:"app_name" validate:"required,hostname_rfc1123,max=63"`
	Repository string `json:"repository" validate:"required"`
}

// AuthRequest is the body of POST /auth.
type AuthRequest struct {
	Password string `json:"password" validate:"required"`
}

// AuthResponse carries the issued bearer token.
type AuthResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// DeployResponse is returned by POST /deploy.
type DeployResponse struct {
	Status      string `json:"status"`
	AppName     string `json:"app_name"`
	URL         string `json:"url,omitempty"`
	ContainerID string `json:"container_id"`
}

// BuildResponse is returned by POST /build.
type BuildResponse struct {
	Status     string `json:"status"`
	AppName    string `json:"app_name"`
	Repository string `json:"repository"`
	ImageName  string `json:"image_name"`
	Message    string `json:"message"`
}

// StopResponse is returned by POST /stop/:app.
type StopResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StatusResponse describes one application.
type StatusResponse struct {
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	URL          string     `json:"url,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	LastAccessed *time.Time `json:"last_accessed,omitempty"`
}

// HistoryEntry is one row of the deployment history.
type HistoryEntry struct {
	AppName     string     `json:"app_name"`
	Repository  string     `json:"repository"`
	ContainerID string     `json:"container_id"`
	HostPort    string     `json:"host_port,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	StoppedAt   *time.Time `json:"stopped_at,omitempty"`
	Status      string     `json:"status"`
}

// HistoryResponse is returned by GET /history.
type HistoryResponse struct {
	Deployments []HistoryEntry   `json:"deployments"`
	Running     []StatusResponse `json:"running"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Healthy       bool          `json:"healthy"`
	Engine        EngineDetail  `json:"engine"`
	ActiveApps    int           `json:"active_apps"`
	HistoryOnline bool          `json:"history_online"`
	Probes        []ProbeDetail `json:"probes,omitempty"`
}

// EngineDetail describes the engine connection in a health response.
type EngineDetail struct {
	Available     bool   `json:"available"`
	ServerVersion string `json:"server_version,omitempty"`
	APIVersion    string `json:"api_version,omitempty"`
	APISupported  bool   `json:"api_supported"`
	MinAPIVersion string `json:"min_api_version"`
}

// ProbeDetail describes one connection strategy attempt.
type ProbeDetail struct {
	Strategy string `json:"strategy"`
	Host     string `json:"host,omitempty"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
