package domain

// Container represents a container as reported by the engine.
type Container struct {
	ID     string
	Image  string
	Name   string
	Status string
	Ports  string // raw ports column from list output, informational only
}

// ContainerStatus represents the current state of a container.
type ContainerStatus string

const (
	ContainerStatusRunning ContainerStatus = "running"
	ContainerStatusExited  ContainerStatus = "exited"
)

// RunSpec holds configuration for launching a container.
type RunSpec struct {
	Image         string
	Name          string
	ContainerPort int
	HostPort      string // empty means "let the engine assign an ephemeral port"
	Env           map[string]string
	MemoryLimit   string // engine syntax, e.g. "512m"
	CPUPeriod     int64
	CPUQuota      int64
	RestartPolicy string
}

// PortBinding is one host-side binding for a published container port.
type PortBinding struct {
	HostIP   string
	HostPort string // empty when the engine has not published a binding yet
}

// PortMap maps "<containerPort>/<proto>" to its host bindings.
type PortMap map[string][]PortBinding

// EngineVersion describes the engine reached through the control socket.
type EngineVersion struct {
	ClientVersion string
	ServerVersion string
	APIVersion    string
}

// SocketProbe records the outcome of one connection strategy attempt.
type SocketProbe struct {
	Strategy string
	Host     string
	OK       bool
	Error    string
}
