// Package deploy implements the deployment lifecycle: launching applications,
// tracking them in the registry, stopping them, and reaping idle ones. The
// engine is the source of truth for container state; the registry is a cache
// that this service reconciles on every status read.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/ferplaru/ai-playground/internal/boundaries/out"
	"github.com/ferplaru/ai-playground/internal/domain"
)

// Deploy result statuses.
const (
	statusSuccess        = "success"
	statusAlreadyRunning = "already_running"
)

const containerNamePrefix = "ai-playground"

// Config carries the deployment policy knobs.
type Config struct {
	BaseURL       string
	IdleTimeout   time.Duration
	StopGrace     time.Duration
	MemoryLimit   string
	CPUPeriod     int64
	CPUQuota      int64
	RestartPolicy string
	ContainerEnv  map[string]string

	// Port capture retry policy. The engine can take a moment to publish an
	// ephemeral binding after run returns.
	PortCaptureAttempts int
	PortCaptureDelay    time.Duration

	// MaxConcurrentReaps bounds how many containers a reap cycle stops at once.
	MaxConcurrentReaps int
}

func (c *Config) applyDefaults() {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 15 * time.Minute
	}
	if c.StopGrace <= 0 {
		c.StopGrace = 10 * time.Second
	}
	if c.PortCaptureAttempts <= 0 {
		c.PortCaptureAttempts = 5
	}
	if c.PortCaptureDelay <= 0 {
		c.PortCaptureDelay = 200 * time.Millisecond
	}
	if c.MaxConcurrentReaps <= 0 {
		c.MaxConcurrentReaps = 4
	}
}

// Service orchestrates deployments. It implements in.DeployerService.
type Service struct {
	runtime  out.ContainerRuntime
	builder  out.ImageBuilder
	history  out.HistoryStore
	registry *Registry
	config   Config

	// Per-app locks serialize deploy/stop for the same name while leaving
	// different apps free to proceed concurrently.
	appLocks sync.Map

	reaping atomic.Bool
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option configures a Service.
type Option func(*Service)

// WithClock substitutes the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSleep substitutes the retry delay (for testing).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Service) { s.sleep = fn }
}

// NewService wires the lifecycle orchestrator.
func NewService(runtime out.ContainerRuntime, builder out.ImageBuilder, history out.HistoryStore, cfg Config, opts ...Option) *Service {
	cfg.applyDefaults()
	s := &Service{
		runtime:  runtime,
		builder:  builder,
		history:  history,
		registry: NewRegistry(),
		config:   cfg,
		now:      time.Now,
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry exposes the registry for read-side collaborators (health checks).
func (s *Service) Registry() *Registry {
	return s.registry
}

// Deploy launches an application. If the app is already registered with the
// same repository and port the call short-circuits without touching the
// engine; differing settings are rejected as a conflict.
func (s *Service) Deploy(ctx context.Context, appName, repository string, port int) (*domain.DeployResult, error) {
	unlock := s.lockApp(appName)
	defer unlock()

	if rec, ok := s.registry.Get(appName); ok {
		if rec.Repository != repository || rec.ContainerPort != port {
			return nil, fmt.Errorf("app %s is deployed from %s port %d: %w",
				appName, rec.Repository, rec.ContainerPort, domain.ErrDeployConflict)
		}
		log.Info("app already running", "app", appName, "container", rec.ContainerName)
		return &domain.DeployResult{
			Status:      statusAlreadyRunning,
			AppName:     appName,
			URL:         s.appURL(rec.HostPort),
			ContainerID: rec.ContainerID,
		}, nil
	}

	if !s.runtime.Available() {
		return nil, fmt.Errorf("deploy %s: %w", appName, domain.ErrEngineUnavailable)
	}

	image, err := s.resolveImage(ctx, appName, repository)
	if err != nil {
		return nil, err
	}

	containerName := fmt.Sprintf("%s-%s-%s", containerNamePrefix, strings.ToLower(appName), uuid.NewString()[:8])
	spec := domain.RunSpec{
		Image:         image,
		Name:          containerName,
		ContainerPort: port,
		Env:           s.config.ContainerEnv,
		MemoryLimit:   s.config.MemoryLimit,
		CPUPeriod:     s.config.CPUPeriod,
		CPUQuota:      s.config.CPUQuota,
		RestartPolicy: s.config.RestartPolicy,
	}

	log.Info("starting container", "app", appName, "image", image, "name", containerName)
	containerID, err := s.runtime.Run(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", appName, err)
	}

	hostPort := s.captureHostPort(ctx, containerID, port)
	if hostPort == "" {
		log.Warn("no host port published yet", "app", appName, "container", containerID)
	}

	now := s.now()
	s.registry.Put(domain.DeploymentRecord{
		AppName:       appName,
		Repository:    repository,
		ContainerID:   containerID,
		ContainerName: containerName,
		ContainerPort: port,
		HostPort:      hostPort,
		StartedAt:     now,
		LastAccessed:  now,
	})

	if err := s.history.Append(ctx, domain.HistoryRecord{
		AppName:     appName,
		Repository:  repository,
		ContainerID: containerID,
		HostPort:    hostPort,
		StartedAt:   now,
		Status:      domain.DeploymentStatusRunning,
	}); err != nil {
		log.Error("failed to record deployment history", "app", appName, "error", err)
	}

	log.Info("app deployed", "app", appName, "container", containerID, "port", hostPort)
	return &domain.DeployResult{
		Status:      statusSuccess,
		AppName:     appName,
		URL:         s.appURL(hostPort),
		ContainerID: containerID,
	}, nil
}

// Build clones the repository and builds its image without deploying it.
func (s *Service) Build(ctx context.Context, appName, repository string) (*domain.BuildResult, error) {
	if !s.runtime.Available() {
		return nil, fmt.Errorf("build %s: %w", appName, domain.ErrEngineUnavailable)
	}

	tag, err := s.builder.BuildFromSource(ctx, appName, cloneURL(repository))
	if err != nil {
		return nil, err
	}
	return &domain.BuildResult{AppName: appName, Repository: repository, ImageName: tag}, nil
}

// Stop gracefully stops and removes the app's container, closes its history
// row and drops it from the registry.
func (s *Service) Stop(ctx context.Context, appName string) error {
	unlock := s.lockApp(appName)
	defer unlock()

	rec, ok := s.registry.Get(appName)
	if !ok {
		return fmt.Errorf("stop %s: %w", appName, domain.ErrAppNotFound)
	}

	if err := s.runtime.Stop(ctx, rec.ContainerID, s.config.StopGrace); err != nil {
		if !errors.Is(err, domain.ErrContainerNotFound) {
			return fmt.Errorf("failed to stop %s: %w", appName, err)
		}
		// Container already gone; fall through and release the record.
		log.Warn("container vanished before stop", "app", appName, "container", rec.ContainerID)
	} else if err := s.runtime.Remove(ctx, rec.ContainerID, false); err != nil &&
		!errors.Is(err, domain.ErrContainerNotFound) {
		log.Error("failed to remove stopped container", "app", appName, "container", rec.ContainerID, "error", err)
	}

	s.deregister(ctx, appName)
	log.Info("app stopped", "app", appName, "container", rec.ContainerID)
	return nil
}

// Status reports the observed state of one app, reconciling the registry
// against the engine. A registered app whose container has disappeared or
// exited is deregistered on the spot; the call is idempotent.
func (s *Service) Status(ctx context.Context, appName string) *domain.AppStatus {
	rec, ok := s.registry.Get(appName)
	if !ok {
		return &domain.AppStatus{Name: appName, Status: domain.DeploymentStatusStopped}
	}

	ctr, err := s.runtime.Get(ctx, rec.ContainerID)
	switch {
	case errors.Is(err, domain.ErrContainerNotFound):
		log.Warn("container vanished, dropping registration", "app", appName, "container", rec.ContainerID)
		s.deregister(ctx, appName)
		return &domain.AppStatus{Name: appName, Status: domain.DeploymentStatusStopped}
	case err != nil:
		// Engine state unknown; keep the cached view rather than guess.
		log.Warn("status check failed, reporting cached state", "app", appName, "error", err)
	case ctr.Status != string(domain.ContainerStatusRunning):
		log.Warn("container no longer running", "app", appName, "container", rec.ContainerID, "state", ctr.Status)
		if rmErr := s.runtime.Remove(ctx, rec.ContainerID, true); rmErr != nil &&
			!errors.Is(rmErr, domain.ErrContainerNotFound) {
			log.Error("failed to remove dead container", "app", appName, "error", rmErr)
		}
		s.deregister(ctx, appName)
		return &domain.AppStatus{Name: appName, Status: domain.DeploymentStatusStopped}
	}

	return &domain.AppStatus{
		Name:         appName,
		Status:       domain.DeploymentStatusRunning,
		URL:          s.appURL(rec.HostPort),
		StartedAt:    rec.StartedAt,
		LastAccessed: rec.LastAccessed,
	}
}

// Touch refreshes the idle clock for an app. Unknown names are ignored.
func (s *Service) Touch(appName string) {
	s.registry.Touch(appName, s.now())
}

// ListActive returns the status of every registered app that is still
// running, reconciling stale entries along the way.
func (s *Service) ListActive(ctx context.Context) []domain.AppStatus {
	var active []domain.AppStatus
	for _, rec := range s.registry.Snapshot() {
		if st := s.Status(ctx, rec.AppName); st.Status == domain.DeploymentStatusRunning {
			active = append(active, *st)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Name < active[j].Name })
	return active
}

// History returns recent deployment records alongside the live view.
func (s *Service) History(ctx context.Context, limit int) (*domain.HistoryReport, error) {
	records, err := s.history.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load deployment history: %w", err)
	}
	return &domain.HistoryReport{
		Deployments: records,
		Running:     s.ListActive(ctx),
	}, nil
}

// Reap stops every app idle for longer than the configured threshold and
// returns how many were stopped. Overlapping cycles are skipped.
func (s *Service) Reap(ctx context.Context) int {
	if !s.reaping.CompareAndSwap(false, true) {
		log.Debug("reap cycle still in progress, skipping")
		return 0
	}
	defer s.reaping.Store(false)

	cutoff := s.now().Add(-s.config.IdleTimeout)
	var idle []string
	for _, rec := range s.registry.Snapshot() {
		if rec.LastAccessed.Before(cutoff) {
			idle = append(idle, rec.AppName)
		}
	}
	if len(idle) == 0 {
		return 0
	}

	log.Info("reaping idle apps", "count", len(idle))

	var (
		stopped atomic.Int64
		wg      sync.WaitGroup
		sem     = make(chan struct{}, s.config.MaxConcurrentReaps)
	)
	for _, appName := range idle {
		wg.Add(1)
		sem <- struct{}{}
		go func(name string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := s.Stop(ctx, name); err != nil {
				if !errors.Is(err, domain.ErrAppNotFound) {
					log.Error("failed to reap app", "app", name, "error", err)
				}
				return
			}
			log.Info("reaped idle app", "app", name)
			stopped.Add(1)
		}(appName)
	}
	wg.Wait()

	return int(stopped.Load())
}

// Reconcile removes containers left behind by a previous process. Any engine
// container carrying the service's name prefix that no registry entry claims
// is force removed. Returns how many were removed.
func (s *Service) Reconcile(ctx context.Context) int {
	containers, err := s.runtime.List(ctx, true)
	if err != nil {
		log.Warn("orphan scan failed", "error", err)
		return 0
	}

	removed := 0
	for _, ctr := range containers {
		if !strings.HasPrefix(ctr.Name, containerNamePrefix+"-") || s.isRegistered(ctr.ID) {
			continue
		}
		if err := s.runtime.Remove(ctx, ctr.ID, true); err != nil && !errors.Is(err, domain.ErrContainerNotFound) {
			log.Error("failed to remove orphaned container", "container", ctr.ID, "name", ctr.Name, "error", err)
			continue
		}
		log.Info("removed orphaned container", "container", ctr.ID, "name", ctr.Name)
		removed++
	}
	return removed
}

func (s *Service) isRegistered(containerID string) bool {
	for _, rec := range s.registry.Snapshot() {
		if rec.ContainerID == containerID {
			return true
		}
	}
	return false
}

// resolveImage pulls the registry image for the repository, falling back to a
// source build when the pull fails.
func (s *Service) resolveImage(ctx context.Context, appName, repository string) (string, error) {
	image := imageRef(repository)
	err := s.runtime.Pull(ctx, image)
	if err == nil {
		return image, nil
	}
	log.Warn("image pull failed, building from source", "app", appName, "image", image, "error", err)

	tag, err := s.builder.BuildFromSource(ctx, appName, cloneURL(repository))
	if err != nil {
		return "", fmt.Errorf("failed to build %s: %w", appName, err)
	}
	return tag, nil
}

// captureHostPort polls the engine for the published host port. Ephemeral
// bindings can lag the run call, so the lookup retries with a doubling delay.
func (s *Service) captureHostPort(ctx context.Context, containerID string, containerPort int) string {
	key := fmt.Sprintf("%d/tcp", containerPort)
	delay := s.config.PortCaptureDelay
	for attempt := 0; attempt < s.config.PortCaptureAttempts; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, delay); err != nil {
				return ""
			}
			delay *= 2
		}
		ports, err := s.runtime.Ports(ctx, containerID)
		if err != nil {
			log.Debug("port lookup failed", "container", containerID, "error", err)
			continue
		}
		for _, binding := range ports[key] {
			if binding.HostPort != "" {
				return binding.HostPort
			}
		}
	}
	return ""
}

// deregister drops the registry entry and closes the open history row.
func (s *Service) deregister(ctx context.Context, appName string) {
	s.registry.Delete(appName)
	if err := s.history.MarkStopped(ctx, appName, s.now()); err != nil {
		log.Error("failed to close history record", "app", appName, "error", err)
	}
}

func (s *Service) lockApp(appName string) func() {
	v, _ := s.appLocks.LoadOrStore(appName, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Service) appURL(hostPort string) string {
	if hostPort == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", s.config.BaseURL, hostPort)
}

// imageRef maps a repository like "org/app" to its registry image reference.
func imageRef(repository string) string {
	base := repository
	if idx := strings.LastIndexByte(repository, '/'); idx >= 0 {
		base = repository[idx+1:]
	}
	if strings.Contains(base, ":") {
		return repository
	}
	return repository + ":latest"
}

// cloneURL maps "org/app" shorthand to a clone URL; full URLs pass through.
func cloneURL(repository string) string {
	if strings.Contains(repository, "://") || strings.HasPrefix(repository, "git@") {
		return repository
	}
	return fmt.Sprintf("https://github.com/%s.git", repository)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
