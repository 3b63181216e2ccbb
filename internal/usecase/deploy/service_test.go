package deploy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferplaru/ai-playground/internal/domain"
)

// fakeRuntime is a stateful engine double: run registers a container, stop
// and remove record their calls, get consults the container map.
type fakeRuntime struct {
	mu sync.Mutex

	available bool
	pullErr   error
	runErr    error
	nextID    string
	ports     domain.PortMap
	portsErr  error
	stopErr   error
	getErr    error
	listErr   error

	containers map[string]*domain.Container
	runSpecs   []domain.RunSpec
	stopped    []string
	removed    []string
	portCalls  int
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		available:  true,
		nextID:     "c-1",
		containers: make(map[string]*domain.Container),
		ports: domain.PortMap{
			"8000/tcp": {{HostIP: "0.0.0.0", HostPort: "49200"}},
		},
	}
}

func (f *fakeRuntime) Available() bool              { return f.available }
func (f *fakeRuntime) Probes() []domain.SocketProbe { return nil }

func (f *fakeRuntime) Version(context.Context) (domain.EngineVersion, error) {
	return domain.EngineVersion{}, nil
}

func (f *fakeRuntime) Pull(context.Context, string) error { return f.pullErr }

func (f *fakeRuntime) Build(context.Context, string, string) error { return nil }

func (f *fakeRuntime) Run(_ context.Context, spec domain.RunSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runErr != nil {
		return "", f.runErr
	}
	f.runSpecs = append(f.runSpecs, spec)
	f.containers[f.nextID] = &domain.Container{
		ID:     f.nextID,
		Image:  spec.Image,
		Name:   spec.Name,
		Status: string(domain.ContainerStatusRunning),
	}
	return f.nextID, nil
}

func (f *fakeRuntime) Stop(_ context.Context, containerID string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stopped = append(f.stopped, containerID)
	return nil
}

func (f *fakeRuntime) Remove(_ context.Context, containerID string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, containerID)
	delete(f.containers, containerID)
	return nil
}

func (f *fakeRuntime) Get(_ context.Context, containerID string) (*domain.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	ctr, ok := f.containers[containerID]
	if !ok {
		return nil, domain.ErrContainerNotFound
	}
	return ctr, nil
}

func (f *fakeRuntime) List(context.Context, bool) ([]*domain.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Container, 0, len(f.containers))
	for _, ctr := range f.containers {
		out = append(out, ctr)
	}
	return out, f.listErr
}

func (f *fakeRuntime) Ports(context.Context, string) (domain.PortMap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.portCalls++
	if f.portsErr != nil {
		return nil, f.portsErr
	}
	return f.ports, nil
}

type fakeBuilder struct {
	tag   string
	err   error
	calls []string
}

func (f *fakeBuilder) BuildFromSource(_ context.Context, appName, cloneURL string) (string, error) {
	f.calls = append(f.calls, cloneURL)
	if f.err != nil {
		return "", f.err
	}
	if f.tag != "" {
		return f.tag, nil
	}
	return "playground/" + appName + ":latest", nil
}

type fakeHistory struct {
	mu       sync.Mutex
	appended []domain.HistoryRecord
	closed   []string
	records  []domain.HistoryRecord
	listErr  error
}

func (f *fakeHistory) Append(_ context.Context, rec domain.HistoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, rec)
	return nil
}

func (f *fakeHistory) ListRecent(context.Context, int) ([]domain.HistoryRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.records, nil
}

func (f *fakeHistory) MarkStopped(_ context.Context, appName string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, appName)
	return nil
}

func (f *fakeHistory) Close() error { return nil }

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	svc     *Service
	runtime *fakeRuntime
	builder *fakeBuilder
	history *fakeHistory
	clock   *fakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		runtime: newFakeRuntime(),
		builder: &fakeBuilder{},
		history: &fakeHistory{},
		clock:   &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	h.svc = NewService(h.runtime, h.builder, h.history, Config{
		BaseURL:     "http://localhost",
		IdleTimeout: 15 * time.Minute,
	},
		WithClock(h.clock.Now),
		WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
	return h
}

func TestDeploy_Success(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.Deploy(context.Background(), "demo", "org/demo", 8000)
	require.NoError(t, err)

	assert.Equal(t, "success", res.Status)
	assert.Equal(t, "http://localhost:49200", res.URL)
	assert.Equal(t, "c-1", res.ContainerID)

	rec, ok := h.svc.Registry().Get("demo")
	require.True(t, ok)
	assert.Equal(t, "49200", rec.HostPort)
	assert.True(t, rec.LastAccessed.Equal(h.clock.Now()))

	require.Len(t, h.runtime.runSpecs, 1)
	spec := h.runtime.runSpecs[0]
	assert.Equal(t, "org/demo:latest", spec.Image)
	assert.Equal(t, 8000, spec.ContainerPort)
	assert.Empty(t, spec.HostPort)

	require.Len(t, h.history.appended, 1)
	assert.Equal(t, domain.DeploymentStatusRunning, h.history.appended[0].Status)
}

func TestDeploy_ContainerEnvReachesRunSpec(t *testing.T) {
	rt := newFakeRuntime()
	svc := NewService(rt, &fakeBuilder{}, &fakeHistory{}, Config{
		BaseURL:      "http://localhost",
		ContainerEnv: map[string]string{"NODE_ENV": "production", "OPENAI_API_KEY": "sk-test"},
	},
		WithSleep(func(context.Context, time.Duration) error { return nil }),
	)

	_, err := svc.Deploy(context.Background(), "demo", "org/demo", 8000)
	require.NoError(t, err)

	require.Len(t, rt.runSpecs, 1)
	assert.Equal(t, "production", rt.runSpecs[0].Env["NODE_ENV"])
	assert.Equal(t, "sk-test", rt.runSpecs[0].Env["OPENAI_API_KEY"])
}

func TestDeploy_AlreadyRunningShortCircuits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Deploy(ctx, "demo", "org/demo", 8000)
	require.NoError(t, err)

	res, err := h.svc.Deploy(ctx, "demo", "org/demo", 8000)
	require.NoError(t, err)

	assert.Equal(t, "already_running", res.Status)
	assert.Equal(t, "http://localhost:49200", res.URL)
	// The engine was not consulted a second time
	assert.Len(t, h.runtime.runSpecs, 1)
	assert.Equal(t, 1, h.svc.Registry().Len())
}

func TestDeploy_ConflictingSettingsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Deploy(ctx, "demo", "org/demo", 8000)
	require.NoError(t, err)

	_, err = h.svc.Deploy(ctx, "demo", "org/other", 8000)
	assert.ErrorIs(t, err, domain.ErrDeployConflict)

	_, err = h.svc.Deploy(ctx, "demo", "org/demo", 9000)
	assert.ErrorIs(t, err, domain.ErrDeployConflict)

	assert.Len(t, h.runtime.runSpecs, 1)
}

func TestDeploy_EngineUnavailable(t *testing.T) {
	h := newHarness(t)
	h.runtime.available = false

	_, err := h.svc.Deploy(context.Background(), "demo", "org/demo", 8000)
	assert.ErrorIs(t, err, domain.ErrEngineUnavailable)
	assert.Empty(t, h.runtime.runSpecs)
}

func TestDeploy_PullFallsBackToSourceBuild(t *testing.T) {
	h := newHarness(t)
	h.runtime.pullErr = &domain.CommandError{Stderr: "pull access denied"}

	res, err := h.svc.Deploy(context.Background(), "demo", "org/demo", 8000)
	require.NoError(t, err)

	assert.Equal(t, "success", res.Status)
	require.Len(t, h.builder.calls, 1)
	assert.Equal(t, "https://github.com/org/demo.git", h.builder.calls[0])
	require.Len(t, h.runtime.runSpecs, 1)
	assert.Equal(t, "playground/demo:latest", h.runtime.runSpecs[0].Image)
}

func TestDeploy_BuildFailurePropagates(t *testing.T) {
	h := newHarness(t)
	h.runtime.pullErr = &domain.CommandError{Stderr: "no such image"}
	h.builder.err = &domain.BuildError{Stage: domain.BuildStageClone, Detail: "repository not found"}

	_, err := h.svc.Deploy(context.Background(), "demo", "org/demo", 8000)

	var buildErr *domain.BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, 0, h.svc.Registry().Len())
	assert.Empty(t, h.runtime.runSpecs)
}

func TestDeploy_PortCaptureRetries(t *testing.T) {
	h := newHarness(t)
	// No binding published on the first looks
	h.runtime.ports = domain.PortMap{"8000/tcp": {{HostIP: "0.0.0.0"}}}

	res, err := h.svc.Deploy(context.Background(), "demo", "org/demo", 8000)
	require.NoError(t, err)

	assert.Empty(t, res.URL)
	assert.Equal(t, 5, h.runtime.portCalls)

	rec, _ := h.svc.Registry().Get("demo")
	assert.Empty(t, rec.HostPort)
}

func TestBuild(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.Build(context.Background(), "demo", "org/demo")
	require.NoError(t, err)

	assert.Equal(t, "playground/demo:latest", res.ImageName)
	assert.Equal(t, "org/demo", res.Repository)
	require.Len(t, h.builder.calls, 1)
	assert.Equal(t, "https://github.com/org/demo.git", h.builder.calls[0])
}

func TestStop_Success(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Deploy(ctx, "demo", "org/demo", 8000)
	require.NoError(t, err)

	require.NoError(t, h.svc.Stop(ctx, "demo"))

	assert.Equal(t, []string{"c-1"}, h.runtime.stopped)
	assert.Equal(t, []string{"c-1"}, h.runtime.removed)
	assert.Equal(t, 0, h.svc.Registry().Len())
	assert.Equal(t, []string{"demo"}, h.history.closed)
}

func TestStop_UnregisteredApp(t *testing.T) {
	h := newHarness(t)

	err := h.svc.Stop(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrAppNotFound)
}

func TestStop_ContainerAlreadyGone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Deploy(ctx, "demo", "org/demo", 8000)
	require.NoError(t, err)
	h.runtime.stopErr = domain.ErrContainerNotFound

	require.NoError(t, h.svc.Stop(ctx, "demo"))
	assert.Equal(t, 0, h.svc.Registry().Len())
	assert.Equal(t, []string{"demo"}, h.history.closed)
}

func TestStop_EngineFailureKeepsRegistration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Deploy(ctx, "demo", "org/demo", 8000)
	require.NoError(t, err)
	h.runtime.stopErr = &domain.TimeoutError{Op: "stop", Timeout: 10 * time.Second}

	err = h.svc.Stop(ctx, "demo")
	require.Error(t, err)
	assert.Equal(t, 1, h.svc.Registry().Len())
}

func TestStatus_Running(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Deploy(ctx, "demo", "org/demo", 8000)
	require.NoError(t, err)

	st := h.svc.Status(ctx, "demo")
	assert.Equal(t, domain.DeploymentStatusRunning, st.Status)
	assert.Equal(t, "http://localhost:49200", st.URL)
}

func TestStatus_UnregisteredApp(t *testing.T) {
	h := newHarness(t)

	st := h.svc.Status(context.Background(), "ghost")
	assert.Equal(t, domain.DeploymentStatusStopped, st.Status)
	assert.Empty(t, st.URL)
}

func TestStatus_SelfHealsVanishedContainer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Deploy(ctx, "demo", "org/demo", 8000)
	require.NoError(t, err)

	// The container dies out of band
	delete(h.runtime.containers, "c-1")

	st := h.svc.Status(ctx, "demo")
	assert.Equal(t, domain.DeploymentStatusStopped, st.Status)
	assert.Equal(t, 0, h.svc.Registry().Len())
	assert.Equal(t, []string{"demo"}, h.history.closed)

	// Repeated checks are idempotent
	st = h.svc.Status(ctx, "demo")
	assert.Equal(t, domain.DeploymentStatusStopped, st.Status)
	assert.Equal(t, []string{"demo"}, h.history.closed)
}

func TestStatus_ExitedContainerIsCleanedUp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Deploy(ctx, "demo", "org/demo", 8000)
	require.NoError(t, err)
	h.runtime.containers["c-1"].Status = string(domain.ContainerStatusExited)

	st := h.svc.Status(ctx, "demo")
	assert.Equal(t, domain.DeploymentStatusStopped, st.Status)
	assert.Contains(t, h.runtime.removed, "c-1")
	assert.Equal(t, 0, h.svc.Registry().Len())
}

func TestStatus_EngineErrorKeepsCachedState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Deploy(ctx, "demo", "org/demo", 8000)
	require.NoError(t, err)
	h.runtime.getErr = &domain.TimeoutError{Op: "inspect", Timeout: 10 * time.Second}

	st := h.svc.Status(ctx, "demo")
	assert.Equal(t, domain.DeploymentStatusRunning, st.Status)
	assert.Equal(t, 1, h.svc.Registry().Len())
}

func TestReap_StopsOnlyIdleApps(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.runtime.nextID = "c-old"
	_, err := h.svc.Deploy(ctx, "old", "org/old", 8000)
	require.NoError(t, err)

	h.clock.Advance(16 * time.Minute)

	h.runtime.nextID = "c-fresh"
	_, err = h.svc.Deploy(ctx, "fresh", "org/fresh", 8000)
	require.NoError(t, err)

	reaped := h.svc.Reap(ctx)
	assert.Equal(t, 1, reaped)
	assert.Equal(t, []string{"c-old"}, h.runtime.stopped)

	_, ok := h.svc.Registry().Get("fresh")
	assert.True(t, ok)
	_, ok = h.svc.Registry().Get("old")
	assert.False(t, ok)
}

func TestReap_TouchResetsIdleClock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Deploy(ctx, "demo", "org/demo", 8000)
	require.NoError(t, err)

	h.clock.Advance(14 * time.Minute)
	h.svc.Touch("demo")
	h.clock.Advance(10 * time.Minute)

	assert.Equal(t, 0, h.svc.Reap(ctx))
	assert.Equal(t, 1, h.svc.Registry().Len())
}

func TestReap_ExactlyAtThresholdSurvives(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Deploy(ctx, "demo", "org/demo", 8000)
	require.NoError(t, err)

	h.clock.Advance(15 * time.Minute)

	assert.Equal(t, 0, h.svc.Reap(ctx))
	assert.Equal(t, 1, h.svc.Registry().Len())
}

func TestReap_SkipsOverlappingCycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Deploy(ctx, "demo", "org/demo", 8000)
	require.NoError(t, err)
	h.clock.Advance(16 * time.Minute)

	h.svc.reaping.Store(true)
	assert.Equal(t, 0, h.svc.Reap(ctx))
	h.svc.reaping.Store(false)

	assert.Equal(t, 1, h.svc.Reap(ctx))
}

func TestReconcile_RemovesOrphans(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Leftovers from a previous process plus an unrelated container
	h.runtime.containers["c-orphan"] = &domain.Container{
		ID:     "c-orphan",
		Name:   "ai-playground-old-deadbeef",
		Status: string(domain.ContainerStatusExited),
	}
	h.runtime.containers["c-other"] = &domain.Container{
		ID:     "c-other",
		Name:   "postgres",
		Status: string(domain.ContainerStatusRunning),
	}

	assert.Equal(t, 1, h.svc.Reconcile(ctx))
	assert.Equal(t, []string{"c-orphan"}, h.runtime.removed)
}

func TestReconcile_KeepsRegisteredContainers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Deploy(ctx, "demo", "org/demo", 8000)
	require.NoError(t, err)

	assert.Equal(t, 0, h.svc.Reconcile(ctx))
	assert.Empty(t, h.runtime.removed)
}

func TestReconcile_ScanFailureIsHarmless(t *testing.T) {
	h := newHarness(t)
	h.runtime.listErr = &domain.TimeoutError{Op: "list", Timeout: 10 * time.Second}

	assert.Equal(t, 0, h.svc.Reconcile(context.Background()))
}

func TestListActive_SortedAndReconciled(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.runtime.nextID = "c-b"
	_, err := h.svc.Deploy(ctx, "beta", "org/beta", 8000)
	require.NoError(t, err)

	h.runtime.nextID = "c-a"
	_, err = h.svc.Deploy(ctx, "alpha", "org/alpha", 8000)
	require.NoError(t, err)

	// beta's container dies behind our back
	delete(h.runtime.containers, "c-b")

	active := h.svc.ListActive(ctx)
	require.Len(t, active, 1)
	assert.Equal(t, "alpha", active[0].Name)
	assert.Equal(t, 1, h.svc.Registry().Len())
}

func TestHistoryReport(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.history.records = []domain.HistoryRecord{{AppName: "past", Status: domain.DeploymentStatusStopped}}

	_, err := h.svc.Deploy(ctx, "demo", "org/demo", 8000)
	require.NoError(t, err)

	report, err := h.svc.History(ctx, 10)
	require.NoError(t, err)

	require.Len(t, report.Deployments, 1)
	assert.Equal(t, "past", report.Deployments[0].AppName)
	require.Len(t, report.Running, 1)
	assert.Equal(t, "demo", report.Running[0].Name)
}

func TestHistoryStoreFailure(t *testing.T) {
	h := newHarness(t)
	h.history.listErr = errors.New("database locked")

	_, err := h.svc.History(context.Background(), 10)
	assert.Error(t, err)
}

func TestImageRef(t *testing.T) {
	assert.Equal(t, "org/demo:latest", imageRef("org/demo"))
	assert.Equal(t, "org/demo:v2", imageRef("org/demo:v2"))
	assert.Equal(t, "ghcr.io/org/demo:latest", imageRef("ghcr.io/org/demo"))
}

func TestCloneURL(t *testing.T) {
	assert.Equal(t, "https://github.com/org/demo.git", cloneURL("org/demo"))
	assert.Equal(t, "https://example.com/demo.git", cloneURL("https://example.com/demo.git"))
	assert.Equal(t, "git@github.com:org/demo.git", cloneURL("git@github.com:org/demo.git"))
}
