// Package http is the inbound HTTP adapter. It translates requests into
// service calls and domain errors into status codes. Engine stderr never
// leaves this boundary; clients get generic messages, the log gets detail.
package http

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"github.com/ferplaru/ai-playground/internal/boundaries/in"
	"github.com/ferplaru/ai-playground/internal/domain"
)

// Handler serves the deployment API.
type Handler struct {
	deployer in.DeployerService
	health   in.HealthService
	tokens   *TokenManager
	password string
}

// NewHandler creates the API handler.
func NewHandler(deployer in.DeployerService, health in.HealthService, tokens *TokenManager, password string) *Handler {
	return &Handler{
		deployer: deployer,
		health:   health,
		tokens:   tokens,
		password: password,
	}
}

// Authenticate handles POST /auth.
func (h *Handler) Authenticate(c echo.Context) error {
	var req AuthRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.password)) != 1 {
		log.Warn("authentication failed", "remote", c.RealIP())
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
	}

	token, err := h.tokens.Issue()
	if err != nil {
		log.Error("failed to issue token", "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to issue token"})
	}

	return c.JSON(http.StatusOK, AuthResponse{
		Token:     token,
		ExpiresIn: int(h.tokens.TTL().Seconds()),
	})
}

// Deploy handles POST /deploy.
func (h *Handler) Deploy(c echo.Context) error {
	var req DeployRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.deployer.Deploy(c.Request().Context(), req.AppName, req.Repository, req.Port)
	if err != nil {
		return h.serviceError(c, "deploy", req.AppName, err)
	}

	return c.JSON(http.StatusOK, DeployResponse{
		Status:      res.Status,
		AppName:     res.AppName,
		URL:         res.URL,
		ContainerID: res.ContainerID,
	})
}

// Build handles POST /build.
func (h *Handler) Build(c echo.Context) error {
	var req BuildRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.deployer.Build(c.Request().Context(), req.AppName, req.Repository)
	if err != nil {
		return h.serviceError(c, "build", req.AppName, err)
	}

	return c.JSON(http.StatusOK, BuildResponse{
		Status:     "success",
		AppName:    res.AppName,
		Repository: res.Repository,
		ImageName:  res.ImageName,
		Message:    "image " + res.ImageName + " built",
	})
}

// Stop handles POST /stop/:app.
func (h *Handler) Stop(c echo.Context) error {
	appName := c.Param("app")
	if err := h.deployer.Stop(c.Request().Context(), appName); err != nil {
		return h.serviceError(c, "stop", appName, err)
	}
	return c.JSON(http.StatusOK, StopResponse{
		Status:  "success",
		Message: "app " + appName + " stopped",
	})
}

// Status handles GET /status/:app. Reading an app's status counts as access
// and refreshes its idle clock.
func (h *Handler) Status(c echo.Context) error {
	appName := c.Param("app")
	h.deployer.Touch(appName)
	st := h.deployer.Status(c.Request().Context(), appName)
	return c.JSON(http.StatusOK, statusResponse(st))
}

// ListActive handles GET /active.
func (h *Handler) ListActive(c echo.Context) error {
	active := h.deployer.ListActive(c.Request().Context())
	out := make([]StatusResponse, 0, len(active))
	for i := range active {
		out = append(out, *statusResponse(&active[i]))
	}
	return c.JSON(http.StatusOK, out)
}

// History handles GET /history.
func (h *Handler) History(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer"})
		}
		limit = n
	}

	report, err := h.deployer.History(c.Request().Context(), limit)
	if err != nil {
		log.Error("history query failed", "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load history"})
	}

	resp := HistoryResponse{
		Deployments: make([]HistoryEntry, 0, len(report.Deployments)),
		Running:     make([]StatusResponse, 0, len(report.Running)),
	}
	for _, rec := range report.Deployments {
		resp.Deployments = append(resp.Deployments, HistoryEntry{
			AppName:     rec.AppName,
			Repository:  rec.Repository,
			ContainerID: rec.ContainerID,
			HostPort:    rec.HostPort,
			StartedAt:   rec.StartedAt,
			StoppedAt:   rec.StoppedAt,
			Status:      string(rec.Status),
		})
	}
	for i := range report.Running {
		resp.Running = append(resp.Running, *statusResponse(&report.Running[i]))
	}
	return c.JSON(http.StatusOK, resp)
}

// Health handles GET /health. The endpoint is unauthenticated.
func (h *Handler) Health(c echo.Context) error {
	report := h.health.Check(c.Request().Context())

	resp := HealthResponse{
		Healthy: report.Healthy,
		Engine: EngineDetail{
			Available:     report.Engine.Available,
			ServerVersion: report.Engine.Version.ServerVersion,
			APIVersion:    report.Engine.Version.APIVersion,
			APISupported:  report.Engine.APISupported,
			MinAPIVersion: report.Engine.MinAPIVersion,
		},
		ActiveApps:    report.ActiveCount,
		HistoryOnline: report.HistoryOnline,
	}
	for _, probe := range report.Engine.Probes {
		resp.Probes = append(resp.Probes, ProbeDetail{
			Strategy: probe.Strategy,
			Host:     probe.Host,
			OK:       probe.OK,
			Error:    probe.Error,
		})
	}

	code := http.StatusOK
	if !report.Healthy {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, resp)
}

// serviceError maps domain errors to responses. Raw engine detail stays in
// the server log.
func (h *Handler) serviceError(c echo.Context, op, appName string, err error) error {
	log.Error(op+" failed", "app", appName, "error", err)

	var buildErr *domain.BuildError
	var timeoutErr *domain.TimeoutError

	switch {
	case errors.Is(err, domain.ErrAppNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "app not found"})
	case errors.Is(err, domain.ErrDeployConflict):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "app already deployed with a different repository"})
	case errors.Is(err, domain.ErrEngineUnavailable):
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "container engine unavailable"})
	case errors.As(err, &buildErr):
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: "build failed at " + buildErr.Stage + " stage"})
	case errors.As(err, &timeoutErr):
		return c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: "engine operation timed out"})
	default:
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: op + " failed"})
	}
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "validation failed: "+err.Error())
	}
	return nil
}

func statusResponse(st *domain.AppStatus) *StatusResponse {
	resp := &StatusResponse{
		Name:   st.Name,
		Status: string(st.Status),
		URL:    st.URL,
	}
	if !st.StartedAt.IsZero() {
		t := st.StartedAt
		resp.StartedAt = &t
	}
	if !st.LastAccessed.IsZero() {
		t := st.LastAccessed
		resp.LastAccessed = &t
	}
	return resp
}
