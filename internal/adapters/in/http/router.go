package http

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// authRateLimit bounds password guesses per client IP.
const authRateLimit = rate.Limit(1)

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

// NewRouter builds the echo instance with all routes registered. Everything
// except /auth and /health sits behind the bearer token middleware.
func NewRouter(h *Handler, tokens *TokenManager) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}
	e.HTTPErrorHandler = errorHandler

	e.Use(middleware.Recover())

	authLimiter := middleware.RateLimiter(
		middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:  authRateLimit,
			Burst: 5,
		}),
	)

	e.POST("/auth", h.Authenticate, authLimiter)
	e.GET("/health", h.Health)

	api := e.Group("", RequireToken(tokens))
	api.POST("/deploy", h.Deploy)
	api.POST("/build", h.Build)
	api.POST("/stop/:app", h.Stop)
	api.GET("/status/:app", h.Status)
	api.GET("/active", h.ListActive)
	api.GET("/history", h.History)

	return e
}

// errorHandler renders every unhandled error as the uniform error body.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "internal server error"
	if httpErr, ok := err.(*echo.HTTPError); ok {
		code = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(code)
		}
	} else {
		log.Error("unhandled error", "path", c.Request().URL.Path, "error", err)
	}

	if err := c.JSON(code, ErrorResponse{Error: message}); err != nil {
		log.Error("failed to write error response", "error", err)
	}
}
