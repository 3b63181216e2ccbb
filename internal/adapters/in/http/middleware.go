package http

import (
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
)

// RequireToken guards a route group behind a valid bearer token.
func RequireToken(tokens *TokenManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing bearer token"})
			}
			if err := tokens.Validate(strings.TrimPrefix(header, "Bearer ")); err != nil {
				log.Debug("token rejected", "path", c.Request().URL.Path, "error", err)
				return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			}
			return next(c)
		}
	}
}
