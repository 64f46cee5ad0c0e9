// Package main provides the API server entry point.
package main

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SetupRoutes configures the Echo instance, middleware and all API routes.
func SetupRoutes(c *Container) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogging(c.Logger))

	registerHealthRoutes(e, c)

	api := e.Group("/api/v1")
	c.SpecHandler.RegisterRoutes(api)

	if c.Config.IsDevelopment() {
		for _, route := range e.Routes() {
			c.Logger.Debug("route registered",
				slog.String("method", route.Method),
				slog.String("path", route.Path),
			)
		}
	}

	return e
}

// registerHealthRoutes registers liveness and readiness endpoints.
func registerHealthRoutes(e *echo.Echo, c *Container) {
	e.GET("/health", func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	e.GET("/ready", func(ctx echo.Context) error {
		if err := c.Ready(ctx.Request().Context()); err != nil {
			return ctx.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"reason": err.Error(),
			})
		}
		return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
	})
}

// requestLogging logs one line per request through the structured logger.
func requestLogging(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(ctx echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				logger.LogAttrs(ctx.Request().Context(), slog.LevelError, "request", attrs...)
				return nil
			}
			logger.LogAttrs(ctx.Request().Context(), slog.LevelInfo, "request", attrs...)
			return nil
		},
	})
}
