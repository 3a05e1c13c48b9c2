// Package web serves the operational endpoints: health and a small status
// page with live session stats.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/fadeni/school-diary-bot/internal/config"
	"github.com/fadeni/school-diary-bot/internal/session"
)

type (
	Dependencies struct {
		Sessions *session.Manager
		Logger   *slog.Logger
	}

	statusResponse struct {
		Status         string `json:"status"`
		ActiveSessions int    `json:"active_sessions"`
		UptimeSeconds  int64  `json:"uptime_seconds"`
	}
)

func NewRouter(ctx context.Context, conf config.Web, deps Dependencies) http.Handler {
	e := echo.New()

	e.Use(middleware.RequestID())
	e.Use(loggingMiddleware(ctx, deps.Logger))
	e.Use(middleware.Recover())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(conf.RateLimit))))
	e.Use(middleware.Secure())

	e.HTTPErrorHandler = HTTPErrorHandler(deps.Logger)

	startedAt := time.Now()

	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/status", func(c echo.Context) error {
		return c.JSON(http.StatusOK, statusResponse{
			Status:         "ok",
			ActiveSessions: deps.Sessions.Len(),
			UptimeSeconds:  int64(time.Since(startedAt).Seconds()),
		})
	})

	return e
}

func loggingMiddleware(ctx context.Context, log *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		HandleError: true, // forwards error to the global error handler, so it can decide appropriate status code
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				log.LogAttrs(ctx, slog.LevelInfo, "REQUEST",
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
				)
			} else {
				log.LogAttrs(ctx, slog.LevelError, "REQUEST_ERROR",
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
					slog.String("err", v.Error.Error()),
				)
			}
			return nil
		},
	})
}
