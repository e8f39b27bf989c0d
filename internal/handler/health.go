package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is implemented by both identity stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports whether the identity store answers.  Load balancers take
// the instance out of rotation on 503.
func Health(store Pinger, log *slog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			log.WarnContext(ctx, "health check failed", "err", err)
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "datastore unavailable"})
		}
		return c.String(http.StatusOK, "ok")
	}
}
