package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chat-auth/internal/service"
)

// statusFor is the only place a service.Kind becomes an HTTP status.
func statusFor(k service.Kind) int {
	switch k {
	case service.KindMissingFields, service.KindUserExists, service.KindInvalidInput:
		return http.StatusBadRequest
	case service.KindInvalidCredentials, service.KindInvalidRefreshToken, service.KindInvalidToken:
		return http.StatusUnauthorized
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindStorageFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes {"error": msg} for a service error.  fallback is used for
// internal failures so causes never reach the client.
func fail(c echo.Context, err error, fallback string) error {
	kind := service.KindOf(err)
	msg := service.MessageOf(err, fallback)
	if kind == service.KindStorageFailure {
		msg = "Service temporarily unavailable"
	}
	return c.JSON(statusFor(kind), echo.Map{"error": msg})
}

// ErrorHandler renders every error echo did not get a response for (unknown
// routes, bad methods, panics recovered by middleware) as {"error": msg}.
func ErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		msg := "Internal server error"

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok && status < 500 {
				msg = m
			}
		}
		if status >= 500 {
			log.ErrorContext(c.Request().Context(), "unhandled error",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"err", err)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, echo.Map{"error": msg})
		}
		if err != nil {
			log.ErrorContext(c.Request().Context(), "write error response", "err", err)
		}
	}
}
