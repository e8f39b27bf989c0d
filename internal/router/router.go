package router // package router defines how HTTP routes are registered for the API

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/chat-auth/internal/handler"
	"github.com/iliyamo/chat-auth/internal/middleware"
	"github.com/iliyamo/chat-auth/internal/service"
)

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, store handler.Pinger, gatherer prometheus.Gatherer, log *slog.Logger) {
	e.GET("/healthz", handler.Health(store, log))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// RegisterAuth registers the credential endpoints under /api/auth and the
// bearer-protected endpoints under /api.  limiter guards the credential
// endpoints; cache fronts GET /api/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, tokens service.TokenVerifier, limiter, cache echo.MiddlewareFunc) {
	g := e.Group("/api/auth", limiter)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)

	api := e.Group("/api", middleware.JWTAuth(tokens))
	api.GET("/protected", a.Protected)
	api.GET("/me", a.Me, cache)
}
