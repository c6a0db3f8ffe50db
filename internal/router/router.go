// Package router wires handlers and middleware onto an echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/patient-records/internal/config"
	"github.com/iliyamo/patient-records/internal/handler"
	"github.com/iliyamo/patient-records/internal/middleware"
	"github.com/iliyamo/patient-records/internal/utils"
)

// Deps is everything New needs to build the API.
type Deps struct {
	Tokens    *utils.TokenIssuer
	Auth      *handler.AuthHandler
	Users     *handler.UserHandler
	Patients  *handler.PatientHandler
	Ready     map[string]handler.Pinger
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Log       zerolog.Logger
}

// New returns an echo instance with every route of the API registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(d.Log)
	e.Use(
		middleware.RequestID(),
		middleware.Logger(d.Log),
		middleware.Recovery(d.Log),
	)

	limit := middleware.RateLimit(d.RateLimit, d.Redis, d.Log)
	bearer := middleware.BearerAuth(d.Tokens)

	RegisterRoutes(e, d.Ready)
	RegisterAuth(e, d.Auth, bearer, limit)
	RegisterUsers(e, d.Users, d.Auth, bearer, limit)
	RegisterPatients(e, d.Patients, bearer)
	return e
}

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, ready map[string]handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(ready))
}

// RegisterAuth registers session endpoints and the caller's own account.
// Login and refresh are rate limited and do not take the bearer middleware:
// refresh accepts an expired access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, bearer, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login, limit)
	g.POST("/refresh", a.Refresh, limit)
	g.POST("/logout", a.Logout, bearer)

	me := e.Group("/v1/me", bearer)
	me.GET("", a.Me)
	me.PUT("/password", a.ChangePassword)
}
