package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/patient-records/internal/handler"
)

// RegisterUsers registers account management under /v1/users. Role checks
// happen in the services, so the group only requires a bearer token.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, a *handler.AuthHandler, bearer, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/users", bearer)
	g.POST("/register/:role", a.Register, limit)
	g.GET("", u.List)
	g.GET("/:id", u.Get)
	g.PUT("/:id", u.Update)
	g.POST("/:id/activate", u.Activate)
	g.POST("/:id/deactivate", u.Deactivate)
}
