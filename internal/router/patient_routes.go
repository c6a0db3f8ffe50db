package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/patient-records/internal/handler"
)

// RegisterPatients registers patient records and their vital signs. Only
// doctors get past the services, and only for their own patients.
func RegisterPatients(e *echo.Echo, p *handler.PatientHandler, bearer echo.MiddlewareFunc) {
	g := e.Group("/v1/patients", bearer)
	g.GET("", p.List)
	g.POST("", p.Create)
	g.GET("/:id", p.Get)
	g.PUT("/:id", p.Update)
	g.DELETE("/:id", p.Delete)

	g.GET("/:id/metrics", p.ListMetrics)
	g.POST("/:id/metrics", p.AddMetric)
	g.GET("/:id/metrics/:metric_id", p.GetMetric)
	g.PUT("/:id/metrics/:metric_id", p.UpdateMetric)
	g.DELETE("/:id/metrics/:metric_id", p.DeleteMetric)
}
