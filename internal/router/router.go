package router // package router registers the HTTP routes of the admission API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/college-admission/internal/handler"
	"github.com/iliyamo/college-admission/internal/metrics"
	"github.com/iliyamo/college-admission/internal/middleware"
	"github.com/iliyamo/college-admission/internal/model"
)

// RegisterRoutes registers probes and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// RegisterAuth registers staff login and token routes. Login and token
// exchange are public; /v1/me needs a staff token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleOfficer),
	)
	auth.GET("/me", a.Me)
}
