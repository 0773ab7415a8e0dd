package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/college-admission/internal/handler"
	"github.com/iliyamo/college-admission/internal/middleware"
	"github.com/iliyamo/college-admission/internal/model"
)

// RegisterAdmin registers ADMIN-only endpoints under /v1/admin.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	g.POST("/users", a.CreateStaff)

	// ---- Courses ----
	g.POST("/courses", h.CreateCourse)
	g.PUT("/courses/:id", h.UpdateCourse)
	g.DELETE("/courses/:id", h.DeleteCourse)

	// ---- Review ----
	g.GET("/applications", h.ListApplications)
	g.POST("/applications/bulk-approve", h.BulkApprove)
	g.POST("/applications/:id/approve", h.Approve)
	g.POST("/applications/:id/reject", h.Reject)
}
