package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/college-admission/internal/handler"
	"github.com/iliyamo/college-admission/internal/middleware"
	"github.com/iliyamo/college-admission/internal/model"
)

// RegisterOfficer registers officer endpoints under /v1/officer. Admins
// may use them too.
func RegisterOfficer(e *echo.Echo, h *handler.OfficerHandler, p *handler.PaymentHandler, jwtSecret string) {
	g := e.Group(
		"/v1/officer",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOfficer, model.RoleAdmin),
	)

	g.GET("/stats", h.Stats)
	g.GET("/applications", h.ListApplications)
	g.GET("/applications/:id", h.Status)

	g.POST("/applications/bulk-verify", h.BulkVerifyDocuments)
	g.POST("/applications/:id/verify", h.VerifyDocuments)
	g.POST("/applications/:id/interview", h.ScheduleInterview)
	g.POST("/interviews/bulk", h.BulkScheduleInterview)
	g.POST("/applications/:id/decision", h.Decide)

	g.GET("/applications/:id/documents", h.ListDocuments)
	g.POST("/applications/:id/documents", h.RequestDocument)

	g.GET("/applications/:id/payment", p.Status)
	g.POST("/letters", h.IssueLetters)
	g.POST("/applications/:id/letter", h.IssueLetter)
	g.POST("/notify", h.Notify)
}
