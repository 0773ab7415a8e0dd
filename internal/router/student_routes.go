package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/college-admission/internal/handler"
)

// RegisterStudent registers the public student endpoints. cache wraps
// the course catalogue; lookup throttles every route that identifies a
// student by application id and email.
func RegisterStudent(e *echo.Echo, h *handler.StudentHandler, p *handler.PaymentHandler, cache, lookup echo.MiddlewareFunc) {
	e.GET("/v1/courses", h.ListCourses, cache)
	e.GET("/v1/courses/:id/capacity", h.CourseCapacity)

	e.POST("/v1/applications", h.Apply)
	e.POST("/v1/applications/:id/submit", h.Submit, lookup)
	e.GET("/v1/applications/lookup", h.Lookup, lookup)
	e.GET("/v1/applications/drafts", h.ListDrafts, lookup)
	e.POST("/v1/applications/:id/documents/:doc_id", h.UploadDocument, lookup)
	e.GET("/v1/applications/:id/letter", h.DownloadLetter, lookup)

	e.POST("/v1/payments/confirm", p.Confirm)
}
