package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/college-admission/internal/logger"
	"github.com/iliyamo/college-admission/internal/middleware"
	"github.com/iliyamo/college-admission/internal/model"
	"github.com/iliyamo/college-admission/internal/repository"
	"github.com/iliyamo/college-admission/internal/service"
)

// AdminHandler serves course management and the admin review queue.
type AdminHandler struct {
	Workflow     *service.Workflow
	Bulk         *service.BulkEngine
	Courses      *repository.CourseRepo
	Applications *repository.ApplicationRepo
	Redis        *redis.Client // nil disables cache invalidation
	CachePrefix  string
}

func NewAdminHandler(w *service.Workflow, b *service.BulkEngine, courses *repository.CourseRepo, apps *repository.ApplicationRepo, rdb *redis.Client, cachePrefix string) *AdminHandler {
	if w == nil || b == nil || courses == nil || apps == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Workflow: w, Bulk: b, Courses: courses, Applications: apps, Redis: rdb, CachePrefix: cachePrefix}
}

type courseReq struct {
	Name                string `json:"name"`
	Department          string `json:"department"`
	Level               string `json:"level"`
	TotalSeats          *int   `json:"total_seats"`
	AvailableSeats      *int   `json:"available_seats"`
	EligibilityCriteria string `json:"eligibility_criteria"`
	FeesPaise           int64  `json:"fees_paise"`
}

func (r *courseReq) validate() string {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return "name is required"
	case strings.TrimSpace(r.Department) == "":
		return "department is required"
	case r.TotalSeats == nil || *r.TotalSeats < 0:
		return "total_seats must be zero or more"
	case r.AvailableSeats != nil && (*r.AvailableSeats < 0 || *r.AvailableSeats > *r.TotalSeats):
		return "available_seats must be between 0 and total_seats"
	case r.FeesPaise < 0:
		return "fees_paise must not be negative"
	}
	return ""
}

func (h *AdminHandler) invalidateCourses(c echo.Context) {
	if h.Redis == nil {
		return
	}
	if err := middleware.InvalidateCache(c.Request().Context(), h.Redis, h.CachePrefix); err != nil {
		logger.WithService("http").WithError(err).Warn("course cache invalidation failed")
	}
}

// CreateCourse handles POST /v1/admin/courses. Every seat starts available.
func (h *AdminHandler) CreateCourse(c echo.Context) error {
	var req courseReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}
	ctx, cancel := requestCtx(c, requestTimeout)
	defer cancel()

	course := &model.Course{
		Name:                req.Name,
		Department:          req.Department,
		Level:               req.Level,
		TotalSeats:          *req.TotalSeats,
		EligibilityCriteria: req.EligibilityCriteria,
		FeesPaise:           req.FeesPaise,
	}
	id, err := h.Courses.Create(ctx, course)
	if err != nil {
		return writeServiceError(c, err)
	}
	created, err := h.Courses.GetByID(ctx, id)
	if err != nil {
		return writeServiceError(c, err)
	}
	h.invalidateCourses(c)
	return c.JSON(http.StatusCreated, created)
}

// UpdateCourse handles PUT /v1/admin/courses/:id. Setting the seat
// counters here bypasses the seat ledger; only 0 <= available <= total
// is checked. available_seats defaults to the stored value clamped to
// the new total.
func (h *AdminHandler) UpdateCourse(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid course id")
	}
	var req courseReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}
	ctx, cancel := requestCtx(c, requestTimeout)
	defer cancel()

	cur, err := h.Courses.GetByID(ctx, id)
	if err != nil {
		return writeServiceError(c, err)
	}
	available := min(cur.AvailableSeats, *req.TotalSeats)
	if req.AvailableSeats != nil {
		available = *req.AvailableSeats
	}
	cur.Name = req.Name
	cur.Department = req.Department
	cur.Level = req.Level
	cur.TotalSeats = *req.TotalSeats
	cur.AvailableSeats = available
	cur.EligibilityCriteria = req.EligibilityCriteria
	cur.FeesPaise = req.FeesPaise
	if err := h.Courses.Update(ctx, cur); err != nil {
		return writeServiceError(c, err)
	}
	logger.WithService("http").WithFields(logrus.Fields{
		"course_id": id, "total_seats": cur.TotalSeats, "available_seats": cur.AvailableSeats,
	}).Warn("course seats edited manually")
	h.invalidateCourses(c)
	return c.JSON(http.StatusOK, cur)
}

// DeleteCourse handles DELETE /v1/admin/courses/:id.
func (h *AdminHandler) DeleteCourse(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid course id")
	}
	ctx, cancel := requestCtx(c, requestTimeout)
	defer cancel()

	if err := h.Courses.Delete(ctx, id); err != nil {
		return writeServiceError(c, err)
	}
	h.invalidateCourses(c)
	return c.NoContent(http.StatusNoContent)
}

// ListApplications returns every submitted application.
func (h *AdminHandler) ListApplications(c echo.Context) error {
	ctx, cancel := requestCtx(c, requestTimeout)
	defer cancel()

	apps, err := h.Applications.ListSubmitted(ctx)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"applications": apps, "count": len(apps)})
}

// Approve handles POST /v1/admin/applications/:id/approve.
func (h *AdminHandler) Approve(c echo.Context) error {
	return h.review(c, h.Workflow.Approve)
}

// Reject handles POST /v1/admin/applications/:id/reject.
func (h *AdminHandler) Reject(c echo.Context) error {
	return h.review(c, h.Workflow.Reject)
}

func (h *AdminHandler) review(c echo.Context, fn func(ctx context.Context, id uint64) (*model.Application, error)) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid application id")
	}
	ctx, cancel := requestCtx(c, requestTimeout)
	defer cancel()

	app, err := fn(ctx, id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, app)
}

// BulkApprove handles POST /v1/admin/applications/bulk-approve.
func (h *AdminHandler) BulkApprove(c echo.Context) error {
	var req idsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestCtx(c, bulkTimeout)
	defer cancel()

	res, err := h.Bulk.BulkApprove(ctx, req.IDs)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
