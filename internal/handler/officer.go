package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/college-admission/internal/repository"
	"github.com/iliyamo/college-admission/internal/service"
)

// OfficerHandler serves the admission officer's workflow: document
// checks, interviews, decisions, letters and notifications.
type OfficerHandler struct {
	Workflow     *service.Workflow
	Bulk         *service.BulkEngine
	Documents    *service.DocumentService
	Letters      *service.LetterService
	Notifier     *service.Notifier
	Applications *repository.ApplicationRepo
}

func NewOfficerHandler(w *service.Workflow, b *service.BulkEngine, d *service.DocumentService, l *service.LetterService, n *service.Notifier, apps *repository.ApplicationRepo) *OfficerHandler {
	if w == nil || b == nil || d == nil || l == nil || n == nil || apps == nil {
		panic("nil dependency passed to NewOfficerHandler")
	}
	return &OfficerHandler{Workflow: w, Bulk: b, Documents: d, Letters: l, Notifier: n, Applications: apps}
}

type verifyReq struct {
	Verified *bool `json:"verified"`
}

type bulkVerifyReq struct {
	IDs      []uint64 `json:"ids"`
	Verified *bool    `json:"verified"`
}

type interviewReq struct {
	InterviewDate string `json:"interview_date"`
}

type bulkInterviewReq struct {
	CourseID      uint64 `json:"course_id"`
	Department    string `json:"department"`
	InterviewDate string `json:"interview_date"`
}

type decisionReq struct {
	Decision string `json:"decision"`
}

type documentReq struct {
	Reason string `json:"reason"`
}

type notifyReq struct {
	StudentIDs []uint64 `json:"student_ids"`
	Message    string   `json:"message"`
}

// ListApplications returns the officer queue (submitted and approved).
func (h *OfficerHandler) ListApplications(c echo.Context) error {
	ctx, cancel := requestCtx(c, requestTimeout)
	defer cancel()

	apps, err := h.Applications.ListApproved(ctx)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"applications": apps, "count": len(apps)})
}

// Stats feeds the officer dashboard.
func (h *OfficerHandler) Stats(c echo.Context) error {
	ctx, cancel := requestCtx(c, requestTimeout)
	defer cancel()

	s, err := h.Applications.Stats(ctx)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// Status returns an application with its stage and open document requests.
func (h *OfficerHandler) Status(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid application id")
	}
	ctx, cancel := requestCtx(c, requestTimeout)
	defer cancel()

	v, err := h.Workflow.Status(ctx, id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// VerifyDocuments handles POST /v1/officer/applications/:id/verify.
// verified=false rejects the whole application.
func (h *OfficerHandler) VerifyDocuments(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid application id")
	}
	var req verifyReq
	if err := c.Bind(&req); err != nil || req.Verified == nil {
		return badRequest(c, "verified (true|false) is required")
	}
	ctx, cancel := requestCtx(c, requestTimeout)
	defer cancel()

	app, err := h.Workflow.VerifyDocuments(ctx, id, *req.Verified)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, app)
}

// BulkVerifyDocuments handles POST /v1/officer/applications/bulk-verify.
func (h *OfficerHandler) BulkVerifyDocuments(c echo.Context) error {
	var req bulkVerifyReq
	if err := c.Bind(&req); err != nil || req.Verified == nil {
		return badRequest(c, "ids and verified are required")
	}
	ctx, cancel := requestCtx(c, bulkTimeout)
	defer cancel()

	res, err := h.Bulk.BulkVerifyDocuments(ctx, req.IDs, *req.Verified)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ScheduleInterview handles POST /v1/officer/applications/:id/interview.
func (h *OfficerHandler) ScheduleInterview(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid application id")
	}
	var req interviewReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	at, ok := parseTime(req.InterviewDate)
	if !ok {
		return badRequest(c, "interview_date must be RFC 3339")
	}
	ctx, cancel := requestCtx(c, requestTimeout)
	defer cancel()

	app, err := h.Workflow.ScheduleInterview(ctx, id, at)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, app)
}

// BulkScheduleInterview handles POST /v1/officer/interviews/bulk. Exactly
// one of course_id or department selects the candidates.
func (h *OfficerHandler) BulkScheduleInterview(c echo.Context) error {
	var req bulkInterviewReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	at, ok := parseTime(req.InterviewDate)
	if !ok {
		return badRequest(c, "interview_date must be RFC 3339")
	}
	ctx, cancel := requestCtx(c, bulkTimeout)
	defer cancel()

	res, err := h.Bulk.BulkScheduleInterview(ctx, repository.InterviewFilter{CourseID: req.CourseID, Department: req.Department}, at)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Decide handles POST /v1/officer/applications/:id/decision.
func (h *OfficerHandler) Decide(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid application id")
	}
	var req decisionReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestCtx(c, requestTimeout)
	defer cancel()

	res, err := h.Workflow.Decide(ctx, id, req.Decision)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// RequestDocument handles POST /v1/officer/applications/:id/documents.
func (h *OfficerHandler) RequestDocument(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid application id")
	}
	var req documentReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestCtx(c, requestTimeout)
	defer cancel()

	doc, err := h.Documents.RequestDocument(ctx, id, req.Reason)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, doc)
}

// ListDocuments handles GET /v1/officer/applications/:id/documents.
func (h *OfficerHandler) ListDocuments(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid application id")
	}
	ctx, cancel := requestCtx(c, requestTimeout)
	defer cancel()

	docs, err := h.Documents.ListDocuments(ctx, id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"documents": docs})
}

// IssueLetters runs the letter batch now.
func (h *OfficerHandler) IssueLetters(c echo.Context) error {
	ctx, cancel := requestCtx(c, bulkTimeout)
	defer cancel()

	res, err := h.Letters.IssueLetters(ctx)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// IssueLetter writes the letter of one application.
func (h *OfficerHandler) IssueLetter(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid application id")
	}
	ctx, cancel := requestCtx(c, requestTimeout)
	defer cancel()

	res, err := h.Letters.IssueLetter(ctx, id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Notify records a message on the applications and queues it.
func (h *OfficerHandler) Notify(c echo.Context) error {
	var req notifyReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestCtx(c, requestTimeout)
	defer cancel()

	res, err := h.Notifier.Notify(ctx, req.StudentIDs, req.Message)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
