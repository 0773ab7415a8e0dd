package handler

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/mail"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/college-admission/internal/model"
	"github.com/iliyamo/college-admission/internal/repository"
	"github.com/iliyamo/college-admission/internal/service"
	"github.com/iliyamo/college-admission/internal/storage"
)

// maxUploadBytes caps one uploaded document.
const maxUploadBytes = 5 << 20

var uploadExtensions = map[string]bool{".pdf": true, ".jpg": true, ".jpeg": true, ".png": true}

// StudentHandler serves the unauthenticated student side: course
// browsing, applying, looking up an application by id and email, and
// uploading requested documents.
type StudentHandler struct {
	Workflow     *service.Workflow
	Documents    *service.DocumentService
	Ledger       *service.SeatLedger
	Applications *repository.ApplicationRepo
	Courses      *repository.CourseRepo
	Files        *storage.LocalStore
}

func NewStudentHandler(w *service.Workflow, d *service.DocumentService, l *service.SeatLedger, apps *repository.ApplicationRepo, courses *repository.CourseRepo, files *storage.LocalStore) *StudentHandler {
	if w == nil || d == nil || l == nil || apps == nil || courses == nil || files == nil {
		panic("nil dependency passed to NewStudentHandler")
	}
	return &StudentHandler{Workflow: w, Documents: d, Ledger: l, Applications: apps, Courses: courses, Files: files}
}

type applicationReq struct {
	StudentName       string  `json:"student_name" form:"student_name"`
	Email             string  `json:"email" form:"email"`
	Phone             string  `json:"phone" form:"phone"`
	CoursePreference1 *uint64 `json:"course_preference_1" form:"course_preference_1"`
	CoursePreference2 *uint64 `json:"course_preference_2" form:"course_preference_2"`
	CoursePreference3 *uint64 `json:"course_preference_3" form:"course_preference_3"`
	Draft             bool    `json:"draft" form:"draft"`
}

type ownerReq struct {
	Email string `json:"email"`
}

// ListCourses is the public course catalogue.
func (h *StudentHandler) ListCourses(c echo.Context) error {
	ctx, cancel := requestCtx(c, requestTimeout)
	defer cancel()

	courses, err := h.Courses.List(ctx)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"courses": courses})
}

// CourseCapacity reports total and available seats of one course.
func (h *StudentHandler) CourseCapacity(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid course id")
	}
	ctx, cancel := requestCtx(c, requestTimeout)
	defer cancel()

	capacity, err := h.Ledger.CapacityOf(ctx, id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, capacity)
}

// Apply handles POST /v1/applications as JSON or as a multipart form
// carrying the documents named in model.UploadFields. With draft=true
// the application is stored but stays invisible to staff until
// submitted.
func (h *StudentHandler) Apply(c echo.Context) error {
	var req applicationReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.StudentName = strings.TrimSpace(req.StudentName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.StudentName == "" {
		return badRequest(c, "student_name is required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return badRequest(c, "a valid email is required")
	}
	if !req.Draft && (req.CoursePreference1 == nil || *req.CoursePreference1 == 0) {
		return badRequest(c, "course_preference_1 is required")
	}
	files, err := formUploads(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := requestCtx(c, requestTimeout)
	defer cancel()

	for i, pref := range []*uint64{req.CoursePreference1, req.CoursePreference2, req.CoursePreference3} {
		if pref == nil || *pref == 0 {
			continue
		}
		if _, err := h.Courses.GetByID(ctx, *pref); err != nil {
			if errors.Is(err, repository.ErrCourseNotFound) {
				return badRequest(c, fmt.Sprintf("course_preference_%d does not exist", i+1))
			}
			return writeServiceError(c, err)
		}
	}

	uploads, keys, err := h.saveUploads(ctx, files)
	if err != nil {
		return writeServiceError(c, err)
	}

	id, err := h.Applications.Create(ctx, &model.Application{
		StudentName:       req.StudentName,
		Email:             req.Email,
		Phone:             strings.TrimSpace(req.Phone),
		IsDraft:           true,
		CoursePreference1: req.CoursePreference1,
		CoursePreference2: req.CoursePreference2,
		CoursePreference3: req.CoursePreference3,
		Uploads:           uploads,
	})
	if err != nil {
		h.deleteFiles(keys)
		return writeServiceError(c, err)
	}

	var app *model.Application
	if req.Draft {
		app, err = h.Applications.GetByID(ctx, id)
	} else {
		app, err = h.Workflow.Submit(ctx, id)
	}
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, app)
}

// formUploads collects the application documents of a multipart
// request. A JSON request carries none.
func formUploads(c echo.Context) (map[string]*multipart.FileHeader, error) {
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, errors.New("invalid multipart form")
	}
	out := make(map[string]*multipart.FileHeader)
	for _, field := range model.UploadFields {
		fhs := form.File[field]
		if len(fhs) == 0 {
			continue
		}
		if len(fhs) > 1 {
			return nil, fmt.Errorf("%s: only one file is accepted", field)
		}
		if err := checkUpload(fhs[0]); err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		out[field] = fhs[0]
	}
	return out, nil
}

func checkUpload(fh *multipart.FileHeader) error {
	if !uploadExtensions[strings.ToLower(filepath.Ext(fh.Filename))] {
		return errors.New("only pdf, jpg and png files are accepted")
	}
	if fh.Size > maxUploadBytes {
		return storage.ErrTooLarge
	}
	return nil
}

// saveUploads stores every file and returns their keys. On failure the
// files already written are removed.
func (h *StudentHandler) saveUploads(ctx context.Context, files map[string]*multipart.FileHeader) (model.Uploads, []string, error) {
	var up model.Uploads
	keys := make([]string, 0, len(files))
	for _, field := range model.UploadFields {
		fh, ok := files[field]
		if !ok {
			continue
		}
		key, err := h.saveFile(ctx, "applications", field+"_", fh)
		if err != nil {
			h.deleteFiles(keys)
			return model.Uploads{}, nil, err
		}
		up.Set(field, key)
		keys = append(keys, key)
	}
	return up, keys, nil
}

func (h *StudentHandler) saveFile(ctx context.Context, dir, prefix string, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()
	return h.Files.Save(ctx, dir, prefix, strings.ToLower(filepath.Ext(fh.Filename)), src, maxUploadBytes)
}

func (h *StudentHandler) deleteFiles(keys []string) {
	for _, k := range keys {
		_ = h.Files.Delete(k)
	}
}

// ListDrafts handles GET /v1/applications/drafts?email= so a student
// can find a saved draft to submit.
func (h *StudentHandler) ListDrafts(c echo.Context) error {
	email := strings.TrimSpace(c.QueryParam("email"))
	if _, err := mail.ParseAddress(email); err != nil {
		return badRequest(c, "a valid email is required")
	}
	ctx, cancel := requestCtx(c, requestTimeout)
	defer cancel()

	drafts, err := h.Applications.ListDraftsByEmail(ctx, email)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"drafts": drafts})
}

// Submit finalizes a draft. The caller proves ownership with the email
// the draft was created with.
func (h *StudentHandler) Submit(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid application id")
	}
	var req ownerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestCtx(c, requestTimeout)
	defer cancel()

	cur, err := h.Applications.GetByID(ctx, id)
	if err != nil {
		return writeServiceError(c, err)
	}
	if !strings.EqualFold(cur.Email, strings.TrimSpace(req.Email)) {
		return writeServiceError(c, repository.ErrApplicationNotFound)
	}
	if _, ok := cur.FirstPreference(); !ok {
		return badRequest(c, "course_preference_1 is required before submitting")
	}
	app, err := h.Workflow.Submit(ctx, id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, app)
}

// Lookup handles GET /v1/applications/lookup?id=&email=. Drafts are
// never returned.
func (h *StudentHandler) Lookup(c echo.Context) error {
	id, err := strconv.ParseUint(c.QueryParam("id"), 10, 64)
	email := strings.TrimSpace(c.QueryParam("email"))
	if err != nil || id == 0 || email == "" {
		return badRequest(c, "id and email are required")
	}
	ctx, cancel := requestCtx(c, requestTimeout)
	defer cancel()

	app, err := h.Applications.GetByIDAndEmail(ctx, id, email)
	if err != nil {
		return writeServiceError(c, err)
	}
	docs, err := h.Documents.ListDocuments(ctx, id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"application": app,
		"stage":       app.Stage(),
		"documents":   docs,
	})
}

// UploadDocument handles multipart POST
// /v1/applications/:id/documents/:doc_id with form fields email and file.
func (h *StudentHandler) UploadDocument(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid application id")
	}
	docID, ok := parseID(c, "doc_id")
	if !ok {
		return badRequest(c, "invalid document id")
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}
	if err := checkUpload(fh); err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := requestCtx(c, requestTimeout)
	defer cancel()

	if _, err := h.Applications.GetByIDAndEmail(ctx, id, c.FormValue("email")); err != nil {
		return writeServiceError(c, err)
	}

	key, err := h.saveFile(ctx, "documents", fmt.Sprintf("app%d_doc%d_", id, docID), fh)
	if err != nil {
		return writeServiceError(c, err)
	}
	doc, err := h.Documents.MarkUploaded(ctx, id, docID, key)
	if err != nil {
		_ = h.Files.Delete(key)
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, doc)
}

// DownloadLetter streams the admission letter to its owner.
func (h *StudentHandler) DownloadLetter(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid application id")
	}
	ctx, cancel := requestCtx(c, requestTimeout)
	defer cancel()

	app, err := h.Applications.GetByIDAndEmail(ctx, id, c.QueryParam("email"))
	if err != nil {
		return writeServiceError(c, err)
	}
	if !app.HasLetter() {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "admission letter not issued yet"})
	}
	rc, err := h.Files.Open(*app.AdmissionLetterPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "admission letter file missing"})
		}
		return writeServiceError(c, err)
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", filepath.Base(*app.AdmissionLetterPath)))
	return c.Stream(http.StatusOK, "text/plain; charset=utf-8", rc)
}
