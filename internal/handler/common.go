package handler // handler holds the HTTP handlers of the admission API

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/college-admission/internal/logger"
	"github.com/iliyamo/college-admission/internal/middleware"
	"github.com/iliyamo/college-admission/internal/repository"
	"github.com/iliyamo/college-admission/internal/service"
	"github.com/iliyamo/college-admission/internal/storage"
)

// requestTimeout bounds the datastore work of a single request. Bulk
// and letter routes use bulkTimeout.
const (
	requestTimeout = 5 * time.Second
	bulkTimeout    = 2 * time.Minute
)

func requestCtx(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), d)
}

// getUserID extracts the staff user id the JWT middleware stored.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get(middleware.CtxUserID).(type) {
	case uint64:
		return t, nil
	case int64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// writeServiceError translates service and repository errors into the
// API's status codes. Unknown errors are logged and hidden behind 500.
func writeServiceError(c echo.Context, err error) error {
	var seats *service.SeatsExhaustedError
	var pre *service.PreconditionError
	switch {
	case errors.As(err, &seats):
		return c.JSON(http.StatusConflict, echo.Map{"error": seats.Error(), "course_id": seats.CourseID})
	case errors.As(err, &pre):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": pre.Error(), "step": pre.Step})
	case errors.Is(err, service.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNoCourseAssigned):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNotSelected), errors.Is(err, service.ErrPaymentRequired):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidSignature):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNoEligibleCandidates),
		errors.Is(err, service.ErrInvalidDecision),
		errors.Is(err, service.ErrInvalidInterviewDate),
		errors.Is(err, service.ErrReasonRequired),
		errors.Is(err, service.ErrEmptyBatch),
		errors.Is(err, service.ErrFilterRequired),
		errors.Is(err, service.ErrMessageRequired),
		errors.Is(err, service.ErrPaymentReference),
		errors.Is(err, storage.ErrTooLarge):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrApplicationNotFound),
		errors.Is(err, repository.ErrCourseNotFound),
		errors.Is(err, repository.ErrDocumentNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrConflict), errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrRetryable), repository.IsTransient(err):
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable, please retry"})
	case errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusGatewayTimeout, echo.Map{"error": "request timed out"})
	}
	logger.WithService("http").WithError(err).WithField("route", c.Path()).Error("unhandled error")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

type idsReq struct {
	IDs []uint64 `json:"ids"`
}

// parseTime accepts RFC 3339 or a bare "2006-01-02T15:04" local form,
// read as UTC.
func parseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
