// Package repository holds the MySQL data access layer. Sentinel
// errors defined here let the service and handler layers tell lookup
// failures, constraint conflicts and transient faults apart.
package repository

import (
	"database/sql/driver"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrConflict is returned when a delete or update cannot proceed
// because dependent rows exist, e.g. deleting a course that already has
// seat allocations. Handlers translate it into HTTP 409.
var ErrConflict = errors.New("conflict")

var (
	ErrApplicationNotFound = errors.New("application not found")
	ErrCourseNotFound      = errors.New("course not found")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrEmailExists         = errors.New("email already exists")

	// ErrAlreadyAllocated means seat_allocations already holds a row for
	// the application.
	ErrAlreadyAllocated = errors.New("seat already allocated for application")

	// ErrTransient wraps deadlocks, lock wait timeouts and dropped
	// connections. The operation may succeed when retried.
	ErrTransient = errors.New("transient datastore error")
)

// MySQL server error numbers this package reacts to.
const (
	mysqlDuplicateEntry   = 1062
	mysqlLockWaitTimeout  = 1205
	mysqlDeadlock         = 1213
	mysqlRowIsReferenced  = 1451
	mysqlRowIsReferenced2 = 1217
)

func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func isDuplicate(err error) bool { return mysqlErrNumber(err) == mysqlDuplicateEntry }

func isReferenced(err error) bool {
	n := mysqlErrNumber(err)
	return n == mysqlRowIsReferenced || n == mysqlRowIsReferenced2
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	switch mysqlErrNumber(err) {
	case mysqlDeadlock, mysqlLockWaitTimeout:
		return true
	}
	return false
}

type transientError struct{ err error }

func (e *transientError) Error() string { return ErrTransient.Error() + ": " + e.err.Error() }
func (e *transientError) Unwrap() []error { return []error{ErrTransient, e.err} }

// classify tags transient driver errors with ErrTransient and passes
// everything else through unchanged.
func classify(err error) error {
	if err == nil || errors.Is(err, ErrTransient) {
		return err
	}
	if IsTransient(err) {
		return &transientError{err: err}
	}
	return err
}
