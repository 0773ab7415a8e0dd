package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/college-admission/internal/metrics"
	"github.com/iliyamo/college-admission/internal/repository"
)

// Capacity is a snapshot of one course's seat counters.
type Capacity struct {
	CourseID   uint64 `json:"course_id"`
	CourseName string `json:"course_name"`
	Total      int    `json:"total_seats"`
	Available  int    `json:"available_seats"`
}

// SeatLedger owns courses.available_seats. Seats are only taken through
// Reserve, inside the selecting transaction.
type SeatLedger struct {
	store repository.Store
}

func NewSeatLedger(store repository.Store) *SeatLedger {
	return &SeatLedger{store: store}
}

// Reserve locks the course row and takes one seat. A course that no
// longer exists yields ErrNoCourseAssigned; a full course yields
// *SeatsExhaustedError.
func (l *SeatLedger) Reserve(ctx context.Context, tx repository.Tx, courseID uint64) (Capacity, error) {
	c, err := tx.LockCourse(ctx, courseID)
	if errors.Is(err, repository.ErrCourseNotFound) {
		return Capacity{}, fmt.Errorf("%w: course %d no longer exists", ErrNoCourseAssigned, courseID)
	}
	if err != nil {
		return Capacity{}, err
	}
	capacity := Capacity{CourseID: c.ID, CourseName: c.Name, Total: c.TotalSeats, Available: c.AvailableSeats}
	if c.AvailableSeats <= 0 {
		metrics.RecordSeatReservation("exhausted")
		return capacity, &SeatsExhaustedError{CourseID: c.ID, CourseName: c.Name}
	}

	ok, err := tx.DecrementSeat(ctx, courseID)
	if err != nil {
		return capacity, err
	}
	if !ok {
		metrics.RecordSeatReservation("exhausted")
		return capacity, &SeatsExhaustedError{CourseID: c.ID, CourseName: c.Name}
	}
	capacity.Available--
	metrics.RecordSeatReservation("reserved")
	return capacity, nil
}

// CapacityOf reads the current counters outside any transaction.
func (l *SeatLedger) CapacityOf(ctx context.Context, courseID uint64) (Capacity, error) {
	c, err := l.store.GetCourse(ctx, courseID)
	if err != nil {
		return Capacity{}, err
	}
	return Capacity{CourseID: c.ID, CourseName: c.Name, Total: c.TotalSeats, Available: c.AvailableSeats}, nil
}
