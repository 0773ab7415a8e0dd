package repository

import (
	"context"
	"database/sql"
	"time"
)

// SeatAllocationRepo writes seat_allocations. The table's primary key
// is application_id, so a second insert for the same application fails.
type SeatAllocationRepo struct{ db *sql.DB }

func NewSeatAllocationRepo(db *sql.DB) *SeatAllocationRepo { return &SeatAllocationRepo{db: db} }

// CreateTx records that the application consumed a seat of courseID.
func (r *SeatAllocationRepo) CreateTx(ctx context.Context, tx *sql.Tx, applicationID, courseID uint64, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO seat_allocations (application_id, course_id, allocated_at) VALUES (?,?,?)`,
		applicationID, courseID, at.UTC())
	if err != nil && isDuplicate(err) {
		return ErrAlreadyAllocated
	}
	return err
}
