package model

import "time"

// Course mirrors the courses table. AvailableSeats is only decremented
// by a selection; 0 <= AvailableSeats <= TotalSeats.
type Course struct {
	ID                  uint64    `json:"id"`
	Name                string    `json:"name"`
	Department          string    `json:"department"`
	Level               string    `json:"level"`
	TotalSeats          int       `json:"total_seats"`
	AvailableSeats      int       `json:"available_seats"`
	EligibilityCriteria string    `json:"eligibility_criteria,omitempty"`
	FeesPaise           int64     `json:"fees_paise"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// SeatAllocation records the one seat a selected application consumed.
// application_id is the primary key of seat_allocations.
type SeatAllocation struct {
	ApplicationID uint64    `json:"application_id"`
	CourseID      uint64    `json:"course_id"`
	AllocatedAt   time.Time `json:"allocated_at"`
}
