package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/college-admission/internal/model"
)

// CourseRepo manages courses and their seat counters.
type CourseRepo struct{ db *sql.DB }

func NewCourseRepo(db *sql.DB) *CourseRepo { return &CourseRepo{db: db} }

const courseColumns = `id, name, department, level, total_seats, available_seats,
	COALESCE(eligibility_criteria, ''), fees_paise, created_at, updated_at`

func scanCourse(row rowScanner) (*model.Course, error) {
	var c model.Course
	if err := row.Scan(&c.ID, &c.Name, &c.Department, &c.Level, &c.TotalSeats, &c.AvailableSeats,
		&c.EligibilityCriteria, &c.FeesPaise, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns all courses ordered by name.
func (r *CourseRepo) List(ctx context.Context) ([]model.Course, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+courseColumns+` FROM courses ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Course, 0)
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// GetByID loads one course.
func (r *CourseRepo) GetByID(ctx context.Context, id uint64) (*model.Course, error) {
	c, err := scanCourse(r.db.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCourseNotFound
	}
	return c, err
}

// GetForUpdateTx locks the course row for the rest of tx.
func (r *CourseRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Course, error) {
	c, err := scanCourse(tx.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = ? FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCourseNotFound
	}
	return c, err
}

// DecrementSeatTx takes one seat if any is left. It reports false
// without error when the course is already full.
func (r *CourseRepo) DecrementSeatTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE courses SET available_seats = available_seats - 1 WHERE id = ? AND available_seats > 0`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Create inserts a course with every seat available.
func (r *CourseRepo) Create(ctx context.Context, c *model.Course) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO courses (name, department, level, total_seats, available_seats, eligibility_criteria, fees_paise)
		 VALUES (?,?,?,?,?,?,?)`,
		strings.TrimSpace(c.Name), strings.TrimSpace(c.Department), strings.TrimSpace(c.Level),
		c.TotalSeats, c.TotalSeats, c.EligibilityCriteria, c.FeesPaise)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Update overwrites a course including both seat counters. It is the
// admin's manual correction path and does not coordinate with running
// selections beyond the row-level write.
func (r *CourseRepo) Update(ctx context.Context, c *model.Course) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE courses SET name = ?, department = ?, level = ?, total_seats = ?, available_seats = ?,
			eligibility_criteria = ?, fees_paise = ?
		 WHERE id = ?`,
		strings.TrimSpace(c.Name), strings.TrimSpace(c.Department), strings.TrimSpace(c.Level),
		c.TotalSeats, c.AvailableSeats, c.EligibilityCriteria, c.FeesPaise, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCourseNotFound
	}
	return nil
}

// Delete removes a course. Courses with seat allocations are kept and
// ErrConflict is returned.
func (r *CourseRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, id)
	if err != nil {
		if isReferenced(err) {
			return ErrConflict
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCourseNotFound
	}
	return nil
}
