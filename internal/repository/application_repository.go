package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/college-admission/internal/model"
)

// ApplicationRepo reads and writes the applications table.
type ApplicationRepo struct{ db *sql.DB }

func NewApplicationRepo(db *sql.DB) *ApplicationRepo { return &ApplicationRepo{db: db} }

// InterviewFilter selects bulk interview candidates either by first
// preference course or by that course's department.
type InterviewFilter struct {
	CourseID   uint64
	Department string
}

const applicationColumns = `a.id, a.student_name, a.email, a.phone, a.is_draft, a.status,
	a.officer_verified, a.interview_date, a.selection_status,
	a.payment_status, a.payment_amount_paise, a.payment_date,
	a.gateway_order_id, a.gateway_payment_id, a.gateway_signature,
	a.course_preference_1, a.course_preference_2, a.course_preference_3,
	a.photo_path, a.signature_path, a.marksheet10_path, a.marksheet12_path,
	a.entrance_card_path, a.id_proof_path,
	a.admission_letter_path, a.admission_letter_sent_at,
	a.last_notification, a.last_notification_at, a.created_at, a.updated_at`

const applicationSelect = `SELECT ` + applicationColumns + `,
	COALESCE(c.name, ''), COALESCE(c.department, '')
	FROM applications a
	LEFT JOIN courses c ON c.id = a.course_preference_1`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*model.Application, error) {
	var (
		a                                       model.Application
		status                                  string
		verified                                sql.NullBool
		selection, payStatus                    sql.NullString
		interview, paidAt, letterAt, notifiedAt sql.NullTime
		amount                                  sql.NullInt64
		orderID, paymentID, signature           sql.NullString
		pref1, pref2, pref3                     sql.NullInt64
		letterPath, notification                sql.NullString
		photo, sigPath, mark10, mark12          sql.NullString
		entranceCard, idProof                   sql.NullString
	)
	err := row.Scan(&a.ID, &a.StudentName, &a.Email, &a.Phone, &a.IsDraft, &status,
		&verified, &interview, &selection,
		&payStatus, &amount, &paidAt,
		&orderID, &paymentID, &signature,
		&pref1, &pref2, &pref3,
		&photo, &sigPath, &mark10, &mark12,
		&entranceCard, &idProof,
		&letterPath, &letterAt,
		&notification, &notifiedAt, &a.CreatedAt, &a.UpdatedAt,
		&a.CourseName, &a.Department)
	if err != nil {
		return nil, err
	}

	a.Status = model.AdminStatus(status)
	a.OfficerVerified = model.VerificationUnset
	if verified.Valid {
		if verified.Bool {
			a.OfficerVerified = model.VerificationVerified
		} else {
			a.OfficerVerified = model.VerificationRejected
		}
	}
	a.SelectionStatus = model.SelectionNone
	if selection.Valid && selection.String != "" {
		a.SelectionStatus = model.SelectionStatus(selection.String)
	}
	a.Payment.Status = model.PaymentNone
	if payStatus.Valid && payStatus.String != "" {
		a.Payment.Status = model.PaymentStatus(payStatus.String)
	}
	if amount.Valid {
		v := amount.Int64
		a.Payment.AmountPaise = &v
	}
	a.InterviewDate = timePtr(interview)
	a.Payment.PaidAt = timePtr(paidAt)
	a.Payment.OrderID = stringPtr(orderID)
	a.Payment.PaymentID = stringPtr(paymentID)
	a.Payment.Signature = stringPtr(signature)
	a.CoursePreference1 = uintPtr(pref1)
	a.CoursePreference2 = uintPtr(pref2)
	a.CoursePreference3 = uintPtr(pref3)
	a.Uploads = model.Uploads{
		PhotoPath:        stringPtr(photo),
		SignaturePath:    stringPtr(sigPath),
		Marksheet10Path:  stringPtr(mark10),
		Marksheet12Path:  stringPtr(mark12),
		EntranceCardPath: stringPtr(entranceCard),
		IDProofPath:      stringPtr(idProof),
	}
	a.AdmissionLetterPath = stringPtr(letterPath)
	a.AdmissionLetterSentAt = timePtr(letterAt)
	a.LastNotification = stringPtr(notification)
	a.LastNotificationAt = timePtr(notifiedAt)
	return &a, nil
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func uintPtr(v sql.NullInt64) *uint64 {
	if !v.Valid || v.Int64 <= 0 {
		return nil
	}
	u := uint64(v.Int64)
	return &u
}

func nullUint(v *uint64) any {
	if v == nil || *v == 0 {
		return nil
	}
	return *v
}

func nullString(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

// Create inserts an application and returns its id. Drafts are stored
// with is_draft=1 and stay invisible to staff until finalized.
func (r *ApplicationRepo) Create(ctx context.Context, a *model.Application) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO applications (student_name, email, phone, is_draft, status,
			course_preference_1, course_preference_2, course_preference_3,
			photo_path, signature_path, marksheet10_path, marksheet12_path,
			entrance_card_path, id_proof_path)
		 VALUES (?,?,?,?, 'pending', ?,?,?, ?,?,?,?,?,?)`,
		strings.TrimSpace(a.StudentName), strings.ToLower(strings.TrimSpace(a.Email)), a.Phone, a.IsDraft,
		nullUint(a.CoursePreference1), nullUint(a.CoursePreference2), nullUint(a.CoursePreference3),
		nullString(a.Uploads.PhotoPath), nullString(a.Uploads.SignaturePath),
		nullString(a.Uploads.Marksheet10Path), nullString(a.Uploads.Marksheet12Path),
		nullString(a.Uploads.EntranceCardPath), nullString(a.Uploads.IDProofPath))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID loads one application with its first-preference course name.
func (r *ApplicationRepo) GetByID(ctx context.Context, id uint64) (*model.Application, error) {
	a, err := scanApplication(r.db.QueryRowContext(ctx, applicationSelect+` WHERE a.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrApplicationNotFound
	}
	return a, err
}

// GetByIDAndEmail is the student lookup: it only matches finalized
// applications.
func (r *ApplicationRepo) GetByIDAndEmail(ctx context.Context, id uint64, email string) (*model.Application, error) {
	a, err := scanApplication(r.db.QueryRowContext(ctx,
		applicationSelect+` WHERE a.id = ? AND a.email = ? AND a.is_draft = 0`,
		id, strings.ToLower(strings.TrimSpace(email))))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrApplicationNotFound
	}
	return a, err
}

// GetForUpdateTx reads the application row with an exclusive lock held
// until tx ends. Course columns are left empty.
func (r *ApplicationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Application, error) {
	a, err := scanApplication(tx.QueryRowContext(ctx,
		`SELECT `+applicationColumns+`, '', '' FROM applications a WHERE a.id = ? FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrApplicationNotFound
	}
	return a, err
}

// ListSubmitted returns every finalized application, newest first.
func (r *ApplicationRepo) ListSubmitted(ctx context.Context) ([]model.Application, error) {
	return r.list(ctx, applicationSelect+` WHERE a.is_draft = 0 ORDER BY a.created_at DESC, a.id DESC`)
}

// ListDraftsByEmail returns the unsubmitted applications saved under
// email, newest first.
func (r *ApplicationRepo) ListDraftsByEmail(ctx context.Context, email string) ([]model.Application, error) {
	return r.list(ctx, applicationSelect+` WHERE a.email = ? AND a.is_draft = 1 ORDER BY a.created_at DESC, a.id DESC`,
		strings.ToLower(strings.TrimSpace(email)))
}

// ListApproved returns the officer's queue: finalized and admin approved.
func (r *ApplicationRepo) ListApproved(ctx context.Context) ([]model.Application, error) {
	return r.list(ctx, applicationSelect+` WHERE a.is_draft = 0 AND a.status = 'approved' ORDER BY a.created_at DESC, a.id DESC`)
}

// LetterCandidates returns selected, paid applications without a letter.
func (r *ApplicationRepo) LetterCandidates(ctx context.Context) ([]model.Application, error) {
	return r.list(ctx, applicationSelect+`
		WHERE a.is_draft = 0 AND a.selection_status = 'selected' AND a.payment_status = 'paid'
		  AND (a.admission_letter_path IS NULL OR a.admission_letter_path = '')
		ORDER BY a.id`)
}

func (r *ApplicationRepo) list(ctx context.Context, query string, args ...any) ([]model.Application, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Application, 0)
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// InterviewCandidates is the read-only bulk interview query: approved,
// verified, no interview yet and no selection decision.
func (r *ApplicationRepo) InterviewCandidates(ctx context.Context, f InterviewFilter) ([]model.Candidate, error) {
	q := `SELECT a.id, a.student_name, a.email
		FROM applications a
		JOIN courses c ON c.id = a.course_preference_1
		WHERE a.is_draft = 0 AND a.status = 'approved' AND a.officer_verified = 1
		  AND a.interview_date IS NULL AND a.selection_status IS NULL`
	var args []any
	switch {
	case f.CourseID != 0:
		q += ` AND c.id = ?`
		args = append(args, f.CourseID)
	case strings.TrimSpace(f.Department) != "":
		q += ` AND c.department = ?`
		args = append(args, strings.TrimSpace(f.Department))
	default:
		return nil, errors.New("interview filter needs a course or a department")
	}
	q += ` ORDER BY a.id`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Candidate, 0)
	for rows.Next() {
		var c model.Candidate
		if err := rows.Scan(&c.ID, &c.StudentName, &c.Email); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// execOne runs an update that must match exactly one application. The
// DSN sets clientFoundRows, so unchanged rows still count as affected.
func execOne(ctx context.Context, tx *sql.Tx, query string, args ...any) error {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrApplicationNotFound
	}
	return nil
}

// UpdateStatusTx records the admin decision.
func (r *ApplicationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.AdminStatus) error {
	return execOne(ctx, tx, `UPDATE applications SET status = ? WHERE id = ?`, string(status), id)
}

// SetVerificationTx stores the officer's document verdict.
func (r *ApplicationRepo) SetVerificationTx(ctx context.Context, tx *sql.Tx, id uint64, v model.Verification) error {
	var val any
	switch v {
	case model.VerificationVerified:
		val = 1
	case model.VerificationRejected:
		val = 0
	}
	return execOne(ctx, tx, `UPDATE applications SET officer_verified = ? WHERE id = ?`, val, id)
}

// RejectDocumentsTx applies the document rejection cascade in a single
// statement.
func (r *ApplicationRepo) RejectDocumentsTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	return execOne(ctx, tx,
		`UPDATE applications SET officer_verified = 0, selection_status = 'rejected', status = 'rejected' WHERE id = ?`, id)
}

// SetInterviewDateTx schedules or reschedules the interview.
func (r *ApplicationRepo) SetInterviewDateTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) error {
	return execOne(ctx, tx, `UPDATE applications SET interview_date = ? WHERE id = ?`, at.UTC(), id)
}

// SetSelectionStatusTx stores the officer's decision.
func (r *ApplicationRepo) SetSelectionStatusTx(ctx context.Context, tx *sql.Tx, id uint64, s model.SelectionStatus) error {
	var val any
	if s != model.SelectionNone && s != "" {
		val = string(s)
	}
	return execOne(ctx, tx, `UPDATE applications SET selection_status = ? WHERE id = ?`, val, id)
}

// FinalizeTx turns a draft into a submitted application.
func (r *ApplicationRepo) FinalizeTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	return execOne(ctx, tx, `UPDATE applications SET is_draft = 0 WHERE id = ?`, id)
}

// SetPaymentTx stores the gateway references of a confirmed payment.
func (r *ApplicationRepo) SetPaymentTx(ctx context.Context, tx *sql.Tx, id uint64, p model.Payment) error {
	var paidAt any
	if p.PaidAt != nil {
		paidAt = p.PaidAt.UTC()
	}
	return execOne(ctx, tx,
		`UPDATE applications SET payment_status = ?, payment_amount_paise = ?, payment_date = ?,
			gateway_order_id = ?, gateway_payment_id = ?, gateway_signature = ?
		 WHERE id = ?`,
		string(p.Status), p.AmountPaise, paidAt, p.OrderID, p.PaymentID, p.Signature, id)
}

// SetAdmissionLetter stores the generated letter location.
func (r *ApplicationRepo) SetAdmissionLetter(ctx context.Context, id uint64, path string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE applications SET admission_letter_path = ?, admission_letter_sent_at = ? WHERE id = ?`,
		path, at.UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrApplicationNotFound
	}
	return nil
}

// SetNotification records the last message sent to each submitted
// application among ids and returns the ids it recorded. Unknown ids
// and drafts are skipped.
func (r *ApplicationRepo) SetNotification(ctx context.Context, ids []uint64, message string, at time.Time) ([]uint64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM applications WHERE is_draft = 0 AND id IN (`+inList(len(ids))+`) ORDER BY id`,
		idArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	found := make([]uint64, 0, len(ids))
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found = append(found, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return found, nil
	}

	args := append([]any{message, at.UTC()}, idArgs(found)...)
	_, err = r.db.ExecContext(ctx,
		`UPDATE applications SET last_notification = ?, last_notification_at = ?
		 WHERE is_draft = 0 AND id IN (`+inList(len(found))+`)`,
		args...)
	if err != nil {
		return nil, err
	}
	return found, nil
}

func inList(n int) string { return strings.TrimSuffix(strings.Repeat("?,", n), ",") }

func idArgs(ids []uint64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

// Stats computes the officer dashboard counters over finalized,
// approved applications.
func (r *ApplicationRepo) Stats(ctx context.Context) (model.OfficerStats, error) {
	var s model.OfficerStats
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(officer_verified = 1), 0),
			COALESCE(SUM(selection_status = 'selected'), 0),
			COALESCE(SUM(officer_verified IS NULL), 0)
		 FROM applications
		 WHERE is_draft = 0 AND status = 'approved'`).
		Scan(&s.TotalEligible, &s.VerifiedDocuments, &s.SelectedStudents, &s.PendingReview)
	return s, err
}
