package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/college-admission/internal/model"
)

// DocumentRepo persists additional document requests.
type DocumentRepo struct{ db *sql.DB }

func NewDocumentRepo(db *sql.DB) *DocumentRepo { return &DocumentRepo{db: db} }

const documentColumns = `id, application_id, reason, status, file_path, created_at, uploaded_at`

func scanDocument(row rowScanner) (*model.AdditionalDocument, error) {
	var (
		d        model.AdditionalDocument
		status   string
		path     sql.NullString
		uploaded sql.NullTime
	)
	if err := row.Scan(&d.ID, &d.ApplicationID, &d.Reason, &status, &path, &d.CreatedAt, &uploaded); err != nil {
		return nil, err
	}
	d.Status = model.DocumentStatus(status)
	d.FilePath = stringPtr(path)
	d.UploadedAt = timePtr(uploaded)
	return &d, nil
}

// Create inserts a request in the requested state and returns its id.
func (r *DocumentRepo) Create(ctx context.Context, applicationID uint64, reason string) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO additional_documents (application_id, reason, status) VALUES (?,?, 'requested')`,
		applicationID, reason)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID loads one request.
func (r *DocumentRepo) GetByID(ctx context.Context, id uint64) (*model.AdditionalDocument, error) {
	d, err := scanDocument(r.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM additional_documents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	return d, err
}

// ListByApplication returns the requests of one application, newest first.
func (r *DocumentRepo) ListByApplication(ctx context.Context, applicationID uint64) ([]model.AdditionalDocument, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM additional_documents WHERE application_id = ? ORDER BY created_at DESC, id DESC`,
		applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.AdditionalDocument, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// MarkUploaded attaches the stored file to the request.
func (r *DocumentRepo) MarkUploaded(ctx context.Context, id uint64, path string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE additional_documents SET status = 'uploaded', file_path = ?, uploaded_at = ? WHERE id = ?`,
		path, at.UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}
