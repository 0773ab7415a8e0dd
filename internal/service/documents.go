package service

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/college-admission/internal/logger"
	"github.com/iliyamo/college-admission/internal/model"
	"github.com/iliyamo/college-admission/internal/queue"
	"github.com/iliyamo/college-admission/internal/repository"
)

// DocumentService handles officer requests for additional documents and
// the student's uploads answering them.
type DocumentService struct {
	store  repository.Store
	events EventPublisher
	log    *logrus.Entry
	now    func() time.Time
}

func NewDocumentService(store repository.Store, events EventPublisher) *DocumentService {
	if events == nil {
		events = NopPublisher{}
	}
	return &DocumentService{
		store:  store,
		events: events,
		log:    logger.WithService("documents"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *DocumentService) RequestDocument(ctx context.Context, applicationID uint64, reason string) (*model.AdditionalDocument, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	a, err := s.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if a.IsDraft {
		return nil, draftError("request documents for", applicationID)
	}

	id, err := s.store.CreateDocument(ctx, applicationID, reason)
	if err != nil {
		return nil, err
	}
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"application_id": applicationID, "document_id": id}).Info("additional document requested")
	emit(ctx, s.events, s.log, queue.AdmissionEvent{
		Type:          queue.EventDocumentRequested,
		ApplicationID: applicationID,
		StudentName:   a.StudentName,
		Detail:        reason,
	})
	return doc, nil
}

func (s *DocumentService) ListDocuments(ctx context.Context, applicationID uint64) ([]model.AdditionalDocument, error) {
	if _, err := s.store.GetApplication(ctx, applicationID); err != nil {
		return nil, err
	}
	return s.store.ListDocuments(ctx, applicationID)
}

// MarkUploaded records the stored file for a request. The document must
// belong to applicationID; uploading again replaces the path.
func (s *DocumentService) MarkUploaded(ctx context.Context, applicationID, documentID uint64, path string) (*model.AdditionalDocument, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.ApplicationID != applicationID {
		return nil, ErrDocumentNotFound
	}
	if err := s.store.MarkDocumentUploaded(ctx, documentID, path, s.now()); err != nil {
		return nil, err
	}
	return s.store.GetDocument(ctx, documentID)
}
