package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mikaelarth/fnev4/internal/model"
)

// CreateSession persists a new import session at the start of an import.
func (s *Store) CreateSession(ctx context.Context, session *model.ImportSession) error {
	return s.db.WithContext(ctx).Create(session).Error
}

// FinishSession records the final counts and failure detail of a session.
func (s *Store) FinishSession(ctx context.Context, id uint, sheetsFound, imported, failed int, errorDetail string) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).
		Model(&model.ImportSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"sheets_found": sheetsFound,
			"imported":     imported,
			"failed":       failed,
			"error_detail": errorDetail,
			"finished_at":  now,
		}).Error
}

// SessionByID loads one import session by its external identifier.
func (s *Store) SessionByID(ctx context.Context, sessionID string) (*model.ImportSession, error) {
	var session model.ImportSession
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessions lists sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]model.ImportSession, error) {
	var sessions []model.ImportSession
	if err := s.db.WithContext(ctx).Order("started_at desc").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// SessionInvoices lists the invoices created by one session. The link is
// non-cascading: deleting a session leaves its invoices in place.
func (s *Store) SessionInvoices(ctx context.Context, id uint) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := s.db.WithContext(ctx).
		Preload("Lines").
		Where("import_session_id = ?", id).
		Order("created_at asc, id asc").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}
