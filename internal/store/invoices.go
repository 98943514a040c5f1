package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mikaelarth/fnev4/internal/model"
)

// CertificationArtifacts is everything the DGI returns on success. The
// status change and all artifact columns are written in one update.
type CertificationArtifacts struct {
	Reference      string
	Token          string
	QRPayload      string
	StickerBalance int
	At             time.Time
}

// CreateInvoice persists a Draft invoice with its line items.
func (s *Store) CreateInvoice(ctx context.Context, inv *model.Invoice) error {
	return s.db.WithContext(ctx).Create(inv).Error
}

// InvoiceByID loads one invoice with its lines.
func (s *Store) InvoiceByID(ctx context.Context, id uint) (*model.Invoice, error) {
	var inv model.Invoice
	err := s.db.WithContext(ctx).Preload("Lines").First(&inv, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// InvoiceByNumber finds a live (not soft-deleted) invoice by number; the
// importer uses it for the duplicate check.
func (s *Store) InvoiceByNumber(ctx context.Context, number string) (*model.Invoice, error) {
	var inv model.Invoice
	err := s.db.WithContext(ctx).Where("number = ?", number).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListInvoices lists invoices, optionally filtered by status, in ascending
// creation order.
func (s *Store) ListInvoices(ctx context.Context, statuses ...model.Status) ([]model.Invoice, error) {
	q := s.db.WithContext(ctx).Preload("Lines").Order("created_at asc, id asc")
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var invoices []model.Invoice
	if err := q.Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

// ListCertifiable selects the invoices eligible for an automatic
// certification pass: Draft and Validated always, Error only while the
// retry count is below the cap. Ascending creation order keeps repeated
// batches reproducible for audit review.
func (s *Store) ListCertifiable(ctx context.Context, maxRetries int) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := s.db.WithContext(ctx).
		Preload("Lines").
		Where("status IN ? OR (status = ? AND retry_count < ?)",
			[]model.Status{model.StatusDraft, model.StatusValidated}, model.StatusError, maxRetries).
		Order("created_at asc, id asc").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// MarkValidated moves a Draft or retried-Error invoice to Validated.
func (s *Store) MarkValidated(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).
		Model(&model.Invoice{}).
		Where("id = ? AND status IN ?", id, []model.Status{model.StatusDraft, model.StatusError}).
		Updates(map[string]interface{}{
			"status":        model.StatusValidated,
			"error_message": "",
		}).Error
}

// MarkCertified writes the terminal Certified state together with every
// certification artifact in a single update. The status guard makes the
// transition happen at most once.
func (s *Store) MarkCertified(ctx context.Context, id uint, art CertificationArtifacts) error {
	res := s.db.WithContext(ctx).
		Model(&model.Invoice{}).
		Where("id = ? AND status <> ?", id, model.StatusCertified).
		Updates(map[string]interface{}{
			"status":          model.StatusCertified,
			"fne_reference":   art.Reference,
			"fne_token":       art.Token,
			"qr_payload":      art.QRPayload,
			"sticker_balance": art.StickerBalance,
			"certified_at":    art.At,
			"error_message":   "",
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("invoice %d already certified", id)
	}
	return nil
}

// MarkError records a failed attempt. Transient failures increment the
// retry count; permanent ones pin it to the cap so automatic polling skips
// the invoice until an operator corrects it.
func (s *Store) MarkError(ctx context.Context, id uint, message string, permanent bool, maxRetries int) error {
	updates := map[string]interface{}{
		"status":        model.StatusError,
		"error_message": message,
	}
	if permanent {
		updates["retry_count"] = maxRetries
	} else {
		updates["retry_count"] = gorm.Expr("retry_count + 1")
	}
	return s.db.WithContext(ctx).
		Model(&model.Invoice{}).
		Where("id = ? AND status <> ?", id, model.StatusCertified).
		Updates(updates).Error
}

// ResetRetries is the manual-correction path: it clears the error state and
// retry count so the invoice becomes eligible again.
func (s *Store) ResetRetries(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).
		Model(&model.Invoice{}).
		Where("id = ? AND status = ?", id, model.StatusError).
		Updates(map[string]interface{}{
			"status":        model.StatusValidated,
			"retry_count":   0,
			"error_message": "",
		}).Error
}

// DeleteInvoice soft-deletes an invoice and its lines.
func (s *Store) DeleteInvoice(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", id).Delete(&model.LineItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Invoice{}, id).Error
	})
}
