package store

import (
	"context"

	"github.com/mikaelarth/fnev4/internal/model"
)

// AppendApiLog appends one audit row for an outbound certification attempt.
// Rows are never updated or deleted afterwards.
func (s *Store) AppendApiLog(ctx context.Context, entry *model.ApiLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

// ApiLogsForInvoice returns the full attempt history of one invoice in
// chronological order.
func (s *Store) ApiLogsForInvoice(ctx context.Context, invoiceID uint) ([]model.ApiLog, error) {
	var logs []model.ApiLog
	err := s.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at asc, id asc").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// CountApiLogs returns the number of attempts recorded for one invoice.
func (s *Store) CountApiLogs(ctx context.Context, invoiceID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&model.ApiLog{}).
		Where("invoice_id = ?", invoiceID).
		Count(&n).Error
	return n, err
}
